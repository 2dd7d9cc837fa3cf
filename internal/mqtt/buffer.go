package mqtt

import "log"

// bufferedMsg is a serialized message held for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// DefaultBufferSize is how many messages are kept while the broker is away.
const DefaultBufferSize = 256

// ringBuffer is a fixed-capacity FIFO that keeps the newest messages.
// Not safe for concurrent use; RealPublisher holds its lock around it.
type ringBuffer struct {
	msgs    []bufferedMsg
	next    int
	n       int
	dropped int // since last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &ringBuffer{msgs: make([]bufferedMsg, capacity)}
}

func (r *ringBuffer) push(msg bufferedMsg) {
	size := len(r.msgs)
	r.msgs[r.next] = msg
	r.next = (r.next + 1) % size
	if r.n < size {
		r.n++
		return
	}
	if r.dropped == 0 {
		log.Printf("mqtt: offline buffer full (%d messages), dropping oldest", size)
	}
	r.dropped++
}

// drain returns the held messages oldest first and empties the buffer.
func (r *ringBuffer) drain() []bufferedMsg {
	if r.n == 0 {
		return nil
	}
	size := len(r.msgs)
	out := make([]bufferedMsg, 0, r.n)
	for i := r.next - r.n; i < r.next; i++ {
		out = append(out, r.msgs[(i+size)%size])
	}
	if r.dropped > 0 {
		log.Printf("mqtt: %d buffered messages were dropped while offline", r.dropped)
	}
	r.next, r.n, r.dropped = 0, 0, 0
	return out
}

func (r *ringBuffer) len() int {
	return r.n
}
