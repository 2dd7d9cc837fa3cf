package mqtt

import (
	"testing"
)

func TestRingBufferEmptyDrain(t *testing.T) {
	rb := newRingBuffer(10)
	if got := rb.drain(); got != nil {
		t.Errorf("expected nil from empty drain, got %d items", len(got))
	}
}

func TestRingBufferPushAndDrain(t *testing.T) {
	rb := newRingBuffer(10)
	for i := 0; i < 5; i++ {
		rb.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}
	if rb.len() != 5 {
		t.Fatalf("len: got %d, want 5", rb.len())
	}

	got := rb.drain()
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	for i := range got {
		if got[i].payload[0] != byte(i) {
			t.Errorf("item %d: expected payload %d, got %d", i, i, got[i].payload[0])
		}
	}

	if got2 := rb.drain(); got2 != nil {
		t.Errorf("expected nil from second drain, got %d items", len(got2))
	}
}

func TestRingBufferOverflowKeepsNewest(t *testing.T) {
	rb := newRingBuffer(5)

	// 0..7 pushed; 3..7 remain
	for i := 0; i < 8; i++ {
		rb.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}
	if rb.len() != 5 {
		t.Fatalf("len: got %d, want 5", rb.len())
	}

	got := rb.drain()
	for i, msg := range got {
		if want := byte(i + 3); msg.payload[0] != want {
			t.Errorf("item %d: expected payload %d, got %d", i, want, msg.payload[0])
		}
	}
}

func TestRingBufferReuseAfterDrain(t *testing.T) {
	rb := newRingBuffer(3)
	for i := 0; i < 4; i++ {
		rb.push(bufferedMsg{payload: []byte{byte(i)}})
	}
	rb.drain()

	rb.push(bufferedMsg{payload: []byte{9}})
	got := rb.drain()
	if len(got) != 1 || got[0].payload[0] != 9 {
		t.Errorf("got %v, want one message with payload 9", got)
	}
}

func TestRingBufferWrapsWithoutOverflow(t *testing.T) {
	rb := newRingBuffer(4)
	rb.push(bufferedMsg{payload: []byte{0}})
	rb.push(bufferedMsg{payload: []byte{1}})
	rb.push(bufferedMsg{payload: []byte{2}})
	rb.push(bufferedMsg{payload: []byte{3}})
	rb.push(bufferedMsg{payload: []byte{4}})
	rb.push(bufferedMsg{payload: []byte{5}})

	got := rb.drain()
	if len(got) != 4 {
		t.Fatalf("expected 4 items, got %d", len(got))
	}
	for i, msg := range got {
		if want := byte(i + 2); msg.payload[0] != want {
			t.Errorf("item %d: got %d, want %d", i, msg.payload[0], want)
		}
	}
}

func TestRingBufferPreservesMetadata(t *testing.T) {
	rb := newRingBuffer(2)
	rb.push(bufferedMsg{topic: "galvo/x/system", payload: []byte("a"), qos: 1, retained: true})

	got := rb.drain()[0]
	if got.topic != "galvo/x/system" || got.qos != 1 || !got.retained {
		t.Errorf("metadata lost: %+v", got)
	}
}

func TestRingBufferZeroCapacity(t *testing.T) {
	rb := newRingBuffer(0)
	rb.push(bufferedMsg{payload: []byte{1}})
	rb.push(bufferedMsg{payload: []byte{2}})

	got := rb.drain()
	if len(got) != 1 || got[0].payload[0] != 2 {
		t.Errorf("got %v, want only the newest message", got)
	}
}
