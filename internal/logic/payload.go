package logic

import (
	"encoding/binary"
	"math"
)

// Accepted write payload lengths.
const (
	PayloadLen        = 4 // float32 LE, channel 0
	PayloadLenChannel = 5 // float32 LE + uint8 channel
)

// Decode parses a write payload. Any length other than PayloadLen or
// PayloadLenChannel yields ok == false; that is a no-op, not an error.
// The channel index is not range checked here.
func Decode(p []byte) (cmd Command, ok bool) {
	switch len(p) {
	case PayloadLen:
		return Command{Value: math.Float32frombits(binary.LittleEndian.Uint32(p))}, true
	case PayloadLenChannel:
		return Command{
			Value:   math.Float32frombits(binary.LittleEndian.Uint32(p[:4])),
			Channel: p[4],
		}, true
	default:
		return Command{}, false
	}
}

// Encode returns the 4-byte payload for value, which the device applies to
// channel 0.
func Encode(value float32) []byte {
	p := make([]byte, PayloadLen)
	binary.LittleEndian.PutUint32(p, math.Float32bits(value))
	return p
}

// EncodeChannel returns the 5-byte payload for value on channel ch.
func EncodeChannel(value float32, ch uint8) []byte {
	p := make([]byte, PayloadLenChannel)
	binary.LittleEndian.PutUint32(p, math.Float32bits(value))
	p[4] = ch
	return p
}
