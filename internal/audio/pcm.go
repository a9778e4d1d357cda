package audio

import (
	"encoding/binary"
	"fmt"
)

// DecodePCM16 converts signed 16-bit little-endian PCM bytes into float
// samples normalized to [-1, 1]. A payload that is not a whole number of
// samples is a decode error; the caller decides whether that kills the
// session or just the frame.
func DecodePCM16(raw []byte) ([]float32, error) {
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("pcm payload length %d is not a multiple of the sample width", len(raw))
	}
	samples := make([]float32, len(raw)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(raw[2*i:]))
		samples[i] = float32(v) / 32768.0
	}
	return samples, nil
}

// EncodePCM16 is the inverse of DecodePCM16, clipping to the int16 range.
func EncodePCM16(samples []float32) []byte {
	raw := make([]byte, 2*len(samples))
	for i, s := range samples {
		v := s * 32768.0
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(raw[2*i:], uint16(int16(v)))
	}
	return raw
}

// Concat joins buffered sample chunks into one contiguous signal.
func Concat(chunks [][]float32) []float32 {
	var n int
	for _, c := range chunks {
		n += len(c)
	}
	signal := make([]float32, 0, n)
	for _, c := range chunks {
		signal = append(signal, c...)
	}
	return signal
}
