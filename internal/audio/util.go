package audio

import (
	"encoding/binary"
	"math"
	"slices"
)

// bytesToLEF32Slice decodes little endian float32 samples from src and
// appends them to dst.
func bytesToLEF32Slice(src []byte, dst []float32) []float32 {
	f32len := len(src) / rawFormatSampleSize
	dst = slices.Grow(dst, f32len)
	for i := 0; i < f32len; i++ {
		bits := binary.LittleEndian.Uint32(src[i*rawFormatSampleSize:])
		dst = append(dst, math.Float32frombits(bits))
	}
	return dst
}

// leF32SliceToBytes encodes src as little endian float32 samples and appends
// them to dst.
func leF32SliceToBytes(src []float32, dst []byte) []byte {
	dst = slices.Grow(dst, len(src)*rawFormatSampleSize)
	for _, f := range src {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
	}
	return dst
}
