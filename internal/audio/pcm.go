package audio

import "encoding/binary"

// FrameSize is the fixed per-frame sample count streamed to the recognition
// provider. One socket message is sent per frame, no batching.
const FrameSize = 4096

// EncodeInt16LE converts float32 samples into little-endian signed 16-bit
// PCM, the linear16 wire format. Samples are clamped to [-1, 1]; negative
// samples scale by 0x8000 and non-negative by 0x7fff. The conversion is the
// wire contract with the recognizer and must stay exact.
func EncodeInt16LE(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(encodeSample(s)))
	}
	return out
}

func encodeSample(s float32) int16 {
	if s < -1 {
		s = -1
	} else if s > 1 {
		s = 1
	}
	if s < 0 {
		return int16(s * 0x8000)
	}
	return int16(s * 0x7fff)
}

// DecodeInt16LE converts s16le bytes back into float32 samples using the
// inverse scaling. Trailing odd bytes are ignored.
func DecodeInt16LE(data []byte) []float32 {
	out := make([]float32, len(data)/2)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		if v < 0 {
			out[i] = float32(v) / 0x8000
		} else {
			out[i] = float32(v) / 0x7fff
		}
	}
	return out
}

// SamplesFromBytes reinterprets s16le bytes as int16 samples.
func SamplesFromBytes(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out
}

// BytesFromSamples serializes int16 samples as s16le bytes.
func BytesFromSamples(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
