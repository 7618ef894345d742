package speech

import (
	"bufio"
	"encoding/binary"
	"io"
)

// EncodeWAV writes mono float32 samples as 16-bit PCM WAV.
func EncodeWAV(w io.Writer, samples []float32, sampleRate int) error {
	const (
		numChannels   = uint16(1)
		bitsPerSample = uint16(16)
	)
	byteRate := uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8
	blockAlign := numChannels * bitsPerSample / 8
	dataSize := uint32(len(samples) * 2)

	bw := bufio.NewWriter(w)
	header := []any{
		[4]byte{'R', 'I', 'F', 'F'}, 36 + dataSize, [4]byte{'W', 'A', 'V', 'E'},
		[4]byte{'f', 'm', 't', ' '}, uint32(16), uint16(1), numChannels,
		uint32(sampleRate), byteRate, blockAlign, bitsPerSample,
		[4]byte{'d', 'a', 't', 'a'}, dataSize,
	}
	for _, v := range header {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	pcm := make([]int16, len(samples))
	for i, s := range samples {
		s = min(max(s, -1), 1)
		pcm[i] = int16(s * 32767)
	}
	if err := binary.Write(bw, binary.LittleEndian, pcm); err != nil {
		return err
	}
	return bw.Flush()
}

// silent reports whether no sample reaches threshold.
func silent(samples []float32, threshold float32) bool {
	for _, s := range samples {
		if s >= threshold || s <= -threshold {
			return false
		}
	}
	return true
}
