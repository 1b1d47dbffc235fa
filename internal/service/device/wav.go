package device

import (
	"bytes"
	"encoding/binary"
)

const (
	pcmFormat = 1
	// streamingSize marks RIFF and data sizes as unknown.
	streamingSize = 0xFFFFFFFF
)

// WAVHeader returns a 44-byte PCM WAV header. A dataLen of 0 writes the
// streaming form with unknown sizes.
func WAVHeader(sampleRate, channels, bitsPerSample int, dataLen uint32) []byte {
	var buf bytes.Buffer
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	riffSize := uint32(streamingSize)
	dataSize := uint32(streamingSize)
	if dataLen > 0 {
		riffSize = 36 + dataLen
		dataSize = dataLen
	}

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, riffSize)
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(pcmFormat))
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataSize)

	return buf.Bytes()
}

// PCM16ToBytes converts little-endian 16-bit samples to bytes.
func PCM16ToBytes(in []int16) []byte {
	out := make([]byte, len(in)*2)
	for i, v := range in {
		out[2*i] = byte(v)
		out[2*i+1] = byte(v >> 8)
	}
	return out
}
