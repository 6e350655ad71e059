package audioio

import (
	"bytes"
	"encoding/binary"
)

// wavHeaderSize is the size of the canonical RIFF/WAVE header produced by WrapWAV.
const wavHeaderSize = 44

// WrapWAV wraps raw PCM16 little-endian mono samples in a minimal WAV container
// so a transcription service can parse them as a standalone file.
//
// The layout is the fixed 44-byte canonical header (PCM format, mono, 16-bit,
// the given sample rate) followed by the raw sample bytes. No compression,
// no metadata beyond the mandatory fields.
func WrapWAV(pcm []byte, sampleRate int) []byte {
	const (
		numChannels   = 1
		bitsPerSample = 16
	)

	byteRate := sampleRate * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8
	dataSize := len(pcm)

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+dataSize))

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16)) // fmt chunk size
	binary.Write(buf, binary.LittleEndian, uint16(1))  // PCM format
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(pcm)

	return buf.Bytes()
}
