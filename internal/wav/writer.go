package wav

import (
	"encoding/binary"
	"fmt"
	"os"
)

// WriteCanonicalHeader creates path and writes a 44-byte RIFF/WAVE
// header with a zeroed data-size field, ready for raw PCM samples to be
// appended as they arrive. Sanitize repairs the declared sizes once
// capture finishes, §4.1/§4.10.
func WriteCanonicalHeader(path string, sampleRate uint32, channels, bitDepth uint16) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("wav: create %s: %w", path, err)
	}

	blockAlign := channels * (bitDepth / 8)
	byteRate := sampleRate * uint32(blockAlign)

	var header [headerSize]byte
	copy(header[0:4], riffMagic)
	binary.LittleEndian.PutUint32(header[4:8], 36) // total size minus 8, fixed up at Sanitize time
	copy(header[8:12], waveMagic)
	copy(header[12:16], fmtChunkID)
	binary.LittleEndian.PutUint32(header[16:20], 16) // fmt chunk size (PCM)
	binary.LittleEndian.PutUint16(header[20:22], 1)  // audio format: PCM
	binary.LittleEndian.PutUint16(header[22:24], channels)
	binary.LittleEndian.PutUint32(header[24:28], sampleRate)
	binary.LittleEndian.PutUint32(header[28:32], byteRate)
	binary.LittleEndian.PutUint16(header[32:34], blockAlign)
	binary.LittleEndian.PutUint16(header[34:36], bitDepth)
	copy(header[36:40], dataChunkID)
	binary.LittleEndian.PutUint32(header[40:44], 0) // data size, fixed up at Sanitize time

	if _, err := f.Write(header[:]); err != nil {
		f.Close()
		return nil, fmt.Errorf("wav: write header: %w", err)
	}
	return f, nil
}
