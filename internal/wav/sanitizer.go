// Package wav validates and repairs the canonical 44-byte RIFF/WAVE
// header so that downstream readers (the diarizer and transcriber
// subprocesses) see the true data length, per §4.1.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

const (
	headerSize    = 44
	riffMagic     = "RIFF"
	waveMagic     = "WAVE"
	fmtChunkID    = "fmt "
	dataChunkID   = "data"
	mismatchBytes = 1024 // 1 KiB tolerance before a rewrite is triggered
)

// ErrNotWav is returned when the RIFF/WAVE magic bytes are missing or
// invalid.
var ErrNotWav = errors.New("wav: not a RIFF/WAVE file")

// ErrTooSmall is returned for files at or below the 44-byte header size.
var ErrTooSmall = errors.New("wav: file smaller than canonical header")

// Info is the sanitizer's contract result, §4.1.
type Info struct {
	SampleRate     uint32
	Channels       uint16
	BitDepth       uint16
	HeaderDataSize uint32
	ActualDataSize uint32
	DurationSec    float64
	Repaired       bool
}

// Sanitize reads path's header, validates it, and — if the declared data
// size disagrees with the actual file size by more than 1 KiB of audio —
// rewrites the RIFF and data chunk sizes in place before fsyncing.
// Sanitize never truncates audio data and is idempotent: a second call on
// an already-correct file is a no-op (Repaired=false).
func Sanitize(path string) (Info, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return Info{}, fmt.Errorf("wav: open %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return Info{}, fmt.Errorf("wav: stat %s: %w", path, err)
	}
	if st.Size() <= headerSize {
		return Info{}, ErrTooSmall
	}

	var header [headerSize]byte
	if _, err := f.ReadAt(header[:], 0); err != nil {
		return Info{}, fmt.Errorf("wav: read header: %w", err)
	}

	if string(header[0:4]) != riffMagic || string(header[8:12]) != waveMagic {
		return Info{}, ErrNotWav
	}
	if string(header[12:16]) != fmtChunkID || string(header[36:40]) != dataChunkID {
		return Info{}, ErrNotWav
	}

	channels := binary.LittleEndian.Uint16(header[22:24])
	sampleRate := binary.LittleEndian.Uint32(header[24:28])
	bitDepth := binary.LittleEndian.Uint16(header[34:36])
	headerDataSize := binary.LittleEndian.Uint32(header[40:44])

	actualDataSize := uint32(st.Size() - headerSize)

	info := Info{
		SampleRate:     sampleRate,
		Channels:       channels,
		BitDepth:       bitDepth,
		HeaderDataSize: headerDataSize,
		ActualDataSize: actualDataSize,
	}
	info.DurationSec = durationSeconds(actualDataSize, sampleRate, channels, bitDepth)

	diff := int64(headerDataSize) - int64(actualDataSize)
	if diff < 0 {
		diff = -diff
	}
	if diff <= mismatchBytes {
		return info, nil
	}

	binary.LittleEndian.PutUint32(header[4:8], uint32(st.Size())-8)
	binary.LittleEndian.PutUint32(header[40:44], actualDataSize)

	if _, err := f.WriteAt(header[:], 0); err != nil {
		return Info{}, fmt.Errorf("wav: rewrite header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return Info{}, fmt.Errorf("wav: fsync: %w", err)
	}

	info.HeaderDataSize = actualDataSize
	info.Repaired = true
	return info, nil
}

func durationSeconds(dataSize uint32, sampleRate uint32, channels uint16, bitDepth uint16) float64 {
	bytesPerSec := float64(sampleRate) * float64(channels) * float64(bitDepth) / 8
	if bytesPerSec == 0 {
		return 0
	}
	return float64(dataSize) / bytesPerSec
}
