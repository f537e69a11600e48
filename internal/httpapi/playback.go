package httpapi

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/meetinglens/transcriptd/internal/fsutil"
)

// byteRange is a single inclusive byte range, grounded on the donor's
// Range-header parser (single-range only; multi-range is rejected).
type byteRange struct {
	Start int64
	End   int64
}

var (
	errInvalidRange = errors.New("invalid range")
	errMultiRange   = errors.New("multi-range not supported")
)

// parseRangeHeader parses a "Range" header against a resource of the
// given size, §6/scenario S6.
func parseRangeHeader(header string, size int64) (byteRange, error) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return byteRange{}, errInvalidRange
	}
	spec := strings.TrimPrefix(header, prefix)
	if strings.Contains(spec, ",") {
		return byteRange{}, errMultiRange
	}
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return byteRange{}, errInvalidRange
	}
	startStr, endStr := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

	if startStr == "" {
		if endStr == "" {
			return byteRange{}, errInvalidRange
		}
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return byteRange{}, errInvalidRange
		}
		if n > size {
			n = size
		}
		return byteRange{Start: size - n, End: size - 1}, nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return byteRange{}, errInvalidRange
	}
	if start >= size {
		return byteRange{}, errInvalidRange
	}
	if endStr == "" {
		return byteRange{Start: start, End: size - 1}, nil
	}
	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil || end < start {
		return byteRange{}, errInvalidRange
	}
	if end >= size {
		end = size - 1
	}
	return byteRange{Start: start, End: end}, nil
}

func formatContentRange(r byteRange, size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

func format416ContentRange(size int64) string {
	return fmt.Sprintf("bytes */%d", size)
}

// handlePlayback serves a meeting's finalized recording with HTTP
// Range semantics, §6/scenario S6: 200 for a full-file request, 206
// with Content-Range for a satisfiable range, 416 when the range start
// is at or beyond the file size.
func (s *Server) handlePlayback(w http.ResponseWriter, r *http.Request) {
	meetingID := chi.URLParam(r, "meetingID")
	m, err := s.st.GetMeeting(r.Context(), meetingID)
	if err != nil {
		writeError(w, http.StatusNotFound, "meeting_not_found", err.Error())
		return
	}
	if m.AudioFilePath == "" {
		writeError(w, http.StatusNotFound, "recording_not_available", "meeting has no finalized recording")
		return
	}

	audioPath, err := s.confinedAudioPath(m.AudioFilePath)
	if err != nil {
		writeError(w, http.StatusNotFound, "recording_not_available", err.Error())
		return
	}

	f, err := os.Open(audioPath)
	if err != nil {
		writeError(w, http.StatusNotFound, "recording_not_available", err.Error())
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stat_failed", err.Error())
		return
	}
	size := info.Size()

	ctype := mime.TypeByExtension(filepath.Ext(m.AudioFilePath))
	if ctype == "" {
		ctype = "audio/wav"
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Accept-Ranges", "bytes")

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			_, _ = copyRange(w, f, 0, size)
		}
		return
	}

	rng, err := parseRangeHeader(rangeHeader, size)
	if err != nil {
		if errors.Is(err, errMultiRange) {
			writeError(w, http.StatusBadRequest, "multi_range_unsupported", err.Error())
			return
		}
		w.Header().Set("Content-Range", format416ContentRange(size))
		writeError(w, http.StatusRequestedRangeNotSatisfiable, "invalid_range", err.Error())
		return
	}

	length := rng.End - rng.Start + 1
	w.Header().Set("Content-Range", formatContentRange(rng, size))
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method != http.MethodHead {
		_, _ = copyRange(w, f, rng.Start, length)
	}
}

// confinedAudioPath re-validates a stored recording path against the
// server's recordings root before opening it, so a corrupted or
// maliciously rewritten meetings.audio_file_path row can never make
// the playback endpoint read a file outside userData/recordings/.
func (s *Server) confinedAudioPath(storedPath string) (string, error) {
	rel, err := filepath.Rel(s.recDir, filepath.Clean(storedPath))
	if err != nil {
		return "", err
	}
	return fsutil.ConfineRelPath(s.recDir, rel)
}

func copyRange(w http.ResponseWriter, f *os.File, offset, length int64) (int64, error) {
	if _, err := f.Seek(offset, 0); err != nil {
		return 0, err
	}
	buf := make([]byte, 64*1024)
	var written int64
	for written < length {
		n := int64(len(buf))
		if remaining := length - written; remaining < n {
			n = remaining
		}
		read, err := f.Read(buf[:n])
		if read > 0 {
			wn, werr := w.Write(buf[:read])
			written += int64(wn)
			if werr != nil {
				return written, werr
			}
		}
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
