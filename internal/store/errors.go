package store

import "errors"

// ErrMissingSpeakerID is returned by Create/CreateBatch when a
// TranscriptRow has no SpeakerID, enforcing §3/§4.6's invariant that
// speaker identity is always sourced from C3.
var ErrMissingSpeakerID = errors.New("store: transcript row missing speaker id")

// ErrOverlappingSegments is returned when a row would overlap another
// row from the same speaker in the same meeting, §3/§7.
var ErrOverlappingSegments = errors.New("store: overlapping segments for speaker")

// ErrNotFound is returned when a lookup by id finds no row.
var ErrNotFound = errors.New("store: not found")
