package model

import (
	"errors"
	"fmt"
)

// Status is the processing state of a video
type Status string

const (
	StatusQueued      Status = "QUEUED"
	StatusTranscribed Status = "TRANSCRIBED"
	StatusNoSpeech    Status = "NO_SPEECH"
	StatusClaimed     Status = "CLAIMED"
	StatusNoClaims    Status = "NO_CLAIMS"
)

// ErrInvalidTransition is returned when a status change is not in the transition table
var ErrInvalidTransition = errors.New("invalid status transition")

// forward lists the transitions a stage may make without an explicit reset
var forward = map[Status][]Status{
	StatusQueued:      {StatusTranscribed, StatusNoSpeech},
	StatusTranscribed: {StatusClaimed, StatusNoClaims},
	StatusNoSpeech:    nil,
	StatusClaimed:     nil,
	StatusNoClaims:    nil,
}

// resetSources lists, per target, which states an explicit reset may leave.
// A nil entry means any state.
var resetSources = map[Status][]Status{
	StatusQueued:      nil,
	StatusTranscribed: nil,
	StatusNoSpeech:    nil,
	StatusClaimed:     {StatusTranscribed, StatusClaimed, StatusNoClaims},
	StatusNoClaims:    {StatusTranscribed, StatusClaimed, StatusNoClaims},
}

// Valid reports whether s is one of the enumerated statuses
func (s Status) Valid() bool {
	_, ok := forward[s]
	return ok
}

// Terminal reports whether no stage moves the video out of s automatically
func (s Status) Terminal() bool {
	return s.Valid() && len(forward[s]) == 0
}

// ParseStatus converts a stored string into a Status
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}

// ValidateTransition checks a status change against the transition table.
// Writing the current status again is always allowed. When reset is true the
// reprocessing transitions are allowed as well.
func ValidateTransition(from, to Status, reset bool) error {
	if !from.Valid() || !to.Valid() {
		return fmt.Errorf("%w: %q -> %q", ErrInvalidTransition, from, to)
	}
	if from == to {
		return nil
	}
	for _, next := range forward[from] {
		if next == to {
			return nil
		}
	}
	if reset {
		sources := resetSources[to]
		if sources == nil {
			return nil
		}
		for _, src := range sources {
			if src == from {
				return nil
			}
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
