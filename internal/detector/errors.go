package detector

import (
	"errors"
	"fmt"
	"strings"
)

// DetectionIndexError reports an index tuple that points outside the score or
// box tensor.
type DetectionIndexError struct {
	Position int // position of the tuple within the consumed index group
	Tuple    IndexTuple
	Reason   string
}

func (e *DetectionIndexError) Error() string {
	return fmt.Sprintf("detection index %d (batch=%d class=%d slot=%d): %s",
		e.Position, e.Tuple.Batch, e.Tuple.Class, e.Tuple.Slot, e.Reason)
}

// ErrEngineClosed is returned by Run after Close.
var ErrEngineClosed = errors.New("detector engine is closed")

// MissingOutputError is returned when the model does not produce one or more
// of the configured outputs.
type MissingOutputError struct {
	Names []string
}

func (e *MissingOutputError) Error() string {
	return "model outputs missing: " + strings.Join(e.Names, ", ")
}
