package eventstream

import "errors"

var (
	// ErrNilPieceEvent indicates a nil piece event payload was provided to a publisher.
	ErrNilPieceEvent = errors.New("nil piece event")

	// ErrNilScoreEvent indicates a nil score event payload was provided to a publisher.
	ErrNilScoreEvent = errors.New("nil score event")
)
