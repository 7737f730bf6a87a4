package memory

import "errors"

var (
	// ErrNotConfigured is returned when memory operations are attempted
	// but no memory driver has been configured.
	ErrNotConfigured = errors.New("memory not configured")

	// ErrNilPiece is returned when a nil piece is passed to AddPieces.
	ErrNilPiece = errors.New("cannot store nil piece")

	// ErrNilScore is returned when a nil score is passed to AddScores.
	ErrNilScore = errors.New("cannot store nil score")

	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found in memory")
)
