package eventstream

import "context"

// Publisher publishes persistence events to an event stream backend.
type Publisher interface {
	PublishPiece(ctx context.Context, event *PiecePersistedEvent) error
	PublishScore(ctx context.Context, event *ScorePersistedEvent) error
	Close() error
}
