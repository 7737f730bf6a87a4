package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/probeworks/gauntlet/pkg/eventstream"
)

// CapturePublisher records published events in arrival order, with
// optional failure injection.
type CapturePublisher struct {
	// Fail causes every publish to return an error.
	Fail bool

	mu     sync.Mutex
	pieces []*eventstream.PiecePersistedEvent
	scores []*eventstream.ScorePersistedEvent
}

var _ eventstream.Publisher = (*CapturePublisher)(nil)

func (p *CapturePublisher) PublishPiece(_ context.Context, event *eventstream.PiecePersistedEvent) error {
	if event == nil {
		return eventstream.ErrNilPieceEvent
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Fail {
		return fmt.Errorf("capture publisher failure")
	}
	p.pieces = append(p.pieces, event)
	return nil
}

func (p *CapturePublisher) PublishScore(_ context.Context, event *eventstream.ScorePersistedEvent) error {
	if event == nil {
		return eventstream.ErrNilScoreEvent
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Fail {
		return fmt.Errorf("capture publisher failure")
	}
	p.scores = append(p.scores, event)
	return nil
}

func (p *CapturePublisher) Close() error { return nil }

// PieceEvents returns the captured piece events.
func (p *CapturePublisher) PieceEvents() []*eventstream.PiecePersistedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*eventstream.PiecePersistedEvent(nil), p.pieces...)
}

// ScoreEvents returns the captured score events.
func (p *CapturePublisher) ScoreEvents() []*eventstream.ScorePersistedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*eventstream.ScorePersistedEvent(nil), p.scores...)
}
