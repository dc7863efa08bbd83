package events

import (
	"context"

	"github.com/steelhouse/smartpixel-config-service/internal/models"
)

// Publisher hands config change events to the message broker. Publishing is
// best-effort: callers log failures but never fail the originating request.
type Publisher interface {
	PublishChange(ctx context.Context, event models.ChangeEvent) error
	Close() error
}

// NoopPublisher is wired when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishChange(ctx context.Context, event models.ChangeEvent) error { return nil }

func (NoopPublisher) Close() error { return nil }
