package sink

import (
	"context"

	"github.com/flowsentinel/intake/internal/models"
)

// Sink persists a batch of events into the external time-series store.
// A batch either all-succeeds or all-fails; Write must respect ctx
// deadlines so a slow store cannot stall the dispatcher.
type Sink interface {
	Name() string
	Write(ctx context.Context, events []*models.Event) error
}
