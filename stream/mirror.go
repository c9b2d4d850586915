package stream

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jacentio/mockstate/store"
)

// Mirror is a Sink replaying changes into in-process stores obtained from a
// factory with forceBaseline set, so the replica never writes back to the
// table it mirrors.
type Mirror struct {
	factory *store.Factory
	logger  *slog.Logger
}

// NewMirror creates a Mirror over factory.
func NewMirror(factory *store.Factory, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{factory: factory, logger: logger}
}

// Apply implements Sink.
func (m *Mirror) Apply(ctx context.Context, change Change) error {
	s, err := m.factory.GetStoreByName(ctx, change.Store, true)
	if err != nil {
		return fmt.Errorf("mirror store %s: %w", change.Store, err)
	}

	switch change.Op {
	case OpSave:
		err = s.Save(ctx, change.Key, change.Value)
	case OpDelete:
		err = s.Delete(ctx, change.Key)
	default:
		return fmt.Errorf("mirror store %s: unknown op %q", change.Store, change.Op)
	}
	if err != nil {
		return err
	}

	m.logger.Debug("mirrored change",
		"store", change.Store,
		"key", change.Key,
		"op", change.Op,
		"expired", change.Expired,
	)
	return nil
}
