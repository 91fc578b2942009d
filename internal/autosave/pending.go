package autosave

import (
	"context"
	"log/slog"

	"proposaldesk/internal/offline"
)

// BaseKey is where a controller built with Options.Version keeps the version
// the backup under key was written against.
func BaseKey(key string) string {
	return key + ":base"
}

// Pending is a backup an earlier session left behind.
type Pending[T any] struct {
	Value T
	// Base is the record version the backup was written against, or zero
	// when none was stored.
	Base int
}

// LoadPending reads the backup under key without starting a controller.
// logger may be nil.
func LoadPending[T any](ctx context.Context, store offline.Store, key string, logger *slog.Logger) (Pending[T], bool) {
	value := offline.Bind[T](ctx, store, key, logger)
	defer value.Close()
	draft, ok := value.Mirror()
	if !ok {
		return Pending[T]{}, false
	}

	base := offline.Bind[int](ctx, store, BaseKey(key), logger)
	defer base.Close()
	version, _ := base.Mirror()
	return Pending[T]{Value: draft, Base: version}, true
}
