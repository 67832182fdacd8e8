package steps

import (
	"context"
	"errors"

	"github.com/wanmail/seleniumexample/driver"
	"github.com/wanmail/seleniumexample/pages"
)

// World is the state of one scenario. It is created by the Before hook,
// carried in the step context, and discarded when the scenario ends; only the
// session is shared between scenarios.
type World struct {
	Session *driver.Session

	Search  *pages.Search
	Results *pages.SearchResults
}

type worldKey struct{}

var errNoWorld = errors.New("no scenario state in context")

// WithWorld returns a copy of ctx carrying w.
func WithWorld(ctx context.Context, w *World) context.Context {
	return context.WithValue(ctx, worldKey{}, w)
}

// WorldFrom returns the scenario state carried by ctx.
func WorldFrom(ctx context.Context) (*World, error) {
	w, ok := ctx.Value(worldKey{}).(*World)
	if !ok || w == nil {
		return nil, errNoWorld
	}
	return w, nil
}
