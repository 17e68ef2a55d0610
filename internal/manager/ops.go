package manager

import (
	"context"

	"golang.org/x/sync/errgroup"

	"musicd/internal/registry"
	"musicd/pkg/types"
)

// Preload loads the named variants in parallel so the first request for each
// does not pay the load cost. It returns the first load error.
func (m *Manager) Preload(ctx context.Context, names ...string) error {
	vs := make([]types.Variant, 0, len(names))
	for _, name := range names {
		v, ok := registry.Find(m.variants, name)
		if !ok {
			return newError(KindInvalidRequest, name, nil, "unknown model %q", name)
		}
		vs = append(vs, v)
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, v := range vs {
		g.Go(func() error {
			_, err := m.handles.getOrCreate(gctx, v)
			return err
		})
	}
	return g.Wait()
}
