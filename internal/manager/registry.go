package manager

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"musicd/pkg/types"
)

// handleRegistry maps variant names to loaded handles. Concurrent misses for
// the same variant share one load; loads of different variants run in parallel.
// Failed loads are not cached.
type handleRegistry struct {
	mu      sync.RWMutex
	handles map[string]*Handle
	loading map[string]struct{}
	group   singleflight.Group

	load    func(ctx context.Context, v types.Variant) (*Handle, error)
	timeout time.Duration

	loads    atomic.Uint64
	failures atomic.Uint64
}

func newHandleRegistry(load func(context.Context, types.Variant) (*Handle, error), timeout time.Duration) *handleRegistry {
	return &handleRegistry{
		handles: make(map[string]*Handle),
		loading: make(map[string]struct{}),
		load:    load,
		timeout: timeout,
	}
}

func (r *handleRegistry) lookup(name string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[name]
	return h, ok
}

// getOrCreate returns the handle for v, loading it on first use. A caller
// whose ctx ends stops waiting, but the shared load keeps running for others.
func (r *handleRegistry) getOrCreate(ctx context.Context, v types.Variant) (*Handle, error) {
	// Fast path: already loaded
	if h, ok := r.lookup(v.Name); ok {
		return h, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := r.group.DoChan(v.Name, func() (any, error) {
		if h, ok := r.lookup(v.Name); ok {
			return h, nil
		}
		r.setLoading(v.Name, true)
		defer r.setLoading(v.Name, false)

		lctx, cancel := r.loadContext(ctx)
		defer cancel()
		h, err := r.load(lctx, v)
		if err != nil {
			r.failures.Add(1)
			return nil, err
		}
		r.mu.Lock()
		r.handles[v.Name] = h
		r.mu.Unlock()
		r.loads.Add(1)
		return h, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Handle), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for model %s: %w", v.Name, ctx.Err())
	}
}

// loadContext detaches the load from the first caller's cancellation while
// keeping its values, and bounds it by the load timeout.
func (r *handleRegistry) loadContext(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if r.timeout > 0 {
		return context.WithTimeout(base, r.timeout)
	}
	return context.WithCancel(base)
}

func (r *handleRegistry) setLoading(name string, on bool) {
	r.mu.Lock()
	if on {
		r.loading[name] = struct{}{}
	} else {
		delete(r.loading, name)
	}
	r.mu.Unlock()
}

// all returns loaded handles sorted by variant name.
func (r *handleRegistry) all() []*Handle {
	r.mu.RLock()
	out := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Variant.Name < out[j].Variant.Name })
	return out
}

func (r *handleRegistry) inProgress() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.loading))
	for name := range r.loading {
		out = append(out, name)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}
