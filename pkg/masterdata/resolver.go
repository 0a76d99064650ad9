// Package masterdata resolves MASTER data-source keys into option lists.
// Lookups for distinct keys run concurrently on a bounded worker pool and
// any failure degrades to an empty list; a screen load is never aborted by
// master data.
package masterdata

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/samber/lo"

	"github.com/goliatone/go-formflow/pkg/schema"
)

// DefaultWorkers bounds concurrent lookups per Resolve call.
const DefaultWorkers = 4

// Source is the master-data collaborator. Unknown keys return an empty list.
type Source interface {
	Lookup(ctx context.Context, key string) ([]string, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, key string) ([]string, error)

// Lookup implements Source.
func (fn SourceFunc) Lookup(ctx context.Context, key string) ([]string, error) {
	return fn(ctx, key)
}

// Logger receives non-fatal lookup failures.
type Logger interface {
	Printf(format string, args ...any)
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithCache consults and fills cache around the source.
func WithCache(cache Cache) Option {
	return func(r *Resolver) {
		r.cache = cache
	}
}

// WithWorkers bounds concurrent lookups.
func WithWorkers(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithTimeout bounds each individual lookup.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		r.timeout = d
	}
}

// WithLogger reports degraded lookups.
func WithLogger(l Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// Resolver fans master keys out to a Source.
type Resolver struct {
	source  Source
	cache   Cache
	workers int
	timeout time.Duration
	logger  Logger
}

// NewResolver returns a resolver over source. A nil source resolves every
// key to an empty list.
func NewResolver(source Source, opts ...Option) *Resolver {
	r := &Resolver{source: source, workers: DefaultWorkers}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Keys returns the distinct MASTER keys declared by fields, in order.
func Keys(fields []*schema.Field) []string {
	var keys []string
	for _, f := range fields {
		if f == nil || f.DataSource == nil || !f.DataSource.IsMaster() {
			continue
		}
		if key := strings.TrimSpace(f.DataSource.Key); key != "" {
			keys = append(keys, key)
		}
	}
	return lo.Uniq(keys)
}

// Resolve looks up every distinct key and returns a list per key. The result
// always holds an entry for each requested key.
func (r *Resolver) Resolve(ctx context.Context, keys []string) map[string][]string {
	keys = lo.Uniq(lo.Compact(keys))
	out := make(map[string][]string, len(keys))
	if len(keys) == 0 {
		return out
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	store := func(key string, options []string) {
		mu.Lock()
		out[key] = options
		mu.Unlock()
	}

	pool, err := ants.NewPool(min(r.workers, len(keys)), ants.WithOptions(ants.Options{
		PanicHandler: func(p any) {
			r.logf("masterdata: lookup panic: %v", p)
		},
	}))
	if err != nil {
		r.logf("masterdata: worker pool unavailable, resolving sequentially: %v", err)
		for _, key := range keys {
			store(key, r.lookup(ctx, key))
		}
		return out
	}
	defer pool.Release()

	for _, key := range keys {
		key := key
		wg.Add(1)
		task := func() {
			defer wg.Done()
			store(key, r.lookup(ctx, key))
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			r.logf("masterdata: submit %q: %v", key, err)
			store(key, []string{})
		}
	}
	wg.Wait()

	for _, key := range keys {
		if out[key] == nil {
			out[key] = []string{}
		}
	}
	return out
}

func (r *Resolver) lookup(ctx context.Context, key string) []string {
	if r.cache != nil {
		if options, ok, err := r.cache.Get(ctx, key); err != nil {
			r.logf("masterdata: cache get %q: %v", key, err)
		} else if ok {
			return options
		}
	}
	if r.source == nil {
		return []string{}
	}

	callCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	options, err := r.source.Lookup(callCtx, key)
	if err != nil {
		r.logf("masterdata: lookup %q: %v", key, err)
		return []string{}
	}
	if options == nil {
		options = []string{}
	}
	if r.cache != nil {
		if err := r.cache.Set(ctx, key, options); err != nil {
			r.logf("masterdata: cache set %q: %v", key, err)
		}
	}
	return options
}

func (r *Resolver) logf(format string, args ...any) {
	if r.logger != nil {
		r.logger.Printf(format, args...)
	}
}

// Static is an in-memory Source.
type Static map[string][]string

// Lookup implements Source.
func (s Static) Lookup(_ context.Context, key string) ([]string, error) {
	if options, ok := s[key]; ok {
		return append([]string(nil), options...), nil
	}
	return []string{}, nil
}
