package repository

import (
	"github.com/jbweber/homelab/genrepo/internal/query"
)

// Option adjusts how a repository lookup is composed.
type Option func(*options)

type options struct {
	sort     query.SortSpec
	tracking query.TrackingMode
	includes []string
	chain    []any
}

func collect(opts []Option) options {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithSort orders results by spec. Later calls append tie-breakers.
func WithSort(spec ...query.SortingParameter) Option {
	return func(o *options) { o.sort = append(o.sort, spec...) }
}

// WithTracking sets the tracking mode. The default is query.NoTracking.
func WithTracking(mode query.TrackingMode) Option {
	return func(o *options) { o.tracking = mode }
}

// WithInclude eager-loads the named relations.
func WithInclude(paths ...string) Option {
	return func(o *options) { o.includes = append(o.includes, paths...) }
}

// WithIncludeChain eager-loads through accessor functions. It cannot be
// combined with WithInclude in the same lookup.
func WithIncludeChain[T any](fns ...query.IncludeFunc[T]) Option {
	return func(o *options) {
		for _, fn := range fns {
			o.chain = append(o.chain, fn)
		}
	}
}
