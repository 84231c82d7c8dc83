// Package logo resolves the company logo from an ordered list of candidate
// sources and prepares it for the document header. A resolution either ends
// Loaded with a circular PNG or Exhausted, in which case callers draw the
// text badge instead.
package logo

import (
	"context"
	"time"

	"invoicer/internal/cache"
	applog "invoicer/internal/log"
)

// State is the position of a Resolution in its lifecycle.
type State int

const (
	StatePending State = iota
	StateLoaded
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateExhausted:
		return "exhausted"
	default:
		return "pending"
	}
}

// Attempt records the outcome of one candidate.
type Attempt struct {
	Source string
	Err    error
}

// Resolution is a single pass over the candidates.
type Resolution struct {
	state    State
	image    []byte
	source   string
	attempts []Attempt
}

func (r *Resolution) State() State { return r.state }

// Image is the masked PNG, nil unless Loaded.
func (r *Resolution) Image() []byte { return r.image }

// Source names the candidate that produced the image.
func (r *Resolution) Source() string { return r.source }

func (r *Resolution) Attempts() []Attempt { return r.attempts }

func (r *Resolution) fail(source string, err error) {
	r.attempts = append(r.attempts, Attempt{Source: source, Err: err})
}

func (r *Resolution) load(source string, img []byte) {
	r.attempts = append(r.attempts, Attempt{Source: source})
	r.state = StateLoaded
	r.source = source
	r.image = img
}

func (r *Resolution) exhaust() {
	r.state = StateExhausted
}

// Resolver tries its sources in order until one yields a decodable image.
type Resolver struct {
	sources  []Source
	diameter int
	logger   *applog.Logger
}

// NewResolver creates a resolver over sources, tried in the given order.
func NewResolver(logger *applog.Logger, sources ...Source) *Resolver {
	if logger == nil {
		logger = applog.Default(applog.ComponentLogo)
	}
	return &Resolver{
		sources:  sources,
		diameter: DefaultDiameter,
		logger:   logger.WithComponent(applog.ComponentLogo),
	}
}

// WithDiameter sets the pixel size of the masked image.
func (r *Resolver) WithDiameter(px int) *Resolver {
	r.diameter = px
	return r
}

// Run performs one resolution. A source that loads but cannot be decoded
// counts as a failure and the next candidate is tried.
func (r *Resolver) Run(ctx context.Context) *Resolution {
	res := &Resolution{}
	for _, src := range r.sources {
		if err := ctx.Err(); err != nil {
			res.fail(src.Name(), err)
			break
		}
		data, err := src.Load(ctx)
		if err != nil {
			r.logger.WarnContext(ctx, "Logo candidate failed", applog.FieldLogoSource, src.Name(), applog.FieldError, err.Error())
			res.fail(src.Name(), err)
			continue
		}
		img, err := CircularPNG(data, r.diameter)
		if err != nil {
			r.logger.WarnContext(ctx, "Logo candidate failed", applog.FieldLogoSource, src.Name(), applog.FieldError, err.Error())
			res.fail(src.Name(), err)
			continue
		}
		res.load(src.Name(), img)
		r.logger.DebugContext(ctx, "Logo loaded", applog.FieldLogoSource, src.Name())
		return res
	}
	res.exhaust()
	r.logger.InfoContext(ctx, "No logo candidate loaded, using text badge", "attempts", len(res.attempts))
	return res
}

// Resolve returns the masked logo or nil for the text fallback.
func (r *Resolver) Resolve(ctx context.Context) []byte {
	return r.Run(ctx).Image()
}

// CachedResolver memoizes the outcome, fallback included, for a TTL.
type CachedResolver struct {
	resolver *Resolver
	cache    cache.Cache[[]byte]
}

const cacheKey = "logo"

// NewCachedResolver wraps resolver with an LRU entry that expires after ttl.
func NewCachedResolver(resolver *Resolver, ttl time.Duration) *CachedResolver {
	return &CachedResolver{
		resolver: resolver,
		cache:    cache.NewLRUCache[[]byte](1, ttl),
	}
}

// NewCachedResolverWith uses an existing cache, e.g. one registered with a cache.Manager.
func NewCachedResolverWith(resolver *Resolver, c cache.Cache[[]byte]) *CachedResolver {
	return &CachedResolver{resolver: resolver, cache: c}
}

func (c *CachedResolver) Resolve(ctx context.Context) []byte {
	if img, ok := c.cache.Get(cacheKey); ok {
		if len(img) == 0 {
			return nil
		}
		return img
	}
	res := c.resolver.Run(ctx)
	if ctx.Err() == nil {
		// an empty entry remembers the fallback
		c.cache.Set(cacheKey, append([]byte{}, res.Image()...))
	}
	return res.Image()
}

// Invalidate forces the next Resolve to retry the sources.
func (c *CachedResolver) Invalidate() {
	c.cache.Delete(cacheKey)
}
