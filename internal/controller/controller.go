package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/searchforge/creators_proxy/internal/contract"
	"github.com/searchforge/creators_proxy/obs"
	"github.com/searchforge/creators_proxy/query"
	"github.com/searchforge/creators_proxy/sources"
)

const fetchKey = "creators"

var tracer = otel.Tracer("github.com/searchforge/creators_proxy/internal/controller")

// Source defines the behaviour required of the upstream creator listing.
type Source interface {
	Fetch(ctx context.Context) ([]contract.Creator, error)
}

// Config groups controller dependencies.
type Config struct {
	Cache  *Cache
	Logger *zap.Logger
}

// Controller decides when the upstream is fetched and answers queries from
// the cached listing.
type Controller struct {
	source Source
	cache  *Cache
	group  singleflight.Group
	logger *zap.Logger
}

// New constructs a controller. A nil cache starts empty.
func New(src Source, cfg Config) (*Controller, error) {
	if src == nil {
		return nil, fmt.Errorf("source required")
	}
	cache := cfg.Cache
	if cache == nil {
		cache = NewCache()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Controller{
		source: src,
		cache:  cache,
		logger: logger,
	}, nil
}

// Creators answers a query, populating the cache first if it is empty. A
// failed fetch leaves the cache empty so the next call retries. The boolean
// reports whether the answer came from an already populated cache.
func (c *Controller) Creators(ctx context.Context, p contract.Params) (contract.Envelope, bool, error) {
	snap, hit := c.cache.Get()
	obs.RecordCacheLookup(hit)
	if !hit {
		var err error
		snap, err = c.load(ctx)
		if err != nil {
			return contract.Envelope{}, false, err
		}
	}

	_, span := tracer.Start(ctx, "query.Apply")
	defer span.End()

	env := query.Apply(snap.Records, p)
	span.SetAttributes(
		attribute.Int("creators.cached", len(snap.Records)),
		attribute.Int("creators.total", env.Total),
		attribute.Int("creators.returned", len(env.Results)),
	)
	return env, hit, nil
}

// Warm populates the cache if it is empty.
func (c *Controller) Warm(ctx context.Context) error {
	if _, ok := c.cache.Get(); ok {
		return nil
	}
	_, err := c.load(ctx)
	return err
}

// Refresh always fetches from upstream. Only a successful fetch overwrites
// the cache; on failure the previous snapshot stays in place.
func (c *Controller) Refresh(ctx context.Context) (int, error) {
	records, err := c.fetch(ctx)
	if err != nil {
		obs.RecordRefresh(false)
		c.logger.Warn("cache refresh failed, keeping previous snapshot", zap.Error(err))
		return 0, err
	}
	snap := c.cache.Set(records)
	obs.RecordRefresh(true)
	c.logger.Info("cache refreshed", zap.Int("records", len(snap.Records)))
	return len(snap.Records), nil
}

// Status reports the cache state.
func (c *Controller) Status() Status {
	return c.cache.Status()
}

// load collapses concurrent cold-cache fetches into one upstream call.
func (c *Controller) load(ctx context.Context) (Snapshot, error) {
	// Detach from the caller so one cancelled request does not fail the
	// others waiting on the same fetch.
	fetchCtx := context.WithoutCancel(ctx)
	v, err, shared := c.group.Do(fetchKey, func() (any, error) {
		if snap, ok := c.cache.Get(); ok {
			return snap, nil
		}
		records, err := c.fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		return c.cache.Set(records), nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	if shared {
		c.logger.Debug("joined in-flight upstream fetch")
	}
	return v.(Snapshot), nil
}

func (c *Controller) fetch(ctx context.Context) ([]contract.Creator, error) {
	ctx, span := tracer.Start(ctx, "upstream.Fetch")
	defer span.End()

	start := time.Now()
	records, err := c.source.Fetch(ctx)
	took := time.Since(start)

	if err != nil {
		kind := string(sources.KindUnreachable)
		var upErr *sources.UpstreamError
		if errors.As(err, &upErr) {
			kind = string(upErr.Kind)
			span.SetAttributes(attribute.Int("http.status_code", upErr.StatusCode))
		}
		obs.RecordUpstreamFetch(took, kind)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		c.cache.RecordError(err)
		c.logger.Error("upstream fetch failed",
			zap.String("kind", kind),
			zap.Duration("took", took),
			zap.Error(err),
		)
		return nil, err
	}

	obs.RecordUpstreamFetch(took, "")
	span.SetAttributes(attribute.Int("creators.fetched", len(records)))
	return records, nil
}
