package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	triton "github.com/Meesho/BharatMLStack/helix-client/pkg/clients/predator/client/grpc"
	"google.golang.org/protobuf/proto"

	"github.com/jonwraymond/inferstore/cache"
	"github.com/jonwraymond/inferstore/fingerprint"
	"github.com/jonwraymond/inferstore/inflight"
	"github.com/jonwraymond/inferstore/observe"
	"github.com/jonwraymond/inferstore/tensor"
	"github.com/jonwraymond/inferstore/upstream"
)

// Config holds the controller's startup settings.
type Config struct {
	Mode     Mode
	Failover Failover

	// Inflight controls how shared upstream calls run.
	Inflight inflight.Config
}

// DefaultConfig returns serve mode without failover and detached shared calls.
func DefaultConfig() Config {
	return Config{
		Mode:     ModeServe,
		Failover: FailoverNone,
		Inflight: inflight.DefaultConfig(),
	}
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. Default: observe.NopLogger()
func WithLogger(l observe.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithMetrics sets the metrics recorder. Default: observe.NopMetrics()
func WithMetrics(m observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithClock sets the clock used for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller resolves cacheable calls against the store and the upstream.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Caching: only successful upstream responses are recorded. Write
//     failures are logged and never fail the call.
//   - Reads: store read failures count as misses.
//   - Deduplication: at most one upstream call per fingerprint runs at a
//     time within a Controller.
type Controller struct {
	cfg      Config
	store    cache.Store
	keyer    fingerprint.Keyer
	upstream upstream.Client
	offline  bool
	calls    *inflight.Group[[]byte]
	logger   observe.Logger
	metrics  observe.Metrics
	now      func() time.Time
}

// New creates a Controller. A nil up (or upstream.Offline) runs offline,
// which is only valid in serve mode.
func New(cfg Config, store cache.Store, keyer fingerprint.Keyer, up upstream.Client, opts ...Option) (*Controller, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: nil store", ErrInvalidConfig)
	}
	if keyer == nil {
		keyer = fingerprint.NewGenerator(nil, nil)
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeServe
	}
	if cfg.Failover == "" {
		cfg.Failover = FailoverNone
	}
	if _, err := ParseMode(string(cfg.Mode)); err != nil {
		return nil, err
	}
	if _, err := ParseFailover(string(cfg.Failover)); err != nil {
		return nil, err
	}

	offline := up == nil
	if _, ok := up.(upstream.Offline); ok {
		offline = true
	}
	if offline {
		if cfg.Mode == ModeCollect {
			return nil, fmt.Errorf("%w: collect mode needs an upstream", ErrInvalidConfig)
		}
		up = upstream.Offline{}
	}

	c := &Controller{
		cfg:      cfg,
		store:    store,
		keyer:    keyer,
		upstream: up,
		offline:  offline,
		calls:    inflight.New[[]byte](cfg.Inflight),
		logger:   observe.NopLogger(),
		metrics:  observe.NopMetrics(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Mode returns the configured mode.
func (c *Controller) Mode() Mode { return c.cfg.Mode }

// Failover returns the configured failover.
func (c *Controller) Failover() Failover { return c.cfg.Failover }

// Offline reports whether the controller runs without an upstream.
func (c *Controller) Offline() bool { return c.offline }

// Upstream returns the upstream client (upstream.Offline when offline).
func (c *Controller) Upstream() upstream.Client { return c.upstream }

// Store returns the cache store.
func (c *Controller) Store() cache.Store { return c.store }

// InFlight returns the number of fingerprints with a running upstream call.
func (c *Controller) InFlight() int { return c.calls.InFlight() }

// Waiting returns the number of requests attached to running upstream calls.
func (c *Controller) Waiting() int { return c.calls.Callers() }

// ModelInfer resolves an inference call. The response carries the caller's
// request id whether it came from the cache or the upstream.
func (c *Controller) ModelInfer(ctx context.Context, req *triton.ModelInferRequest) (*triton.ModelInferResponse, error) {
	r, err := tensor.FromProto(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	call := call{
		kind:    cache.KindInfer,
		fp:      c.keyer.Infer(r),
		model:   r.ModelName,
		version: r.ModelVersion,
		fetch: func(ctx context.Context) (proto.Message, error) {
			resp, err := c.upstream.ModelInfer(ctx, req)
			if err != nil {
				return nil, err
			}
			// The stored copy must not depend on which caller recorded it.
			resp.Id = ""
			return resp, nil
		},
	}

	payload, err := c.resolve(ctx, call)
	if err != nil {
		return nil, err
	}
	resp := &triton.ModelInferResponse{}
	if err := proto.Unmarshal(payload, resp); err != nil {
		return nil, fmt.Errorf("gateway: decode recorded response: %w", err)
	}
	resp.Id = req.GetId()
	return resp, nil
}

// ModelConfig resolves a model configuration call with the same mode rules
// as inference, under a separate fingerprint domain.
func (c *Controller) ModelConfig(ctx context.Context, req *triton.ModelConfigRequest) (*triton.ModelConfigResponse, error) {
	if req.GetName() == "" {
		return nil, fmt.Errorf("%w: model name is required", ErrInvalidRequest)
	}

	call := call{
		kind:    cache.KindModelConfig,
		fp:      c.keyer.ModelConfig(req.GetName(), req.GetVersion()),
		model:   req.GetName(),
		version: req.GetVersion(),
		fetch: func(ctx context.Context) (proto.Message, error) {
			return c.upstream.ModelConfig(ctx, req)
		},
	}

	payload, err := c.resolve(ctx, call)
	if err != nil {
		return nil, err
	}
	resp := &triton.ModelConfigResponse{}
	if err := proto.Unmarshal(payload, resp); err != nil {
		return nil, fmt.Errorf("gateway: decode recorded response: %w", err)
	}
	return resp, nil
}

// call describes one cacheable request.
type call struct {
	kind    cache.Kind
	fp      fingerprint.Fingerprint
	model   string
	version string
	fetch   func(ctx context.Context) (proto.Message, error)
}

func (c call) meta() observe.CallMeta {
	method := "ModelInfer"
	if c.kind == cache.KindModelConfig {
		method = "ModelConfig"
	}
	return observe.CallMeta{Method: method, Model: c.model, Version: c.version}
}

func (c *Controller) resolve(ctx context.Context, call call) ([]byte, error) {
	info := observe.CallInfoFrom(ctx)
	info.SetFingerprint(call.fp.String())

	if c.cfg.Mode == ModeCollect {
		return c.collect(ctx, call, info)
	}
	return c.serve(ctx, call, info)
}

func (c *Controller) serve(ctx context.Context, call call, info *observe.CallInfo) ([]byte, error) {
	meta := call.meta()
	cached, outcome := c.lookup(ctx, call)
	c.metrics.RecordCacheLookup(ctx, meta, outcome)
	if cached != nil {
		info.SetOutcome(observe.OutcomeHit)
		return cached, nil
	}

	if c.offline {
		info.SetOutcome(observe.OutcomeMiss)
		return nil, fmt.Errorf("%w: %s", ErrNoRecording, call.fp)
	}

	payload, err := c.forward(ctx, call, info, true)
	if err != nil {
		info.SetOutcome(observe.OutcomeError)
		return nil, unavailable(err)
	}
	info.SetOutcome(observe.OutcomeMiss)
	return payload, nil
}

func (c *Controller) collect(ctx context.Context, call call, info *observe.CallInfo) ([]byte, error) {
	payload, err := c.forward(ctx, call, info, false)
	if err == nil {
		info.SetOutcome(observe.OutcomeForward)
		return payload, nil
	}
	if c.cfg.Failover != FailoverCache || !upstream.IsUnavailable(err) {
		info.SetOutcome(observe.OutcomeError)
		return nil, unavailable(err)
	}

	meta := call.meta()
	cached, outcome := c.lookup(ctx, call)
	if cached == nil {
		c.metrics.RecordCacheLookup(ctx, meta, outcome)
		info.SetOutcome(observe.OutcomeError)
		return nil, unavailable(err)
	}
	c.metrics.RecordCacheLookup(ctx, meta, observe.OutcomeFallback)
	info.SetOutcome(observe.OutcomeFallback)
	c.logger.Warn(ctx, "upstream unavailable, answered from cache",
		observe.F("fingerprint", call.fp.String()),
		observe.F("model", call.model),
		observe.F("error", err),
	)
	return cached, nil
}

// lookup returns the recorded payload, or nil with the miss outcome
// (miss or error). Corrupt entries and read failures are logged and
// treated as misses.
func (c *Controller) lookup(ctx context.Context, call call) ([]byte, string) {
	e, err := c.store.Get(ctx, call.fp)
	switch {
	case err == nil && e.Kind == call.kind:
		return e.Payload, observe.OutcomeHit
	case err == nil:
		c.logger.Warn(ctx, "cache entry has unexpected kind",
			observe.F("fingerprint", call.fp.String()),
			observe.F("kind", string(e.Kind)),
		)
		return nil, observe.OutcomeMiss
	case errors.Is(err, cache.ErrNotFound):
		return nil, observe.OutcomeMiss
	case errors.Is(err, cache.ErrCorruptEntry):
		c.logger.Warn(ctx, "ignoring corrupt cache entry",
			observe.F("fingerprint", call.fp.String()),
			observe.F("error", err),
		)
		return nil, observe.OutcomeMiss
	default:
		c.logger.Warn(ctx, "cache read failed",
			observe.F("fingerprint", call.fp.String()),
			observe.F("error", err),
		)
		return nil, observe.OutcomeError
	}
}

// forward runs the upstream call once per fingerprint and records a
// successful response. With recheck, the call first looks in the store
// again so a caller that missed just before another episode finished does
// not trigger a second upstream call.
func (c *Controller) forward(ctx context.Context, call call, info *observe.CallInfo, recheck bool) ([]byte, error) {
	payload, shared, err := c.calls.Do(ctx, call.fp, func(ctx context.Context) ([]byte, error) {
		if recheck {
			if e, err := c.store.Get(ctx, call.fp); err == nil && e.Kind == call.kind {
				return e.Payload, nil
			}
		}

		msg, err := call.fetch(ctx)
		if err != nil {
			return nil, err
		}
		payload, err := proto.MarshalOptions{Deterministic: true}.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("gateway: encode response: %w", err)
		}
		c.record(ctx, call, payload)
		return payload, nil
	})
	if shared {
		info.SetShared(true)
		c.metrics.RecordInflightShared(ctx, call.meta())
	}
	return payload, err
}

func (c *Controller) record(ctx context.Context, call call, payload []byte) {
	e := &cache.Entry{
		Fingerprint: call.fp,
		Kind:        call.kind,
		Model:       call.model,
		Version:     call.version,
		Payload:     payload,
		CreatedAt:   c.now().UTC(),
	}
	if err := c.store.Put(ctx, e); err != nil {
		c.metrics.RecordCacheWrite(ctx, call.meta(), observe.WriteFailed)
		c.logger.Warn(ctx, "cache write failed",
			observe.F("fingerprint", call.fp.String()),
			observe.F("model", call.model),
			observe.F("error", err),
		)
		return
	}
	c.metrics.RecordCacheWrite(ctx, call.meta(), observe.WriteStored)
	c.logger.Debug(ctx, "recorded response",
		observe.F("fingerprint", call.fp.String()),
		observe.F("kind", string(call.kind)),
		observe.F("bytes", len(payload)),
	)
}

// unavailable wraps upstream outages in ErrUpstreamUnavailable and passes
// every other error through.
func unavailable(err error) error {
	if upstream.IsUnavailable(err) {
		return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	return err
}
