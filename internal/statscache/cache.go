package statscache

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"farmScope/internal/metrics"
	"farmScope/internal/model"
)

const (
	// DefaultTTL is the freshness window of a cached report.
	DefaultTTL = 300 * time.Second
	// DefaultTimeout bounds a single aggregation.
	DefaultTimeout = 2 * time.Minute

	deliveryTimeout = 30 * time.Second

	DuplicateText = "I'm still checking, will reply shortly.."
	FailureText   = "Unable to obtain stats"
	EmptyText     = "No pools configured."
)

var checkingTexts = []string{
	"Finding alfa, hang on..",
	"Looking up stats, give me a minute..",
	"Baking numbers from the chain, please wait..",
}

// Source computes the current pool stats.
type Source interface {
	Stats(ctx context.Context) ([]model.PairStat, error)
}

// Renderer turns stats into the message delivered to requesters.
type Renderer interface {
	Render(stats []model.PairStat) string
}

// Notifier delivers a message to a requester.
type Notifier interface {
	Notify(ctx context.Context, requester int64, text string) error
}

// ReplyKind tells how a request was served.
type ReplyKind int

const (
	ReplyCached ReplyKind = iota
	ReplyStarted
	ReplyDuplicate
)

func (k ReplyKind) String() string {
	switch k {
	case ReplyCached:
		return "hit"
	case ReplyStarted:
		return "started"
	case ReplyDuplicate:
		return "duplicate"
	default:
		return fmt.Sprintf("ReplyKind(%d)", int(k))
	}
}

// Reply is the immediate answer to a request. Cached replies carry the
// report; the others carry a wait notice and the report follows via Notifier.
type Reply struct {
	Kind ReplyKind
	Text string
}

// Config controls the cache.
type Config struct {
	TTL     time.Duration
	Timeout time.Duration
	// NotifyAllOnFailure also sends the failure notice to requesters that
	// joined an aggregation they did not start.
	NotifyAllOnFailure bool
}

// Option customizes a Cache.
type Option func(*Cache)

// WithClock overrides the time source used for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithPicker overrides how the wait notice is chosen.
func WithPicker(pick func(n int) int) Option {
	return func(c *Cache) {
		if pick != nil {
			c.pick = pick
		}
	}
}

// Snapshot is a consistent copy of the cache contents.
type Snapshot struct {
	Stats     []model.PairStat
	Message   string
	UpdatedAt time.Time
	Fresh     bool
	InFlight  bool
}

// Cache serves the rendered report within the freshness window and runs at
// most one aggregation at a time, fanning the result out to every requester
// that arrived while it was running.
type Cache struct {
	cfg      Config
	source   Source
	renderer Renderer
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
	pick     func(n int) int

	baseCtx context.Context
	cancel  context.CancelFunc

	mu        sync.Mutex
	message   string
	stats     []model.PairStat
	updatedAt time.Time
	inFlight  bool
	waiters   []int64
	waiting   map[int64]struct{}
	done      chan struct{}
}

func New(cfg Config, source Source, renderer Renderer, notifier Notifier, logger *zap.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	done := make(chan struct{})
	close(done)

	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		cfg:      cfg,
		source:   source,
		renderer: renderer,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		pick:     rand.Intn,
		baseCtx:  ctx,
		cancel:   cancel,
		waiting:  make(map[int64]struct{}),
		done:     done,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request serves a stats request from requester.
func (c *Cache) Request(requester int64) Reply {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.freshLocked(now) {
		metrics.CacheRequestsTotal.WithLabelValues(ReplyCached.String()).Inc()
		c.logger.Debug("cache hit", zap.Int64("requester", requester))
		return Reply{Kind: ReplyCached, Text: c.message}
	}

	c.addWaiterLocked(requester)

	if c.inFlight {
		metrics.CacheRequestsTotal.WithLabelValues(ReplyDuplicate.String()).Inc()
		c.logger.Info("received duplicate request", zap.Int64("requester", requester))
		return Reply{Kind: ReplyDuplicate, Text: DuplicateText}
	}

	c.inFlight = true
	c.done = make(chan struct{})
	metrics.CacheRequestsTotal.WithLabelValues(ReplyStarted.String()).Inc()
	c.logger.Info("cache miss, starting aggregation", zap.Int64("requester", requester))

	go c.run(requester, now, c.done)

	return Reply{Kind: ReplyStarted, Text: checkingTexts[c.pick(len(checkingTexts))]}
}

// Wait returns a channel closed when the current (or last) aggregation has
// completed and its notifications have been delivered.
func (c *Cache) Wait() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Snapshot returns the cached stats and their freshness.
func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := make([]model.PairStat, len(c.stats))
	copy(stats, c.stats)
	return Snapshot{
		Stats:     stats,
		Message:   c.message,
		UpdatedAt: c.updatedAt,
		Fresh:     c.freshLocked(c.now()),
		InFlight:  c.inFlight,
	}
}

// Close cancels a running aggregation and waits for it to finish.
func (c *Cache) Close() {
	c.cancel()
	<-c.Wait()
}

func (c *Cache) freshLocked(now time.Time) bool {
	return !c.updatedAt.IsZero() && now.Sub(c.updatedAt) < c.cfg.TTL
}

func (c *Cache) addWaiterLocked(requester int64) {
	if _, ok := c.waiting[requester]; ok {
		return
	}
	c.waiting[requester] = struct{}{}
	c.waiters = append(c.waiters, requester)
	metrics.CacheWaiters.Set(float64(len(c.waiters)))
}

func (c *Cache) run(trigger int64, startedAt time.Time, done chan struct{}) {
	defer close(done)

	ctx, cancel := context.WithTimeout(c.baseCtx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	stats, err := c.compute(ctx)
	metrics.AggregationDuration.Observe(time.Since(start).Seconds())

	var message string
	if err == nil {
		message = c.renderer.Render(stats)
		if message == "" {
			message = EmptyText
		}
	}

	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.waiting = make(map[int64]struct{})
	c.inFlight = false
	if err == nil {
		c.message = message
		c.stats = stats
		c.updatedAt = startedAt
	}
	c.mu.Unlock()
	metrics.CacheWaiters.Set(0)

	if err != nil {
		metrics.AggregationsTotal.WithLabelValues("failure").Inc()
		c.logger.Error("aggregation failed", zap.Int64("trigger", trigger), zap.Int("waiters", len(waiters)), zap.Error(err))

		recipients := []int64{trigger}
		if c.cfg.NotifyAllOnFailure {
			recipients = waiters
		}
		c.deliver(recipients, FailureText)
		return
	}

	metrics.AggregationsTotal.WithLabelValues("success").Inc()
	metrics.CacheLastUpdate.Set(float64(startedAt.Unix()))
	c.logger.Info("aggregation complete", zap.Int("pools", len(stats)), zap.Int("waiters", len(waiters)), zap.Duration("elapsed", time.Since(start)))
	c.deliver(waiters, message)
}

func (c *Cache) compute(ctx context.Context) (stats []model.PairStat, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("aggregation panic: %v", r)
		}
	}()
	if c.source == nil {
		return nil, fmt.Errorf("stats source is nil")
	}
	return c.source.Stats(ctx)
}

func (c *Cache) deliver(recipients []int64, text string) {
	if c.notifier == nil {
		return
	}
	for _, id := range recipients {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		if err := c.notifier.Notify(ctx, id, text); err != nil {
			c.logger.Warn("notify requester", zap.Int64("requester", id), zap.Error(err))
		}
		cancel()
	}
}
