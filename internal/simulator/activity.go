package simulator

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

// ActivityGenerator drives synthetic presence traffic: activity touches,
// online/offline transitions, and the periodic full user-list push.
// A seeded random source keeps demo runs reproducible.
type ActivityGenerator struct {
	sim   *Simulator
	store Store
	log   *slog.Logger
	rng   *rand.Rand

	activityInterval time.Duration
	usersInterval    time.Duration
}

// GeneratorOption configures the ActivityGenerator.
type GeneratorOption func(*ActivityGenerator)

// WithActivityInterval sets how often a random presence event fires.
func WithActivityInterval(d time.Duration) GeneratorOption {
	return func(g *ActivityGenerator) {
		if d > 0 {
			g.activityInterval = d
		}
	}
}

// WithUsersInterval sets how often the full user list is pushed.
func WithUsersInterval(d time.Duration) GeneratorOption {
	return func(g *ActivityGenerator) {
		if d > 0 {
			g.usersInterval = d
		}
	}
}

// WithGeneratorSeed re-seeds the random source.
func WithGeneratorSeed(seed int64) GeneratorOption {
	return func(g *ActivityGenerator) {
		g.rng = rand.New(rand.NewSource(seed))
	}
}

// NewActivityGenerator constructs a generator over the simulator service.
func NewActivityGenerator(sim *Simulator, store Store, log *slog.Logger, opts ...GeneratorOption) *ActivityGenerator {
	g := &ActivityGenerator{
		sim:              sim,
		store:            store,
		log:              log,
		rng:              rand.New(rand.NewSource(1)),
		activityInterval: 2 * time.Second,
		usersInterval:    10 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Start emits events until ctx is cancelled. The random source is only
// touched from this goroutine.
func (g *ActivityGenerator) Start(ctx context.Context) error {
	g.log.InfoContext(ctx, "activity generator started",
		"activity_interval", g.activityInterval,
		"users_interval", g.usersInterval)

	activity := time.NewTicker(g.activityInterval)
	defer activity.Stop()
	users := time.NewTicker(g.usersInterval)
	defer users.Stop()

	for {
		select {
		case <-activity.C:
			g.step(ctx)
		case <-users.C:
			g.sim.BroadcastUsers(ctx)
			g.sim.BroadcastStats(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// step fires one random presence event. Roughly: 60% activity touch,
// 20% someone comes online, 20% someone drops offline.
func (g *ActivityGenerator) step(ctx context.Context) {
	records, err := g.store.List(ctx)
	if err != nil {
		g.log.WarnContext(ctx, "activity step skipped", "error", err)
		return
	}
	if len(records) == 0 {
		return
	}

	var online, offline []*SessionRecord
	for _, rec := range records {
		if rec.IsOnline {
			online = append(online, rec)
		} else {
			offline = append(offline, rec)
		}
	}

	var stepErr error
	switch roll := g.rng.Float64(); {
	case roll < 0.6:
		if len(online) == 0 {
			return
		}
		stepErr = g.sim.TouchActivity(ctx, online[g.rng.Intn(len(online))].UserID)
	case roll < 0.8:
		if len(offline) == 0 {
			return
		}
		stepErr = g.sim.GoOnline(ctx, offline[g.rng.Intn(len(offline))].UserID)
	default:
		if len(online) == 0 {
			return
		}
		stepErr = g.sim.GoOffline(ctx, online[g.rng.Intn(len(online))].UserID)
	}
	if stepErr != nil {
		g.log.WarnContext(ctx, "activity event failed", "error", stepErr)
	}
}
