package wizard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"onboard/internal/types"
)

// minSlugLength is the shortest subdomain the platform accepts.
const minSlugLength = 3

// SlugChecker is the remote availability probe, implemented by the
// persistence service client.
type SlugChecker interface {
	// CheckSlugAvailable reports whether the candidate subdomain is free.
	CheckSlugAvailable(ctx context.Context, slug string) (bool, error)
}

// AvailabilityChecker runs debounced slug availability checks with a
// staleness guard: when an owner's candidate changes while their check is in
// flight, only a result matching the owner's current candidate may be
// applied. Generations are tracked per owner, so one session's typing never
// invalidates another session's check. A generation counter, not closures
// over mutable state, decides staleness.
type AvailabilityChecker struct {
	client   SlugChecker
	debounce time.Duration
	logger   *slog.Logger

	// group collapses concurrent checks of the same slug into one remote
	// call; two sessions probing the same candidate cost one upstream
	// request.
	group singleflight.Group

	mu   sync.Mutex
	gens map[string]uint64
}

// NewAvailabilityChecker creates a checker. debounce is how long a check
// waits before hitting the remote service, giving fast typists a chance to
// supersede it; zero disables the wait.
func NewAvailabilityChecker(client SlugChecker, debounce time.Duration, logger *slog.Logger) *AvailabilityChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &AvailabilityChecker{
		client:   client,
		debounce: debounce,
		logger:   logger,
		gens:     map[string]uint64{},
	}
}

// begin registers a new check for owner and returns its generation.
func (c *AvailabilityChecker) begin(owner string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[owner]++
	return c.gens[owner]
}

// isCurrent reports whether gen is still the owner's latest check.
func (c *AvailabilityChecker) isCurrent(owner string, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gens[owner]
}

// finish reports whether gen is still the owner's latest check and, when it
// is, clears the owner's bookkeeping so the map does not grow with sessions.
func (c *AvailabilityChecker) finish(owner string, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gens[owner] {
		return false
	}
	delete(c.gens, owner)
	return true
}

// Check resolves the availability of owner's candidate slug. The second
// return value reports whether the result may be applied to the record:
// false means the check went stale (the same owner submitted a newer
// candidate while this one was waiting or in flight) and its result must be
// discarded.
//
// Transport errors resolve to available: an infrastructure hiccup must never
// block the user from continuing.
func (c *AvailabilityChecker) Check(ctx context.Context, owner, slug string) (types.SlugAvailability, bool) {
	gen := c.begin(owner)

	if len(slug) < minSlugLength {
		return types.SlugTaken, c.finish(owner, gen)
	}

	if c.debounce > 0 {
		timer := time.NewTimer(c.debounce)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			c.finish(owner, gen)
			return types.SlugUnknown, false
		case <-timer.C:
		}
		// Superseded while waiting: skip the remote call entirely.
		if !c.isCurrent(owner, gen) {
			return types.SlugUnknown, false
		}
	}

	v, err, _ := c.group.Do(slug, func() (any, error) {
		return c.client.CheckSlugAvailable(ctx, slug)
	})
	available, _ := v.(bool)
	if err != nil {
		c.logger.Warn("slug availability check failed, defaulting to available",
			"slug", slug, "error", err)
		available = true
	}

	result := types.SlugTaken
	if available {
		result = types.SlugAvailable
	}
	return result, c.finish(owner, gen)
}
