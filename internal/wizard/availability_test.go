package wizard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"onboard/internal/types"
)

// fakeSlugChecker returns canned results and can block until released to
// simulate an in-flight remote check.
type fakeSlugChecker struct {
	mu        sync.Mutex
	available map[string]bool
	err       error
	block     chan struct{}
	calls     int
}

func (f *fakeSlugChecker) CheckSlugAvailable(ctx context.Context, slug string) (bool, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if f.err != nil {
		return false, f.err
	}
	return f.available[slug], nil
}

func (f *fakeSlugChecker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestCheck_AvailableAndTaken(t *testing.T) {
	fake := &fakeSlugChecker{available: map[string]bool{"acme": true, "taken": false}}
	c := NewAvailabilityChecker(fake, 0, nil)

	result, ok := c.Check(context.Background(), "sess", "acme")
	assert.True(t, ok)
	assert.Equal(t, types.SlugAvailable, result)

	result, ok = c.Check(context.Background(), "sess", "taken")
	assert.True(t, ok)
	assert.Equal(t, types.SlugTaken, result)
}

func TestCheck_ShortSlugNeverHitsRemote(t *testing.T) {
	fake := &fakeSlugChecker{}
	c := NewAvailabilityChecker(fake, 0, nil)

	result, ok := c.Check(context.Background(), "sess", "ab")
	assert.True(t, ok)
	assert.Equal(t, types.SlugTaken, result)
	assert.Equal(t, 0, fake.callCount())
}

// Optimistic default: a transport failure must never block the user.
func TestCheck_ErrorDefaultsToAvailable(t *testing.T) {
	fake := &fakeSlugChecker{err: errors.New("gateway timeout")}
	c := NewAvailabilityChecker(fake, 0, nil)

	result, ok := c.Check(context.Background(), "sess", "acme")
	assert.True(t, ok)
	assert.Equal(t, types.SlugAvailable, result)
}

// A result arriving after the same owner registered a newer candidate is
// stale and must be discarded.
func TestCheck_StaleResultDiscarded(t *testing.T) {
	fake := &fakeSlugChecker{
		available: map[string]bool{"first": true, "second": true},
		block:     make(chan struct{}),
	}
	c := NewAvailabilityChecker(fake, 0, nil)

	type outcome struct {
		result types.SlugAvailability
		ok     bool
	}
	done := make(chan outcome, 1)
	go func() {
		r, ok := c.Check(context.Background(), "sess", "first")
		done <- outcome{r, ok}
	}()

	// Wait for the first check to reach the remote call, then supersede it.
	for fake.callCount() == 0 {
		time.Sleep(time.Millisecond)
	}
	fake.mu.Lock()
	release := fake.block
	fake.block = nil
	fake.mu.Unlock()

	second, ok := c.Check(context.Background(), "sess", "second")
	assert.True(t, ok)
	assert.Equal(t, types.SlugAvailable, second)

	close(release)
	first := <-done
	assert.False(t, first.ok, "superseded check must not be applied")
}

// Another owner's check never marks this owner's in-flight check stale.
func TestCheck_IndependentOwnersDoNotInterfere(t *testing.T) {
	fake := &fakeSlugChecker{
		available: map[string]bool{"alpha": true, "beta": false},
		block:     make(chan struct{}),
	}
	c := NewAvailabilityChecker(fake, 0, nil)

	type outcome struct {
		result types.SlugAvailability
		ok     bool
	}
	results := make(chan outcome, 2)
	go func() {
		r, ok := c.Check(context.Background(), "sess-a", "alpha")
		results <- outcome{r, ok}
	}()
	go func() {
		r, ok := c.Check(context.Background(), "sess-b", "beta")
		results <- outcome{r, ok}
	}()

	// Both checks in flight at once, then released together.
	for fake.callCount() < 2 {
		time.Sleep(time.Millisecond)
	}
	close(fake.block)

	got := map[types.SlugAvailability]bool{}
	for i := 0; i < 2; i++ {
		o := <-results
		assert.True(t, o.ok, "unsuperseded check must stay current")
		got[o.result] = true
	}
	assert.True(t, got[types.SlugAvailable], "alpha should resolve available")
	assert.True(t, got[types.SlugTaken], "beta should resolve taken")
}

// A debounced check that is superseded while waiting skips the remote call.
func TestCheck_DebounceSupersededSkipsRemote(t *testing.T) {
	fake := &fakeSlugChecker{available: map[string]bool{"newer": true}}
	c := NewAvailabilityChecker(fake, 50*time.Millisecond, nil)

	done := make(chan bool, 1)
	go func() {
		_, ok := c.Check(context.Background(), "sess", "older")
		done <- ok
	}()

	// Register a newer candidate before the older one's debounce elapses.
	time.Sleep(5 * time.Millisecond)
	go c.Check(context.Background(), "sess", "newer")

	assert.False(t, <-done)
	// Only the newer candidate reached the remote service.
	assert.Eventually(t, func() bool { return fake.callCount() == 1 },
		time.Second, 5*time.Millisecond)
}

// Concurrent checks for the same slug share one remote call, even across
// owners.
func TestCheck_ConcurrentSameSlugDeduped(t *testing.T) {
	fake := &fakeSlugChecker{
		available: map[string]bool{"acme": true},
		block:     make(chan struct{}),
	}
	c := NewAvailabilityChecker(fake, 0, nil)

	results := make(chan types.SlugAvailability, 2)
	owners := []string{"sess-a", "sess-b"}
	for _, owner := range owners {
		go func(owner string) {
			r, _ := c.Check(context.Background(), owner, "acme")
			results <- r
		}(owner)
	}

	for fake.callCount() == 0 {
		time.Sleep(time.Millisecond)
	}
	// Give the second caller time to join the in-flight call before release.
	time.Sleep(10 * time.Millisecond)
	close(fake.block)

	assert.Equal(t, types.SlugAvailable, <-results)
	assert.Equal(t, types.SlugAvailable, <-results)
	assert.Equal(t, 1, fake.callCount())
}

func TestCheck_ContextCancelled(t *testing.T) {
	fake := &fakeSlugChecker{}
	c := NewAvailabilityChecker(fake, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, ok := c.Check(ctx, "sess", "acme")
	assert.False(t, ok)
	assert.Equal(t, types.SlugUnknown, result)
	assert.Equal(t, 0, fake.callCount())
}
