package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/recall/pkg/models"
)

// scriptedSource hands out records in order, honoring the watermark
// the way the real log store does: only records strictly newer than
// the watermark are visible, newest first.
type scriptedSource struct {
	mu      sync.Mutex
	records []*models.InteractionRecord // ascending by DatetimeUTC
	calls   int
}

func (s *scriptedSource) LatestSince(ctx context.Context, watermark string) (*models.InteractionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	var latest *models.InteractionRecord
	for _, rec := range s.records {
		if watermark == "" || rec.DatetimeUTC > watermark {
			latest = rec
		}
	}
	return latest, nil
}

func (s *scriptedSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// collectingApply records applied records and can fail on demand.
type collectingApply struct {
	mu      sync.Mutex
	applied []string
	failOn  map[string]bool
}

func (c *collectingApply) apply(ctx context.Context, rec *models.InteractionRecord) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applied = append(c.applied, rec.ID)
	if c.failOn[rec.ID] {
		return false, errors.New("update failed")
	}
	return true, nil
}

func (c *collectingApply) appliedIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.applied...)
}

func fastOptions() Options {
	return Options{
		Interval:          5 * time.Millisecond,
		StopCheckInterval: time.Millisecond,
		StopTimeout:       time.Second,
	}
}

// TestWatermarkAdvancesRegardlessOfApplyOutcome is the core loop
// invariant: after processing a sequence of records, the watermark is
// the last record's timestamp even when some updates failed.
func TestWatermarkAdvancesRegardlessOfApplyOutcome(t *testing.T) {
	source := &scriptedSource{records: []*models.InteractionRecord{
		{ID: "r1", Prompt: "one", Model: "gpt-4", DatetimeUTC: "2024-01-01T10:00:00"},
		{ID: "r2", Prompt: "two", Model: "gpt-4", DatetimeUTC: "2024-01-01T11:00:00"},
		{ID: "r3", Prompt: "three", Model: "gpt-4", DatetimeUTC: "2024-01-01T12:00:00"},
	}}
	apply := &collectingApply{failOn: map[string]bool{"r3": true}}

	m := New(fastOptions(), source, apply.apply, zerolog.Nop())
	m.Start()
	defer m.Stop()

	// Only r3 is visible at first (no watermark -> single latest
	// record); r1 and r2 are never revisited.
	require.Eventually(t, func() bool {
		return m.Watermark() == "2024-01-01T12:00:00"
	}, time.Second, time.Millisecond)

	assert.Equal(t, []string{"r3"}, apply.appliedIDs())

	// A newer record shows up after the failed r3 apply and is still
	// picked up from the advanced watermark.
	source.mu.Lock()
	source.records = append(source.records, &models.InteractionRecord{
		ID: "r4", Prompt: "four", Model: "gpt-4", DatetimeUTC: "2024-01-01T13:00:00",
	})
	source.mu.Unlock()

	require.Eventually(t, func() bool {
		return m.Watermark() == "2024-01-01T13:00:00"
	}, time.Second, time.Millisecond)

	assert.Equal(t, []string{"r3", "r4"}, apply.appliedIDs())
}

// TestEmptyPromptSkipsApply verifies blank prompts advance the
// watermark without invoking the updater.
func TestEmptyPromptSkipsApply(t *testing.T) {
	source := &scriptedSource{records: []*models.InteractionRecord{
		{ID: "blank", Prompt: "   \n", Model: "gpt-4", DatetimeUTC: "2024-01-01T10:00:00"},
	}}
	apply := &collectingApply{}

	m := New(fastOptions(), source, apply.apply, zerolog.Nop())
	m.Start()
	defer m.Stop()

	require.Eventually(t, func() bool {
		return m.Watermark() == "2024-01-01T10:00:00"
	}, time.Second, time.Millisecond)

	assert.Empty(t, apply.appliedIDs())
}

// TestStartIdempotent verifies double Start spawns one worker.
func TestStartIdempotent(t *testing.T) {
	source := &scriptedSource{}
	apply := &collectingApply{}

	// Long interval: each live worker polls exactly once up front.
	opts := Options{
		Interval:          time.Hour,
		StopCheckInterval: time.Millisecond,
		StopTimeout:       time.Second,
	}
	m := New(opts, source, apply.apply, zerolog.Nop())
	m.Start()
	m.Start()
	defer m.Stop()

	require.Eventually(t, func() bool {
		return source.callCount() >= 1
	}, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 1, source.callCount())
	assert.True(t, m.Running())
}

// TestStopBeforeStartIsNoop verifies lifecycle edges.
func TestStopBeforeStartIsNoop(t *testing.T) {
	m := New(fastOptions(), &scriptedSource{}, (&collectingApply{}).apply, zerolog.Nop())

	m.Stop()
	assert.False(t, m.Running())

	m.Start()
	assert.True(t, m.Running())

	m.Stop()
	m.Stop() // reentrant
	assert.False(t, m.Running())
}

// TestStopHonoredPromptly verifies the sliced sleep observes the stop
// signal well before the poll interval elapses.
func TestStopHonoredPromptly(t *testing.T) {
	opts := Options{
		Interval:          time.Hour,
		StopCheckInterval: time.Millisecond,
		StopTimeout:       time.Second,
	}
	m := New(opts, &scriptedSource{}, (&collectingApply{}).apply, zerolog.Nop())
	m.Start()

	start := time.Now()
	m.Stop()
	assert.Less(t, time.Since(start), opts.StopTimeout)
	assert.False(t, m.Running())
}

// TestApplyPanicDoesNotKillLoop verifies a panicking update is
// contained and the loop keeps processing later records.
func TestApplyPanicDoesNotKillLoop(t *testing.T) {
	source := &scriptedSource{records: []*models.InteractionRecord{
		{ID: "boom", Prompt: "explode", Model: "gpt-4", DatetimeUTC: "2024-01-01T10:00:00"},
	}}

	var mu sync.Mutex
	var applied []string
	apply := func(ctx context.Context, rec *models.InteractionRecord) (bool, error) {
		mu.Lock()
		applied = append(applied, rec.ID)
		mu.Unlock()
		if rec.ID == "boom" {
			panic("updater exploded")
		}
		return true, nil
	}

	m := New(fastOptions(), source, apply, zerolog.Nop())
	m.Start()
	defer m.Stop()

	require.Eventually(t, func() bool {
		return m.Watermark() == "2024-01-01T10:00:00"
	}, time.Second, time.Millisecond)

	source.mu.Lock()
	source.records = append(source.records, &models.InteractionRecord{
		ID: "fine", Prompt: "carry on", Model: "gpt-4", DatetimeUTC: "2024-01-01T11:00:00",
	})
	source.mu.Unlock()

	require.Eventually(t, func() bool {
		return m.Watermark() == "2024-01-01T11:00:00"
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"boom", "fine"}, applied)
}

// TestRestartAfterStop verifies a stopped monitor can start again.
func TestRestartAfterStop(t *testing.T) {
	source := &scriptedSource{records: []*models.InteractionRecord{
		{ID: "r1", Prompt: "one", Model: "gpt-4", DatetimeUTC: "2024-01-01T10:00:00"},
	}}
	apply := &collectingApply{}

	m := New(fastOptions(), source, apply.apply, zerolog.Nop())
	m.Start()
	require.Eventually(t, func() bool {
		return m.Watermark() == "2024-01-01T10:00:00"
	}, time.Second, time.Millisecond)
	m.Stop()

	m.Start()
	assert.True(t, m.Running())
	m.Stop()
}
