package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sailboat/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu     sync.Mutex
	states map[string]model.TriggerState
	fired  map[string]int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{states: map[string]model.TriggerState{}, fired: map[string]int{}}
}

func (m *memoryStore) Save(_ context.Context, state *model.TriggerState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.ScheduleID] = *state
	return nil
}

func (m *memoryStore) MarkFired(_ context.Context, id string, firedAt time.Time, next *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[id]
	if !ok {
		return fmt.Errorf("no state for %s", id)
	}
	s.LastFireAt.Time, s.LastFireAt.Valid = firedAt, true
	if next != nil {
		s.NextFireAt.Time, s.NextFireAt.Valid = *next, true
	}
	s.FireCount++
	m.states[id] = s
	m.fired[id]++
	return nil
}

func (m *memoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, id)
	return nil
}

func (m *memoryStore) List(_ context.Context) ([]model.TriggerState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.TriggerState, 0, len(m.states))
	for _, s := range m.states {
		out = append(out, s)
	}
	return out, nil
}

func (m *memoryStore) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.states[id]
	return ok
}

func newTestCore(t *testing.T, cfg Config, store Store) *Core {
	t.Helper()
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	c := New(cfg, store, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.Stop(ctx)
	})
	return c
}

func TestCore_ArmDisarm(t *testing.T) {
	store := newMemoryStore()
	c := newTestCore(t, Config{}, store)
	ctx := context.Background()

	def := Definition{ScheduleID: "a", Mode: model.TriggerModeInterval, Rule: []byte(`{"hours": 1}`)}
	require.NoError(t, c.Arm(ctx, def, nil))
	assert.True(t, c.IsArmed("a"))
	assert.True(t, store.has("a"))

	next, err := c.NextFireTime("a")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), next, 5*time.Second)

	err = c.Arm(ctx, def, nil)
	assert.ErrorIs(t, err, ErrAlreadyArmed)

	armed := c.Armed()
	require.Len(t, armed, 1)
	assert.Equal(t, StateArmed, armed[0].State)

	require.NoError(t, c.Disarm(ctx, "a"))
	assert.False(t, c.IsArmed("a"))
	assert.False(t, store.has("a"))

	assert.ErrorIs(t, c.Disarm(ctx, "a"), ErrJobNotFound)
	_, err = c.NextFireTime("a")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestCore_ArmRejectsInvalidRules(t *testing.T) {
	c := newTestCore(t, Config{}, nil)
	ctx := context.Background()

	err := c.Arm(ctx, Definition{ScheduleID: "bad", Mode: model.TriggerModeInterval, Rule: []byte(`{"seconds": -1}`)}, nil)
	assert.ErrorIs(t, err, ErrInvalidTrigger)

	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	err = c.Arm(ctx, Definition{ScheduleID: "past", Mode: model.TriggerModeDate, Rule: []byte(`{"run_date": "` + past + `"}`)}, nil)
	assert.ErrorIs(t, err, ErrInvalidTrigger)

	assert.Empty(t, c.Armed())
}

func TestCore_ValidateRejectsPastDate(t *testing.T) {
	store := newMemoryStore()
	c := newTestCore(t, Config{}, store)

	past := time.Now().Add(-time.Minute).UTC().Format(time.RFC3339)
	assert.ErrorIs(t, c.Validate(model.TriggerModeDate, []byte(`{"run_date": "`+past+`"}`)), ErrInvalidTrigger)

	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	assert.NoError(t, c.Validate(model.TriggerModeDate, []byte(`{"run_date": "`+future+`"}`)))
	assert.NoError(t, c.Validate(model.TriggerModeInterval, []byte(`{}`)))

	assert.Empty(t, c.Armed())
	assert.Empty(t, store.states)
}

func TestCore_IntervalFiresRepeatedly(t *testing.T) {
	store := newMemoryStore()
	c := newTestCore(t, Config{}, store)
	c.Start()

	var fires int32
	cb := func(_ context.Context, f Fire) {
		assert.Equal(t, "tick", f.ScheduleID)
		assert.False(t, f.Final)
		atomic.AddInt32(&fires, 1)
	}
	require.NoError(t, c.Arm(context.Background(), Definition{ScheduleID: "tick", Mode: model.TriggerModeInterval, Rule: []byte(`{"seconds": 1}`)}, cb))

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&fires) >= 2 }, 5*time.Second, 50*time.Millisecond)
	assert.True(t, c.IsArmed("tick"))

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.GreaterOrEqual(t, store.fired["tick"], 2)
	assert.True(t, store.states["tick"].LastFireAt.Valid)
}

func TestCore_OverlappingFires(t *testing.T) {
	c := newTestCore(t, Config{}, nil)
	c.Start()

	var running, peak int32
	cb := func(ctx context.Context, _ Fire) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		select {
		case <-time.After(2500 * time.Millisecond):
		case <-ctx.Done():
		}
		atomic.AddInt32(&running, -1)
	}
	require.NoError(t, c.Arm(context.Background(), Definition{ScheduleID: "slow", Mode: model.TriggerModeInterval, Rule: []byte(`{"seconds": 1}`)}, cb))

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&peak) >= 2 }, 6*time.Second, 50*time.Millisecond)
}

func TestCore_DateFiresOnceAndDisarms(t *testing.T) {
	store := newMemoryStore()
	c := newTestCore(t, Config{}, store)
	c.Start()

	var fires int32
	final := make(chan bool, 4)
	cb := func(_ context.Context, f Fire) {
		atomic.AddInt32(&fires, 1)
		final <- f.Final
	}
	runAt := time.Now().Add(2 * time.Second).UTC().Format(time.RFC3339)
	require.NoError(t, c.Arm(context.Background(), Definition{ScheduleID: "once", Mode: model.TriggerModeDate, Rule: []byte(`{"run_date": "` + runAt + `"}`)}, cb))

	select {
	case f := <-final:
		assert.True(t, f)
	case <-time.After(5 * time.Second):
		t.Fatal("date trigger did not fire")
	}
	assert.False(t, c.IsArmed("once"))
	assert.False(t, store.has("once"))

	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fires))
}

func TestCore_RestoreOneShot(t *testing.T) {
	ctx := context.Background()

	t.Run("misfire within grace fires immediately", func(t *testing.T) {
		c := newTestCore(t, Config{MisfireGraceTime: time.Minute}, nil)
		fired := make(chan Fire, 1)
		runAt := time.Now().Add(-10 * time.Second).UTC().Format(time.RFC3339)
		err := c.Restore(ctx, Definition{ScheduleID: "late", Mode: model.TriggerModeDate, Rule: []byte(`{"run_date": "` + runAt + `"}`)}, func(_ context.Context, f Fire) {
			fired <- f
		})
		require.NoError(t, err)

		select {
		case f := <-fired:
			assert.True(t, f.Final)
			assert.Equal(t, "late", f.ScheduleID)
		case <-time.After(3 * time.Second):
			t.Fatal("misfired trigger was not run")
		}
		assert.False(t, c.IsArmed("late"))
	})

	t.Run("beyond grace is exhausted", func(t *testing.T) {
		c := newTestCore(t, Config{MisfireGraceTime: time.Second}, nil)
		runAt := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
		err := c.Restore(ctx, Definition{ScheduleID: "gone", Mode: model.TriggerModeDate, Rule: []byte(`{"run_date": "` + runAt + `"}`)}, nil)
		assert.ErrorIs(t, err, ErrExhausted)
		assert.False(t, c.IsArmed("gone"))
	})

	t.Run("already fired is exhausted", func(t *testing.T) {
		c := newTestCore(t, Config{MisfireGraceTime: time.Hour}, nil)
		last := time.Now().Add(-time.Minute)
		runAt := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
		err := c.Restore(ctx, Definition{ScheduleID: "done", Mode: model.TriggerModeDate, Rule: []byte(`{"run_date": "` + runAt + `"}`), LastFireAt: &last}, nil)
		assert.ErrorIs(t, err, ErrExhausted)
	})
}

func TestCore_RestoreKeepsIntervalAnchor(t *testing.T) {
	c := newTestCore(t, Config{}, nil)
	anchor := time.Now().Add(-95 * time.Second).UTC()
	def := Definition{ScheduleID: "anchored", Mode: model.TriggerModeInterval, Rule: []byte(`{"minutes": 1}`), Anchor: anchor}
	require.NoError(t, c.Restore(context.Background(), def, nil))

	next, err := c.NextFireTime("anchored")
	require.NoError(t, err)
	assert.True(t, anchor.Add(2*time.Minute).Equal(next), "want %s got %s", anchor.Add(2*time.Minute), next)
}

func TestCore_CallbackPanicIsRecovered(t *testing.T) {
	c := newTestCore(t, Config{}, nil)
	c.Start()

	var fires int32
	cb := func(_ context.Context, _ Fire) {
		atomic.AddInt32(&fires, 1)
		panic("boom")
	}
	require.NoError(t, c.Arm(context.Background(), Definition{ScheduleID: "panics", Mode: model.TriggerModeInterval, Rule: []byte(`{"seconds": 1}`)}, cb))

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&fires) >= 2 }, 5*time.Second, 50*time.Millisecond)
	assert.True(t, c.IsArmed("panics"))
}
