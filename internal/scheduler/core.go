package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"sailboat/internal/model"
	"sailboat/pkg/logger"
	"sailboat/pkg/metrics"

	"github.com/robfig/cron/v3"
	"gorm.io/datatypes"
)

// State is the lifecycle position of an armed trigger.
type State int

const (
	StateDisarmed State = iota
	StateArmed
	StateFiring
)

func (s State) String() string {
	switch s {
	case StateArmed:
		return "armed"
	case StateFiring:
		return "firing"
	default:
		return "disarmed"
	}
}

// Store persists the engine's trigger bookkeeping so a restart can recompute
// next fire times.
type Store interface {
	Save(ctx context.Context, state *model.TriggerState) error
	MarkFired(ctx context.Context, scheduleID string, firedAt time.Time, next *time.Time) error
	Delete(ctx context.Context, scheduleID string) error
	List(ctx context.Context) ([]model.TriggerState, error)
}

// Callback is invoked on its own goroutine for every fire.
type Callback func(ctx context.Context, fire Fire)

// Fire describes one firing of a trigger.
type Fire struct {
	ScheduleID string
	Mode       model.TriggerMode
	Rule       []byte
	FiredAt    time.Time
	// Final is set when the trigger disarmed itself with this fire.
	Final bool
	Args  interface{}
}

// Definition is everything needed to arm a trigger.
type Definition struct {
	ScheduleID string
	Mode       model.TriggerMode
	Rule       []byte
	// Anchor is the reference time of interval triggers. Zero means now.
	Anchor time.Time
	// LastFireAt is only consulted by Restore.
	LastFireAt *time.Time
	Args       interface{}
}

type Config struct {
	Location         *time.Location
	MaxConcurrency   int
	MisfireGraceTime time.Duration
}

// ArmedTrigger is a point-in-time view of one armed trigger.
type ArmedTrigger struct {
	ScheduleID string
	Mode       model.TriggerMode
	Trigger    string
	State      State
	InFlight   int
	Next       time.Time
}

type armedTrigger struct {
	def      Definition
	trigger  Trigger
	entryID  cron.EntryID
	state    State
	inFlight int
	cb       Callback
}

// Core is the runtime trigger engine. It is built once per process and
// shared by reference.
type Core struct {
	cfg   Config
	log   *logger.Logger
	store Store
	cron  *cron.Cron
	now   func() time.Time

	mu       sync.Mutex
	triggers map[string]*armedTrigger
	started  bool

	semaphore chan struct{}
	wg        sync.WaitGroup
	baseCtx   context.Context
	cancel    context.CancelFunc
}

func New(cfg Config, store Store, log *logger.Logger) *Core {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if log == nil {
		log = logger.Nop()
	}
	cl := cronLogger{log: log}
	c := &Core{
		cfg:      cfg,
		log:      log,
		store:    store,
		triggers: make(map[string]*armedTrigger),
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
	}
	c.now = func() time.Time { return time.Now().In(c.cfg.Location) }
	if cfg.MaxConcurrency > 0 {
		c.semaphore = make(chan struct{}, cfg.MaxConcurrency)
	}
	c.baseCtx, c.cancel = context.WithCancel(context.Background())
	return c
}

// Validate checks rule against mode without arming anything. Date rules
// must lie in the future, as Arm requires.
func (c *Core) Validate(mode model.TriggerMode, rule []byte) error {
	now := c.now()
	trigger, err := ParseTrigger(mode, rule, now, c.cfg.Location)
	if err != nil {
		return err
	}
	return requireFuture(trigger, now)
}

func requireFuture(trigger Trigger, now time.Time) error {
	if dt, ok := trigger.(*dateTrigger); ok && !dt.RunAt().After(now) {
		return fmt.Errorf("%w: run_date %s is not in the future", ErrInvalidTrigger, dt.RunAt().Format(time.RFC3339))
	}
	return nil
}

// Arm validates and registers a new trigger. Date triggers must lie in the future.
func (c *Core) Arm(ctx context.Context, def Definition, cb Callback) error {
	if def.Anchor.IsZero() {
		def.Anchor = c.now()
	}
	trigger, err := ParseTrigger(def.Mode, def.Rule, def.Anchor, c.cfg.Location)
	if err != nil {
		return err
	}
	now := c.now()
	if err := requireFuture(trigger, now); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.triggers[def.ScheduleID]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyArmed, def.ScheduleID)
	}

	if c.store != nil {
		next := trigger.Next(now)
		state := &model.TriggerState{
			ScheduleID:  def.ScheduleID,
			TriggerMode: def.Mode,
			TriggerRule: datatypes.JSON(def.Rule),
			Anchor:      def.Anchor,
			NextFireAt:  sql.NullTime{Time: next, Valid: !next.IsZero()},
		}
		if err := c.store.Save(ctx, state); err != nil {
			return fmt.Errorf("failed to persist trigger state: %w", err)
		}
	}

	c.addLocked(def, trigger, cb)
	c.log.InfoContext(ctx, "Trigger armed",
		logger.StringField("schedule_id", def.ScheduleID),
		logger.StringField("trigger", trigger.String()),
		logger.TimeField("next", trigger.Next(now)),
	)
	return nil
}

// Restore re-arms a trigger from persisted state after a restart. One-shot
// triggers that already fired, or whose fire time passed more than the misfire
// grace time ago, are not armed and ErrExhausted is returned. A one-shot
// trigger that is past due but within the grace time fires immediately.
func (c *Core) Restore(ctx context.Context, def Definition, cb Callback) error {
	if def.Anchor.IsZero() {
		def.Anchor = c.now()
	}
	trigger, err := ParseTrigger(def.Mode, def.Rule, def.Anchor, c.cfg.Location)
	if err != nil {
		return err
	}
	now := c.now()

	fireNow := false
	if dt, ok := trigger.(*dateTrigger); ok {
		if def.LastFireAt != nil {
			return fmt.Errorf("%w: %s already fired at %s", ErrExhausted, def.ScheduleID, def.LastFireAt.Format(time.RFC3339))
		}
		if !dt.RunAt().After(now) {
			if now.Sub(dt.RunAt()) > c.cfg.MisfireGraceTime {
				return fmt.Errorf("%w: %s missed its run date %s", ErrExhausted, def.ScheduleID, dt.RunAt().Format(time.RFC3339))
			}
			fireNow = true
		}
	}

	c.mu.Lock()
	if _, exists := c.triggers[def.ScheduleID]; exists {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyArmed, def.ScheduleID)
	}
	if fireNow {
		c.triggers[def.ScheduleID] = &armedTrigger{def: def, trigger: trigger, state: StateArmed, cb: cb}
		metrics.TriggersArmed.Set(float64(len(c.triggers)))
	} else {
		c.addLocked(def, trigger, cb)
	}
	c.mu.Unlock()

	if fireNow {
		c.log.WarnContext(ctx, "Firing misfired one-shot trigger", logger.StringField("schedule_id", def.ScheduleID))
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.fire(def.ScheduleID)
		}()
		return nil
	}

	c.log.DebugContext(ctx, "Trigger restored",
		logger.StringField("schedule_id", def.ScheduleID),
		logger.StringField("trigger", trigger.String()),
		logger.TimeField("next", trigger.Next(now)),
	)
	return nil
}

// Disarm removes a trigger. A fire already in flight is not interrupted.
func (c *Core) Disarm(ctx context.Context, scheduleID string) error {
	c.mu.Lock()
	t, ok := c.triggers[scheduleID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobNotFound, scheduleID)
	}
	if t.entryID != 0 {
		c.cron.Remove(t.entryID)
	}
	t.state = StateDisarmed
	delete(c.triggers, scheduleID)
	metrics.TriggersArmed.Set(float64(len(c.triggers)))
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Delete(ctx, scheduleID); err != nil {
			// the orphaned state row is dropped on the next rehydration
			c.log.ErrorContext(ctx, "Failed to delete trigger state", logger.ErrorField(err), logger.StringField("schedule_id", scheduleID))
		}
	}
	c.log.InfoContext(ctx, "Trigger disarmed", logger.StringField("schedule_id", scheduleID))
	return nil
}

// Start begins the scheduling loop.
func (c *Core) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true
	c.cron.Start()
	c.log.Info("Scheduler started",
		logger.StringField("timezone", c.cfg.Location.String()),
		logger.IntField("triggers", len(c.triggers)),
	)
}

// Stop halts the scheduling loop and waits for in-flight fires until ctx is done,
// after which their context is cancelled.
func (c *Core) Stop(ctx context.Context) {
	c.mu.Lock()
	started := c.started
	c.started = false
	c.mu.Unlock()

	if started {
		select {
		case <-c.cron.Stop().Done():
		case <-ctx.Done():
		}
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		c.log.Warn("Timeout while waiting for in-flight fires")
	}
	c.cancel()
	c.log.Info("Scheduler stopped")
}

// Armed returns a snapshot of every armed trigger.
func (c *Core) Armed() []ArmedTrigger {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ArmedTrigger, 0, len(c.triggers))
	for id, t := range c.triggers {
		out = append(out, ArmedTrigger{
			ScheduleID: id,
			Mode:       t.def.Mode,
			Trigger:    t.trigger.String(),
			State:      t.state,
			InFlight:   t.inFlight,
			Next:       t.trigger.Next(now),
		})
	}
	return out
}

// IsArmed reports whether scheduleID has an armed trigger.
func (c *Core) IsArmed(scheduleID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.triggers[scheduleID]
	return ok
}

// NextFireTime returns the next fire time of an armed trigger.
func (c *Core) NextFireTime(scheduleID string) (time.Time, error) {
	c.mu.Lock()
	t, ok := c.triggers[scheduleID]
	c.mu.Unlock()
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s", ErrJobNotFound, scheduleID)
	}
	return t.trigger.Next(c.now()), nil
}

// StoredStates returns the persisted bookkeeping rows, or nil without a store.
func (c *Core) StoredStates(ctx context.Context) ([]model.TriggerState, error) {
	if c.store == nil {
		return nil, nil
	}
	return c.store.List(ctx)
}

// DropState deletes a persisted row that has no registry entry.
func (c *Core) DropState(ctx context.Context, scheduleID string) error {
	if c.store == nil {
		return nil
	}
	return c.store.Delete(ctx, scheduleID)
}

// addLocked must be called with c.mu held.
func (c *Core) addLocked(def Definition, trigger Trigger, cb Callback) {
	id := def.ScheduleID
	entryID := c.cron.Schedule(trigger, cron.FuncJob(func() {
		c.wg.Add(1)
		defer c.wg.Done()
		c.fire(id)
	}))
	c.triggers[id] = &armedTrigger{
		def:     def,
		trigger: trigger,
		entryID: entryID,
		state:   StateArmed,
		cb:      cb,
	}
	metrics.TriggersArmed.Set(float64(len(c.triggers)))
}

func (c *Core) fire(scheduleID string) {
	now := c.now()

	c.mu.Lock()
	t, ok := c.triggers[scheduleID]
	if !ok {
		c.mu.Unlock()
		return
	}
	final := t.def.Mode.OneShot()
	if final {
		if t.entryID != 0 {
			c.cron.Remove(t.entryID)
		}
		t.state = StateDisarmed
		delete(c.triggers, scheduleID)
		metrics.TriggersArmed.Set(float64(len(c.triggers)))
	} else {
		t.inFlight++
		t.state = StateFiring
	}
	fire := Fire{
		ScheduleID: scheduleID,
		Mode:       t.def.Mode,
		Rule:       t.def.Rule,
		FiredAt:    now,
		Final:      final,
		Args:       t.def.Args,
	}
	cb := t.cb
	next := t.trigger.Next(now)
	c.mu.Unlock()

	metrics.TriggerFires.WithLabelValues(string(fire.Mode)).Inc()
	c.log.Debug("Trigger fired",
		logger.StringField("schedule_id", scheduleID),
		logger.StringField("mode", string(fire.Mode)),
		logger.TimeField("fired_at", now),
	)

	if c.store != nil {
		var err error
		if final {
			err = c.store.Delete(c.baseCtx, scheduleID)
		} else {
			var nextPtr *time.Time
			if !next.IsZero() {
				nextPtr = &next
			}
			err = c.store.MarkFired(c.baseCtx, scheduleID, now, nextPtr)
		}
		if err != nil {
			c.log.Error("Failed to update trigger state", logger.ErrorField(err), logger.StringField("schedule_id", scheduleID))
		}
	}

	if c.semaphore != nil {
		select {
		case c.semaphore <- struct{}{}:
			defer func() { <-c.semaphore }()
		case <-c.baseCtx.Done():
			return
		}
	}

	c.invoke(cb, fire)

	if !final {
		c.mu.Lock()
		if cur, ok := c.triggers[scheduleID]; ok && cur == t {
			t.inFlight--
			if t.inFlight == 0 {
				t.state = StateArmed
			}
		}
		c.mu.Unlock()
	}
}

func (c *Core) invoke(cb Callback, fire Fire) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Trigger callback panicked",
				logger.StringField("schedule_id", fire.ScheduleID),
				logger.Field("panic", r),
			)
		}
	}()
	if cb != nil {
		cb(c.baseCtx, fire)
	}
}
