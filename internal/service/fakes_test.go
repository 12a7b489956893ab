package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"sailboat/config"
	"sailboat/internal/model"
	"sailboat/internal/repository"
	"sailboat/internal/scheduler"
	"sailboat/internal/strategy"
	"sailboat/pkg/logger"
	"sailboat/pkg/utils"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeScheduleRepo struct {
	mu      sync.Mutex
	entries map[string]model.ScheduleEntry
}

func newFakeScheduleRepo() *fakeScheduleRepo {
	return &fakeScheduleRepo{entries: map[string]model.ScheduleEntry{}}
}

func (r *fakeScheduleRepo) Create(_ context.Context, entry *model.ScheduleEntry, _ ...utils.DBOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.ID] = *entry
	return nil
}

func (r *fakeScheduleRepo) FindByID(_ context.Context, id string, _ ...utils.DBOption) (*model.ScheduleEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &e, nil
}

func (r *fakeScheduleRepo) Delete(_ context.Context, id string, _ ...utils.DBOption) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return 0, nil
	}
	delete(r.entries, id)
	return 1, nil
}

func (r *fakeScheduleRepo) List(_ context.Context, param *model.ListScheduleParam, _ ...utils.DBOption) ([]model.ScheduleEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ScheduleEntry
	for _, e := range r.entries {
		if param.OwnerID != "" && e.OwnerID != param.OwnerID {
			continue
		}
		if param.Project != "" && e.Project != param.Project {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *fakeScheduleRepo) FindAll(ctx context.Context, _ ...utils.DBOption) ([]model.ScheduleEntry, error) {
	return r.List(ctx, &model.ListScheduleParam{})
}

func (r *fakeScheduleRepo) copyEntries() map[string]model.ScheduleEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]model.ScheduleEntry, len(r.entries))
	for id, e := range r.entries {
		out[id] = e
	}
	return out
}

func (r *fakeScheduleRepo) restore(entries map[string]model.ScheduleEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = entries
}

func (r *fakeScheduleRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

type fakeExecutionRepo struct {
	mu      sync.Mutex
	records []model.ExecutionRecord
}

func (r *fakeExecutionRepo) Create(_ context.Context, record *model.ExecutionRecord, _ ...utils.DBOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *record)
	return nil
}

func (r *fakeExecutionRepo) FindByID(_ context.Context, id string, _ ...utils.DBOption) (*model.ExecutionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == id {
			return &rec, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeExecutionRepo) List(_ context.Context, param *model.ListExecutionParam, _ ...utils.DBOption) ([]model.ExecutionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ExecutionRecord
	for _, rec := range r.records {
		if param.OwnerID != "" && rec.OwnerID != param.OwnerID {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *fakeExecutionRepo) snapshot() []model.ExecutionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]model.ExecutionRecord(nil), r.records...)
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// fakeUnitOfWork rolls the schedule repo back when fn or the commit fails.
type fakeUnitOfWork struct {
	schedules *fakeScheduleRepo
	commitErr error
}

func (u *fakeUnitOfWork) Run(_ context.Context, fn func(opts ...utils.DBOption) error) error {
	before := u.schedules.copyEntries()
	err := fn()
	if err == nil {
		err = u.commitErr
	}
	if err != nil {
		u.schedules.restore(before)
	}
	return err
}

type fakeStateStore struct {
	mu     sync.Mutex
	states map[string]model.TriggerState
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{states: map[string]model.TriggerState{}}
}

func (s *fakeStateStore) Save(_ context.Context, state *model.TriggerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.ScheduleID] = *state
	return nil
}

func (s *fakeStateStore) MarkFired(_ context.Context, id string, firedAt time.Time, _ *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[id]
	if !ok {
		return errors.New("missing state")
	}
	st.LastFireAt.Time, st.LastFireAt.Valid = firedAt, true
	s.states[id] = st
	return nil
}

func (s *fakeStateStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, id)
	return nil
}

func (s *fakeStateStore) List(_ context.Context) ([]model.TriggerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.TriggerState, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, st)
	}
	return out, nil
}

func (s *fakeStateStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

type fakeAlerter struct {
	calls chan string
}

func (a *fakeAlerter) Alert(_ context.Context, raw string, _ time.Time, _ model.TriggerContext) error {
	a.calls <- raw
	return nil
}

type harness struct {
	root       string
	core       *scheduler.Core
	states     *fakeStateStore
	schedules  *fakeScheduleRepo
	executions *fakeExecutionRepo
	uow        *fakeUnitOfWork
	alerter    *fakeAlerter
	logRepo    repository.LogRepository
	artifacts  repository.ArtifactRepository
	executor   Executor
	scheduler  SchedulerService
	records    RecordService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	log := logger.Nop()

	h := &harness{
		root:       root,
		states:     newFakeStateStore(),
		schedules:  newFakeScheduleRepo(),
		executions: &fakeExecutionRepo{},
		alerter:    &fakeAlerter{calls: make(chan string, 16)},
	}
	h.uow = &fakeUnitOfWork{schedules: h.schedules}
	h.core = scheduler.New(scheduler.Config{Location: time.UTC, MisfireGraceTime: time.Minute}, h.states, log)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		h.core.Stop(ctx)
		h.records.Wait(ctx)
	})

	h.artifacts = repository.NewArtifactRepository(filepath.Join(root, "artifacts"), ".egg", filepath.Join(root, "staging"), nil, 0, log)
	h.logRepo = repository.NewLogRepository(filepath.Join(root, "logs"), log)
	launcher := strategy.NewInterpreterStrategy("sh", []string{"{artifact}"}, "")
	h.executor = NewExecutor(config.Executor{}, log, h.artifacts, h.executions, h.logRepo, launcher, h.alerter)
	h.scheduler = NewSchedulerService(log, h.core, h.schedules, h.artifacts, h.uow, h.executor)
	h.records = NewRecordService(log, h.executions, h.artifacts, h.logRepo, h.executor)
	return h
}

// restart builds a second core and scheduler service over the same
// registry and trigger state, as a process restart would see them.
func (h *harness) restart(t *testing.T) (*scheduler.Core, SchedulerService) {
	t.Helper()
	core := scheduler.New(scheduler.Config{Location: time.UTC, MisfireGraceTime: time.Minute}, h.states, logger.Nop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		core.Stop(ctx)
	})
	return core, NewSchedulerService(logger.Nop(), core, h.schedules, h.artifacts, h.uow, h.executor)
}

// artifact writes a shell script as {root}/artifacts/{project}/{version}.egg.
func (h *harness) artifact(t *testing.T, project, version, script string) {
	t.Helper()
	dir := filepath.Join(h.root, "artifacts", project)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, version+".egg"), []byte(script), 0o644))
}

func (h *harness) logPath(project, executionID string) string {
	return filepath.Join(h.root, "logs", project, executionID+".log")
}
