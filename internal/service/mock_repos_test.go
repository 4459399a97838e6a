package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hgj313/hr2-sub000/internal/model"
	"github.com/hgj313/hr2-sub000/internal/repository"
	"github.com/hgj313/hr2-sub000/internal/scheduling"
	pkgerrors "github.com/hgj313/hr2-sub000/pkg/errors"
	"github.com/hgj313/hr2-sub000/pkg/interval"
	"github.com/hgj313/hr2-sub000/pkg/lock"
)

// ── Mock ScheduleRepository ──

type mockScheduleRepo struct {
	mu        sync.Mutex
	schedules map[string]*model.Schedule
	seq       int
}

func newMockScheduleRepo() *mockScheduleRepo {
	return &mockScheduleRepo{schedules: make(map[string]*model.Schedule)}
}

func (m *mockScheduleRepo) Create(_ context.Context, schedule *model.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if schedule.ScheduleID == "" {
		m.seq++
		schedule.ScheduleID = fmt.Sprintf("sch-%d", m.seq)
	}
	if schedule.Version == 0 {
		schedule.Version = 1
	}
	cp := *schedule
	m.schedules[schedule.ScheduleID] = &cp
	return nil
}

func (m *mockScheduleRepo) GetByID(_ context.Context, id string) (*model.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.schedules[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockScheduleRepo) ListByIDs(_ context.Context, ids []string) ([]model.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Schedule
	for _, id := range ids {
		if s, ok := m.schedules[id]; ok {
			result = append(result, *s)
		}
	}
	return result, nil
}

func (m *mockScheduleRepo) List(_ context.Context, status string) ([]model.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Schedule
	for _, s := range m.schedules {
		if status == "" || s.Status == status {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ScheduleID < result[j].ScheduleID })
	return result, nil
}

func (m *mockScheduleRepo) Update(_ context.Context, schedule *model.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.schedules[schedule.ScheduleID]
	if !ok || stored.Version != schedule.Version {
		return pkgerrors.ErrOptimisticLock
	}
	schedule.Version++
	cp := *schedule
	m.schedules[schedule.ScheduleID] = &cp
	return nil
}

func (m *mockScheduleRepo) UpdateStatus(_ context.Context, schedule *model.Schedule, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.schedules[schedule.ScheduleID]
	if !ok || stored.Version != expectedVersion {
		return pkgerrors.ErrOptimisticLock
	}
	cp := *schedule
	m.schedules[schedule.ScheduleID] = &cp
	return nil
}

func (m *mockScheduleRepo) BumpVersion(_ context.Context, id string, expectedVersion int, operatorID *string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.schedules[id]
	if !ok || stored.Version != expectedVersion {
		return 0, pkgerrors.ErrOptimisticLock
	}
	stored.Version++
	stored.UpdatedBy = operatorID
	return stored.Version, nil
}

func (m *mockScheduleRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.schedules, id)
	return nil
}

// ── Mock AssignmentRepository ──

type mockAssignmentRepo struct {
	mu          sync.Mutex
	assignments map[string]*model.ScheduleAssignment
	schedules   *mockScheduleRepo
	seq         int
	createErr   error
}

func newMockAssignmentRepo(schedules *mockScheduleRepo) *mockAssignmentRepo {
	return &mockAssignmentRepo{assignments: make(map[string]*model.ScheduleAssignment), schedules: schedules}
}

func (m *mockAssignmentRepo) Create(_ context.Context, assignment *model.ScheduleAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if assignment.AssignmentID == "" {
		m.seq++
		assignment.AssignmentID = fmt.Sprintf("asg-%d", m.seq)
	}
	cp := *assignment
	m.assignments[assignment.AssignmentID] = &cp
	return nil
}

func (m *mockAssignmentRepo) GetByID(_ context.Context, id string) (*model.ScheduleAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.assignments[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAssignmentRepo) Update(_ context.Context, assignment *model.ScheduleAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assignments[assignment.AssignmentID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *assignment
	m.assignments[assignment.AssignmentID] = &cp
	return nil
}

func (m *mockAssignmentRepo) ListBySchedule(_ context.Context, scheduleID string) ([]model.ScheduleAssignment, error) {
	return m.filter(func(a *model.ScheduleAssignment) bool { return a.ScheduleID == scheduleID }), nil
}

func (m *mockAssignmentRepo) ListActiveByResources(_ context.Context, resourceIDs []string) ([]model.ScheduleAssignment, error) {
	wanted := make(map[string]bool, len(resourceIDs))
	for _, id := range resourceIDs {
		wanted[id] = true
	}
	return m.filter(func(a *model.ScheduleAssignment) bool {
		return wanted[a.ResourceID] && m.active(a)
	}), nil
}

func (m *mockAssignmentRepo) ListByResourceWindow(_ context.Context, resourceID string, start, end time.Time) ([]model.ScheduleAssignment, error) {
	return m.filter(func(a *model.ScheduleAssignment) bool {
		return a.ResourceID == resourceID && m.active(a) &&
			interval.Overlaps(a.StartDatetime, a.EndDatetime, start, end)
	}), nil
}

// active 分配未取消且所属排班未取消
func (m *mockAssignmentRepo) active(a *model.ScheduleAssignment) bool {
	if a.IsCancelled() {
		return false
	}
	s, err := m.schedules.GetByID(context.Background(), a.ScheduleID)
	return err == nil && s.Status != model.ScheduleStatusCancelled
}

func (m *mockAssignmentRepo) filter(keep func(a *model.ScheduleAssignment) bool) []model.ScheduleAssignment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.ScheduleAssignment
	for _, a := range m.assignments {
		if keep(a) {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartDatetime.Equal(result[j].StartDatetime) {
			return result[i].StartDatetime.Before(result[j].StartDatetime)
		}
		return result[i].AssignmentID < result[j].AssignmentID
	})
	return result
}

// ── Mock AvailabilityRepository ──

type mockAvailabilityRepo struct {
	mu      sync.Mutex
	records map[string]*model.ResourceAvailability
	seq     int
}

func newMockAvailabilityRepo() *mockAvailabilityRepo {
	return &mockAvailabilityRepo{records: make(map[string]*model.ResourceAvailability)}
}

func (m *mockAvailabilityRepo) Create(_ context.Context, record *model.ResourceAvailability) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insert(record)
	return nil
}

func (m *mockAvailabilityRepo) insert(record *model.ResourceAvailability) {
	if record.AvailabilityID == "" {
		m.seq++
		record.AvailabilityID = fmt.Sprintf("av-%03d", m.seq)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Date(2024, 1, 1, 0, 0, m.seq, 0, time.UTC)
	}
	cp := *record
	m.records[record.AvailabilityID] = &cp
}

func (m *mockAvailabilityRepo) GetByID(_ context.Context, id string) (*model.ResourceAvailability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAvailabilityRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.records, id)
	return nil
}

func (m *mockAvailabilityRepo) ListByResources(_ context.Context, resourceIDs []string, start, end time.Time) ([]model.ResourceAvailability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[string]bool, len(resourceIDs))
	for _, id := range resourceIDs {
		wanted[id] = true
	}
	var result []model.ResourceAvailability
	for _, r := range m.records {
		if !wanted[r.ResourceID] {
			continue
		}
		if !end.IsZero() && !r.StartDatetime.Before(end) {
			continue
		}
		if !start.IsZero() && !r.EndDatetime.After(start) {
			continue
		}
		result = append(result, *r)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartDatetime.Equal(result[j].StartDatetime) {
			return result[i].StartDatetime.Before(result[j].StartDatetime)
		}
		return result[i].AvailabilityID < result[j].AvailabilityID
	})
	return result, nil
}

func (m *mockAvailabilityRepo) ReplaceImported(_ context.Context, resourceID string, start, end time.Time, records []model.ResourceAvailability) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.records {
		if r.ResourceID == resourceID && r.Source == model.AvailabilitySourceICS &&
			interval.Overlaps(r.StartDatetime, r.EndDatetime, start, end) {
			delete(m.records, id)
		}
	}
	for i := range records {
		m.insert(&records[i])
	}
	return nil
}

// ── Mock ConflictRepository ──

type mockConflictRepo struct {
	mu         sync.Mutex
	conflicts  map[string]*model.ScheduleConflict
	replaceErr error
	// onReplace 在替换前回调，不持有 mu
	onReplace func(scheduleID string)
}

func newMockConflictRepo() *mockConflictRepo {
	return &mockConflictRepo{conflicts: make(map[string]*model.ScheduleConflict)}
}

func (m *mockConflictRepo) GetByID(_ context.Context, id string) (*model.ScheduleConflict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.conflicts[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockConflictRepo) ListBySchedule(_ context.Context, scheduleID string, filter repository.ConflictFilter) ([]model.ScheduleConflict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.ScheduleConflict
	for _, c := range m.conflicts {
		if c.ScheduleID != scheduleID {
			continue
		}
		if filter.Type != "" && c.ConflictType != filter.Type {
			continue
		}
		if filter.Severity != "" && c.Severity != filter.Severity {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Fingerprint < result[j].Fingerprint })
	return result, nil
}

func (m *mockConflictRepo) LockBySchedule(ctx context.Context, scheduleID string) ([]model.ScheduleConflict, error) {
	return m.ListBySchedule(ctx, scheduleID, repository.ConflictFilter{})
}

func (m *mockConflictRepo) ReplaceForSchedule(_ context.Context, scheduleID string, conflicts []model.ScheduleConflict) error {
	if m.onReplace != nil {
		m.onReplace(scheduleID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceErr != nil {
		return m.replaceErr
	}
	for id, c := range m.conflicts {
		if c.ScheduleID == scheduleID {
			delete(m.conflicts, id)
		}
	}
	for i := range conflicts {
		cp := conflicts[i]
		m.conflicts[cp.ConflictID] = &cp
	}
	return nil
}

func (m *mockConflictRepo) UpdateStatus(_ context.Context, conflict *model.ScheduleConflict) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conflicts[conflict.ConflictID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *conflict
	m.conflicts[conflict.ConflictID] = &cp
	return nil
}

func (m *mockConflictRepo) count(scheduleID string) int {
	list, _ := m.ListBySchedule(context.Background(), scheduleID, repository.ConflictFilter{})
	return len(list)
}

// ── Mock WorkloadRepository ──

type mockWorkloadRepo struct {
	mu       sync.Mutex
	analyses []model.WorkloadAnalysis
}

func newMockWorkloadRepo() *mockWorkloadRepo {
	return &mockWorkloadRepo{}
}

func (m *mockWorkloadRepo) Create(_ context.Context, analysis *model.WorkloadAnalysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyses = append(m.analyses, *analysis)
	return nil
}

func (m *mockWorkloadRepo) ListHistory(_ context.Context, resourceID string, filter repository.WorkloadHistoryFilter) ([]model.WorkloadAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.WorkloadAnalysis
	for _, a := range m.analyses {
		if a.ResourceID != resourceID {
			continue
		}
		if filter.ScheduleID != "" && (a.ScheduleID == nil || *a.ScheduleID != filter.ScheduleID) {
			continue
		}
		if !filter.From.IsZero() && !a.PeriodEnd.After(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !a.PeriodStart.Before(filter.To) {
			continue
		}
		result = append(result, a)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].AnalyzedAt.Before(result[j].AnalyzedAt) })
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (m *mockWorkloadRepo) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.analyses)
}

// ── Fake 人员目录 ──

type fakeDirectory struct {
	mu      sync.Mutex
	skills  map[string][]model.Skill
	missing map[string]bool
	failing map[string]bool
	err     error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{skills: map[string][]model.Skill{}, missing: map[string]bool{}, failing: map[string]bool{}}
}

func (f *fakeDirectory) Exists(_ context.Context, resourceID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.failing[resourceID] {
		return false, errors.New("directory unavailable")
	}
	return !f.missing[resourceID], nil
}

func (f *fakeDirectory) GetSkills(_ context.Context, resourceID string) ([]model.Skill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.skills[resourceID], nil
}

// ── 记录型事件发布器 ──

type publishedEvent struct {
	topic string
	event any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{topic: topic, event: event})
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.topic)
	}
	return out
}

// ── 记录持有情况的锁 ──

// recordingLocker 包装 MutexMap，记录每个 key 的请求次数、持有者数量与最大并发持有数
type recordingLocker struct {
	inner *lock.MutexMap

	mu       sync.Mutex
	attempts map[string]int
	held     map[string]int
	maxHeld  map[string]int
}

func newRecordingLocker() *recordingLocker {
	return &recordingLocker{
		inner:    lock.NewMutexMap(),
		attempts: make(map[string]int),
		held:     make(map[string]int),
		maxHeld:  make(map[string]int),
	}
}

func (l *recordingLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	l.attempts[key]++
	l.mu.Unlock()

	unlock, err := l.inner.Lock(ctx, key)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.held[key]++
	if l.held[key] > l.maxHeld[key] {
		l.maxHeld[key] = l.held[key]
	}
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		l.held[key]--
		l.mu.Unlock()
		unlock()
	}, nil
}

func (l *recordingLocker) stats(key string) (attempts, held, maxHeld int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attempts[key], l.held[key], l.maxHeld[key]
}

// ── 测试环境 ──

type testEnv struct {
	svc          *Service
	schedules    *mockScheduleRepo
	assignments  *mockAssignmentRepo
	availability *mockAvailabilityRepo
	conflicts    *mockConflictRepo
	workload     *mockWorkloadRepo
	directory    *fakeDirectory
	publisher    *recordingPublisher
}

func newTestEnv() *testEnv {
	schedules := newMockScheduleRepo()
	env := &testEnv{
		schedules:    schedules,
		assignments:  newMockAssignmentRepo(schedules),
		availability: newMockAvailabilityRepo(),
		conflicts:    newMockConflictRepo(),
		workload:     newMockWorkloadRepo(),
		directory:    newFakeDirectory(),
		publisher:    &recordingPublisher{},
	}
	env.svc = env.newService(nil)
	return env
}

// newService 用当前 mock 组装 Service，locker 为空时使用进程内锁
func (e *testEnv) newService(locker lock.Locker) *Service {
	repo := &repository.Repository{
		Schedule:     e.schedules,
		Assignment:   e.assignments,
		Availability: e.availability,
		Conflict:     e.conflicts,
		Workload:     e.workload,
	}
	return NewService(Deps{
		Repo:      repo,
		Directory: e.directory,
		Locker:    locker,
		Publisher: e.publisher,
		Options:   scheduling.DefaultOptions(),
		Logger:    zap.NewNop(),
	})
}

// seedSchedule 直接写入一个排班
func (e *testEnv) seedSchedule(id, status string, start, end time.Time) *model.Schedule {
	s := &model.Schedule{ScheduleID: id, Name: id, StartDate: start, EndDate: end, Status: status}
	s.Version = 1
	_ = e.schedules.Create(context.Background(), s)
	return s
}

// seedAssignment 直接写入一条分配
func (e *testEnv) seedAssignment(id, scheduleID, resourceID string, start, end time.Time, alloc float64) {
	_ = e.assignments.Create(context.Background(), &model.ScheduleAssignment{
		AssignmentID:         id,
		ScheduleID:           scheduleID,
		ResourceID:           resourceID,
		StartDatetime:        start,
		EndDatetime:          end,
		AllocationPercentage: alloc,
		Status:               model.AssignmentStatusAssigned,
	})
}

// jan 2024 年 1 月某日 0 点（UTC）
func jan(d int) time.Time {
	return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
}

func floatPtr(v float64) *float64 { return &v }

func strPtr(s string) *string { return &s }
