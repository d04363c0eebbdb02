package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"learnquest/internal/config"
	"learnquest/internal/model"
	"learnquest/internal/pkg/cache"
	"learnquest/internal/pkg/lock"
	"learnquest/internal/repository"
)

type pair [2]int64

type submissionRow struct {
	studentID, activityID int64
	grade                 *float64
}

// memStore is an in-memory stand-in for the PostgreSQL repositories with the
// same conflict and guard semantics.
type memStore struct {
	mu sync.Mutex

	nextID       int64
	students     map[int64]*model.Student
	gamification map[int64]*model.Gamification
	pointLog     []*model.PointLogEntry

	levels        map[int64]*model.Level
	activities    map[int64]*model.Activity
	submissions   []submissionRow
	assignments   map[pair]time.Time
	levelProgress map[pair]*model.LevelProgress
	attendance    map[pair]*model.Attendance

	missions        map[int64]*model.Mission
	missionProgress []*model.MissionProgress

	achievements map[int64]*model.Achievement
	unlocks      map[pair]time.Time

	saveStreakCalls int
	skippedTables   []string
}

func newMemStore() *memStore {
	return &memStore{
		students:      make(map[int64]*model.Student),
		gamification:  make(map[int64]*model.Gamification),
		levels:        make(map[int64]*model.Level),
		activities:    make(map[int64]*model.Activity),
		assignments:   make(map[pair]time.Time),
		levelProgress: make(map[pair]*model.LevelProgress),
		attendance:    make(map[pair]*model.Attendance),
		missions:      make(map[int64]*model.Mission),
		achievements:  make(map[int64]*model.Achievement),
		unlocks:       make(map[pair]time.Time),
		skippedTables: []string{"student_rankings", "certificates"},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

// ---- seeding helpers ----

func (m *memStore) addStudent(planID int) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.id()
	m.students[id] = &model.Student{ID: id, Username: "student", PlanID: planID}
	return id
}

func (m *memStore) addLevel(moduleID int64, order int, daysToUnlock *int, override *bool) *model.Level {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := &model.Level{ID: m.id(), ModuleID: moduleID, Title: "Level", Order: order, DaysToUnlock: daysToUnlock, ManualLockOverride: override}
	m.levels[l.ID] = l
	return l
}

func (m *memStore) addActivity(levelID int64) *model.Activity {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := &model.Activity{ID: m.id(), LevelID: levelID, Title: "Task"}
	m.activities[a.ID] = a
	return a
}

func (m *memStore) grade(studentID, activityID int64, g float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions = append(m.submissions, submissionRow{studentID, activityID, &g})
}

func (m *memStore) addMission(mission model.Mission) *model.Mission {
	m.mu.Lock()
	defer m.mu.Unlock()
	mission.ID = m.id()
	m.missions[mission.ID] = &mission
	return &mission
}

func (m *memStore) addAchievement(a model.Achievement) *model.Achievement {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = m.id()
	m.achievements[a.ID] = &a
	return &a
}

func (m *memStore) record(studentID int64) *model.Gamification {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.gamification[studentID]
	if !ok {
		return nil
	}
	cp := *g
	return &cp
}

func (m *memStore) logFor(studentID int64) []*model.PointLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PointLogEntry
	for _, e := range m.pointLog {
		if e.StudentID == studentID {
			out = append(out, e)
		}
	}
	return out
}

// ---- GamificationStore ----

func (m *memStore) Get(_ context.Context, studentID int64) (*model.Gamification, error) {
	if g := m.record(studentID); g != nil {
		return g, nil
	}
	return nil, repository.ErrRecordNotFound
}

func (m *memStore) AddXP(_ context.Context, studentID, amount int64) (int64, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.gamification[studentID]
	if !ok {
		g = &model.Gamification{StudentID: studentID, CurrentLevel: 1}
		m.gamification[studentID] = g
	}
	g.XPTotal += amount
	g.AvailablePoints += amount
	return g.XPTotal, g.CurrentLevel, nil
}

func (m *memStore) RaiseLevel(_ context.Context, studentID int64, level int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.gamification[studentID]
	if !ok {
		return 0, repository.ErrRecordNotFound
	}
	g.CurrentLevel = max(g.CurrentLevel, level)
	return g.CurrentLevel, nil
}

func (m *memStore) Credit(ctx context.Context, c repository.XPCredit) (*repository.CreditResult, error) {
	if _, err := m.Append(ctx, c.StudentID, c.Nominal, c.Reason); err != nil {
		return nil, err
	}
	xpTotal, previous, err := m.AddXP(ctx, c.StudentID, c.Credited)
	if err != nil {
		return nil, err
	}
	res := &repository.CreditResult{XPTotal: xpTotal, PreviousLevel: previous, Level: previous}
	if next := c.LevelFor(xpTotal); next > previous {
		if res.Level, err = m.RaiseLevel(ctx, c.StudentID, next); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (m *memStore) SaveStreak(_ context.Context, studentID int64, streakDays int, at time.Time) (*model.Gamification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveStreakCalls++
	g, ok := m.gamification[studentID]
	if !ok {
		g = &model.Gamification{StudentID: studentID, CurrentLevel: 1}
		m.gamification[studentID] = g
	}
	g.StreakDays = streakDays
	g.LastStreakUpdate = &at
	cp := *g
	return &cp, nil
}

func (m *memStore) TopByXP(_ context.Context, limit int) ([]*model.RankEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.RankEntry
	for id, g := range m.gamification {
		out = append(out, &model.RankEntry{StudentID: id, XP: g.XPTotal, Level: g.CurrentLevel})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].XP != out[j].XP {
			return out[i].XP > out[j].XP
		}
		return out[i].StudentID < out[j].StudentID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- PointLogStore ----

func (m *memStore) Append(_ context.Context, studentID, amount int64, reason string) (*model.PointLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[studentID]; !ok {
		return nil, repository.ErrStudentNotFound
	}
	e := &model.PointLogEntry{ID: m.id(), StudentID: studentID, Amount: amount, Reason: reason, EarnedAt: time.Now()}
	m.pointLog = append(m.pointLog, e)
	return e, nil
}

func (m *memStore) Recent(_ context.Context, studentID int64, limit int) ([]*model.PointLogEntry, error) {
	entries := m.logFor(studentID)
	var out []*model.PointLogEntry
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

func (m *memStore) Total(_ context.Context, studentID int64) (int64, error) {
	var total int64
	for _, e := range m.logFor(studentID) {
		total += e.Amount
	}
	return total, nil
}

func (m *memStore) TopGainersSince(_ context.Context, since time.Time, limit int) ([]*model.RankEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sums := make(map[int64]int64)
	for _, e := range m.pointLog {
		if !e.EarnedAt.Before(since) {
			sums[e.StudentID] += e.Amount
		}
	}
	var out []*model.RankEntry
	for id, xp := range sums {
		if xp > 0 {
			out = append(out, &model.RankEntry{StudentID: id, XP: xp})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].XP > out[j].XP })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- AchievementStore ----

func (m *memStore) ListLocked(_ context.Context, studentID int64) ([]*model.Achievement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Achievement
	for _, a := range m.achievements {
		if _, done := m.unlocks[pair{studentID, a.ID}]; a.Active && !done {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) Unlock(_ context.Context, studentID, achievementID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pair{studentID, achievementID}
	if _, ok := m.unlocks[k]; ok {
		return false, nil
	}
	m.unlocks[k] = time.Now()
	return true, nil
}

func (m *memStore) ListUnlocked(_ context.Context, studentID int64) ([]*model.AchievementUnlock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.AchievementUnlock
	for k, at := range m.unlocks {
		if k[0] == studentID {
			out = append(out, &model.AchievementUnlock{
				StudentID: studentID, AchievementID: k[1], Title: m.achievements[k[1]].Title, UnlockedAt: at,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AchievementID < out[j].AchievementID })
	return out, nil
}

// ---- SubmissionStore ----

func (m *memStore) GetActivity(_ context.Context, activityID int64) (*model.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.activities[activityID]
	if !ok {
		return nil, repository.ErrActivityNotFound
	}
	return a, nil
}

func (m *memStore) RecordSubmission(_ context.Context, studentID, activityID int64, grade *float64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions = append(m.submissions, submissionRow{studentID, activityID, grade})
	return m.id(), nil
}

// ---- ResetStore ----

func (m *memStore) ResetStudent(_ context.Context, studentID int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.unlocks {
		if k[0] == studentID {
			delete(m.unlocks, k)
		}
	}
	kept := m.missionProgress[:0]
	for _, p := range m.missionProgress {
		if p.StudentID != studentID {
			kept = append(kept, p)
		}
	}
	m.missionProgress = kept
	for k := range m.levelProgress {
		if k[0] == studentID {
			delete(m.levelProgress, k)
		}
	}
	for k, a := range m.attendance {
		if k[0] == studentID {
			a.Recovered = false
		}
	}
	logKept := m.pointLog[:0]
	for _, e := range m.pointLog {
		if e.StudentID != studentID {
			logKept = append(logKept, e)
		}
	}
	m.pointLog = logKept
	m.gamification[studentID] = &model.Gamification{StudentID: studentID, CurrentLevel: 1}
	return m.skippedTables, nil
}

// ---- StudentStore ----

type memStudents struct{ *memStore }

func (s memStudents) GetByID(_ context.Context, id int64) (*model.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[id]
	if !ok {
		return nil, repository.ErrStudentNotFound
	}
	cp := *st
	return &cp, nil
}

func (s memStudents) GetOrCreateByTelegram(_ context.Context, telegramID int64, username string) (*model.Student, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.students {
		if st.TelegramID != nil && *st.TelegramID == telegramID {
			cp := *st
			return &cp, false, nil
		}
	}
	tg := telegramID
	st := &model.Student{ID: s.id(), TelegramID: &tg, Username: username, PlanID: 1}
	s.students[st.ID] = st
	cp := *st
	return &cp, true, nil
}

func (s memStudents) UpdateUsername(_ context.Context, id int64, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[id]
	if !ok {
		return repository.ErrStudentNotFound
	}
	st.Username = username
	return nil
}

func (s memStudents) GetPlanID(ctx context.Context, id int64) (int, error) {
	st, err := s.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return st.PlanID, nil
}

// ---- LevelStore ----

type memLevels struct{ *memStore }

func (s memLevels) GetByID(_ context.Context, levelID int64) (*model.Level, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.levels[levelID]
	if !ok {
		return nil, repository.ErrLevelNotFound
	}
	return l, nil
}

func (s memLevels) GetByOrder(_ context.Context, moduleID int64, order int) (*model.Level, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.levels {
		if l.ModuleID == moduleID && l.Order == order {
			return l, nil
		}
	}
	return nil, repository.ErrLevelNotFound
}

func (s memLevels) ListByModule(_ context.Context, moduleID int64) ([]*model.Level, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Level
	for _, l := range s.levels {
		if l.ModuleID == moduleID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (s memLevels) AssignedAt(_ context.Context, studentID, moduleID int64) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.assignments[pair{studentID, moduleID}]
	if !ok {
		return nil, nil
	}
	return &at, nil
}

func (s memLevels) CountTasks(_ context.Context, studentID, levelID int64) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, a := range s.activities {
		if a.LevelID == levelID {
			total++
		}
	}
	graded := 0
	for _, sub := range s.submissions {
		if a, ok := s.activities[sub.activityID]; ok && a.LevelID == levelID && sub.studentID == studentID && sub.grade != nil {
			graded++
		}
	}
	return graded, total, nil
}

func (s memLevels) GetProgress(_ context.Context, studentID, levelID int64) (*model.LevelProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.levelProgress[pair{studentID, levelID}]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s memLevels) ListProgress(_ context.Context, studentID, moduleID int64) (map[int64]*model.LevelProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]*model.LevelProgress)
	for k, p := range s.levelProgress {
		if k[0] == studentID && s.levels[k[1]].ModuleID == moduleID {
			cp := *p
			out[k[1]] = &cp
		}
	}
	return out, nil
}

func (s memLevels) UpsertProgress(_ context.Context, u repository.LevelProgressUpsert) (*model.LevelProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := pair{u.StudentID, u.LevelID}
	p, ok := s.levelProgress[k]
	if !ok {
		p = &model.LevelProgress{StudentID: u.StudentID, LevelID: u.LevelID}
		s.levelProgress[k] = p
	}
	p.PercentComplete = u.Percent
	p.Completed = p.Completed || u.Completed
	if p.CompletedAt == nil && u.Completed {
		at := u.At
		p.CompletedAt = &at
	}
	cp := *p
	return &cp, nil
}

func (s memLevels) EnsureProgress(_ context.Context, studentID, levelID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := pair{studentID, levelID}
	if _, ok := s.levelProgress[k]; ok {
		return false, nil
	}
	s.levelProgress[k] = &model.LevelProgress{StudentID: studentID, LevelID: levelID}
	return true, nil
}

func (s memLevels) RecoverAttendance(_ context.Context, studentID, levelID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attendance[pair{studentID, levelID}]
	if !ok || a.Attended || a.Recovered {
		return false, nil
	}
	a.Recovered = true
	return true, nil
}

// ---- MissionStore ----

type memMissions struct{ *memStore }

func sameDay(a *time.Time, b time.Time) bool {
	return a != nil && a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func (s memMissions) GetByID(_ context.Context, id int64) (*model.Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mission, ok := s.missions[id]
	if !ok {
		return nil, repository.ErrMissionNotFound
	}
	return mission, nil
}

func (s memMissions) ListActiveByTypes(_ context.Context, types ...string) ([]*model.Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[string]bool)
	for _, t := range types {
		want[t] = true
	}
	var out []*model.Mission
	for _, mission := range s.missions {
		if mission.Active && want[mission.Type] {
			out = append(out, mission)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// find must be called with mu held.
func (s memMissions) find(studentID, missionID int64, weekStart time.Time) *model.MissionProgress {
	var unscoped *model.MissionProgress
	for _, p := range s.missionProgress {
		if p.StudentID != studentID || p.MissionID != missionID {
			continue
		}
		if sameDay(p.WeekStart, weekStart) {
			return p
		}
		if p.WeekStart == nil {
			unscoped = p
		}
	}
	return unscoped
}

func (s memMissions) FindProgress(_ context.Context, studentID, missionID int64, weekStart time.Time) (*model.MissionProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.find(studentID, missionID, weekStart)
	if p == nil {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func applyIncrement(p *model.MissionProgress, inc repository.ProgressIncrement) {
	p.CurrentProgress += inc.By
	if p.CurrentProgress >= inc.Target {
		p.Completed = true
		if p.CompletedAt == nil {
			at := inc.At
			p.CompletedAt = &at
		}
	}
}

func (s memMissions) IncrementProgress(_ context.Context, progressID int64, inc repository.ProgressIncrement) (*model.MissionProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.missionProgress {
		if p.ID == progressID && !p.Completed {
			applyIncrement(p, inc)
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNoRowsAffected
}

func (s memMissions) CreateDailyProgress(_ context.Context, studentID, missionID int64, inc repository.ProgressIncrement) (*model.MissionProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.missionProgress {
		if p.StudentID == studentID && p.MissionID == missionID && p.WeekStart == nil {
			if p.Completed {
				return nil, repository.ErrNoRowsAffected
			}
			applyIncrement(p, inc)
			cp := *p
			return &cp, nil
		}
	}
	p := &model.MissionProgress{ID: s.id(), StudentID: studentID, MissionID: missionID}
	applyIncrement(p, inc)
	s.missionProgress = append(s.missionProgress, p)
	cp := *p
	return &cp, nil
}

func (s memMissions) HasWeek(_ context.Context, studentID int64, weekStart time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.missionProgress {
		if p.StudentID == studentID && sameDay(p.WeekStart, weekStart) {
			return true, nil
		}
	}
	return false, nil
}

func (s memMissions) SeedWeek(_ context.Context, studentID int64, missionIDs []int64, weekStart time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range missionIDs {
		exists := false
		for _, p := range s.missionProgress {
			if p.StudentID == studentID && p.MissionID == id && sameDay(p.WeekStart, weekStart) {
				exists = true
			}
		}
		if exists {
			continue
		}
		ws := weekStart
		s.missionProgress = append(s.missionProgress, &model.MissionProgress{
			ID: s.id(), StudentID: studentID, MissionID: id, WeekStart: &ws,
		})
		n++
	}
	return n, nil
}

func (s memMissions) Claim(_ context.Context, studentID, missionID int64, weekStart time.Time) (*model.MissionProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.find(studentID, missionID, weekStart)
	if p == nil || !p.Completed || p.RewardClaimed {
		return nil, repository.ErrNoRowsAffected
	}
	p.RewardClaimed = true
	cp := *p
	return &cp, nil
}

func (s memMissions) ListForStudent(_ context.Context, studentID int64, weekStart time.Time) ([]*model.MissionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.MissionView
	for _, mission := range s.missions {
		if !mission.Active {
			continue
		}
		v := &model.MissionView{Mission: mission}
		if p := s.find(studentID, mission.ID, weekStart); p != nil {
			cp := *p
			v.Progress = &cp
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Mission.ID < out[j].Mission.ID })
	return out, nil
}

// ---- cache ----

// memCache is a map-backed cache.Cache that records deletes.
type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	deletes int
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Get(_ context.Context, key string, dest any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	return jsonUnmarshal(b, dest)
}

func (c *memCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	b, err := jsonMarshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = b
	return nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	c.deletes++
	return nil
}

// ---- wiring ----

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testProgressionConfig() config.ProgressionConfig {
	return config.ProgressionConfig{
		ProPlanID:               3,
		ProMultiplier:           1.2,
		AttendanceRecoveryBonus: 150,
		DefaultDaysToUnlock:     7,
		LockTimeout:             time.Second,
	}
}

type engine struct {
	store        *memStore
	cache        *memCache
	clock        *fakeClock
	xp           *XPService
	achievements *AchievementService
	streaks      *StreakService
	missions     *MissionService
	levels       *LevelService
	stats        *StatsService
	leaderboard  *LeaderboardService
	resets       *ResetService
	submissions  *SubmissionService
	students     *StudentService
}

// newEngine wires every service over one memStore. The clock starts on
// Monday 2024-03-04 09:00 UTC.
func newEngine(t *testing.T) *engine {
	t.Helper()
	store := newMemStore()
	c := newMemCache()
	clock := &fakeClock{now: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)}
	locks := lock.NewStudentLock()
	cfg := testProgressionConfig()

	e := &engine{store: store, cache: c, clock: clock}
	e.achievements = NewAchievementService(store, store, c)
	e.xp = NewXPService(memStudents{store}, store, e.achievements, c, locks, cfg)
	e.missions = NewMissionService(memStudents{store}, memMissions{store}, e.xp, cfg.ProPlanID, time.UTC, clock.Now)
	e.streaks = NewStreakService(store, e.xp, e.missions, c, locks, cfg.LockTimeout, clock.Now)
	e.levels = NewLevelService(memLevels{store}, e.xp, locks, cfg, clock.Now)
	e.stats = NewStatsService(store, store, store, c, time.Minute)
	e.leaderboard = NewLeaderboardService(store, store, time.UTC, time.Now)
	e.resets = NewResetService(store, c, locks, cfg.LockTimeout)
	e.submissions = NewSubmissionService(store, e.levels, e.missions)
	e.students = NewStudentService(memStudents{store})
	return e
}

func jsonMarshal(v any) ([]byte, error)   { return json.Marshal(v) }
func jsonUnmarshal(b []byte, v any) error { return json.Unmarshal(b, v) }
