package maintenance

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"recruit-agent-go/internal/constants"
	"recruit-agent-go/internal/queue"
	"recruit-agent-go/internal/storage"
	"recruit-agent-go/internal/storage/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQueue 内存队列运维桩
type fakeQueue struct {
	jobs     map[string]*queue.Job // id -> job（带状态）
	finished map[string]time.Time  // completed任务的完成时间
	paused   bool
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{
		jobs:     make(map[string]*queue.Job),
		finished: make(map[string]time.Time),
	}
}

func (f *fakeQueue) addJob(id string, state queue.JobState, payload string) {
	f.jobs[id] = &queue.Job{ID: id, State: state, Payload: payload}
}

func (f *fakeQueue) GetCounts(ctx context.Context) (*queue.Counts, error) {
	c := &queue.Counts{Paused: f.paused}
	for _, j := range f.jobs {
		switch j.State {
		case queue.StateWaiting:
			c.Waiting++
		case queue.StateDelayed:
			c.Delayed++
		case queue.StateActive:
			c.Active++
		case queue.StateCompleted:
			c.Completed++
		case queue.StateFailed:
			c.Failed++
		}
	}
	return c, nil
}

func (f *fakeQueue) FailedJobIDs(ctx context.Context) ([]string, error) {
	return f.idsByState(queue.StateFailed), nil
}

func (f *fakeQueue) JobIDs(ctx context.Context, state queue.JobState) ([]string, error) {
	return f.idsByState(state), nil
}

func (f *fakeQueue) idsByState(state queue.JobState) []string {
	var ids []string
	for id, j := range f.jobs {
		if j.State == state {
			ids = append(ids, id)
		}
	}
	return ids
}

func (f *fakeQueue) GetJob(ctx context.Context, jobID string) (*queue.Job, error) {
	j, ok := f.jobs[jobID]
	if !ok {
		return nil, queue.ErrJobNotFound
	}
	return j, nil
}

func (f *fakeQueue) RemoveJob(ctx context.Context, jobID string) error {
	delete(f.jobs, jobID)
	delete(f.finished, jobID)
	return nil
}

func (f *fakeQueue) CleanCompleted(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	var cleaned int64
	for id, finishedAt := range f.finished {
		if finishedAt.Before(cutoff) {
			delete(f.jobs, id)
			delete(f.finished, id)
			cleaned++
		}
	}
	return cleaned, nil
}

func (f *fakeQueue) Pause(ctx context.Context) error  { f.paused = true; return nil }
func (f *fakeQueue) Resume(ctx context.Context) error { f.paused = false; return nil }

// fakeAppStore 内存申请桩，连带候选人与岗位表
type fakeAppStore struct {
	apps       map[string]*models.Application
	candidates map[string]*models.Candidate
	positions  map[string]*models.Job
}

func newFakeAppStore() *fakeAppStore {
	return &fakeAppStore{
		apps:       make(map[string]*models.Application),
		candidates: make(map[string]*models.Candidate),
		positions:  make(map[string]*models.Job),
	}
}

// addApp 录入申请并自动补齐其引用的候选人与岗位
func (f *fakeAppStore) addApp(app *models.Application) {
	if app.CandidateID == "" {
		app.CandidateID = "cand-" + app.ApplicationID
	}
	if app.JobID == "" {
		app.JobID = "job-" + app.ApplicationID
	}
	f.apps[app.ApplicationID] = app
	f.candidates[app.CandidateID] = &models.Candidate{CandidateID: app.CandidateID}
	f.positions[app.JobID] = &models.Job{JobID: app.JobID}
}

func (f *fakeAppStore) GetApplicationByID(ctx context.Context, id string) (*models.Application, error) {
	app, ok := f.apps[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return app, nil
}

func (f *fakeAppStore) GetCandidateByID(ctx context.Context, id string) (*models.Candidate, error) {
	c, ok := f.candidates[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return c, nil
}

func (f *fakeAppStore) GetJobByID(ctx context.Context, id string) (*models.Job, error) {
	j, ok := f.positions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return j, nil
}

func (f *fakeAppStore) ResetStuckApplications(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	var reset int64
	for _, app := range f.apps {
		if app.Status == constants.AppStatusAnalyzing && app.AnalyzingAt != nil && app.AnalyzingAt.Before(cutoff) {
			app.Status = constants.AppStatusPending
			app.AnalyzingAt = nil
			app.StatusNote = storage.StuckResetNote
			reset++
		}
	}
	return reset, nil
}

func (f *fakeAppStore) CountApplicationsByStatus(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64)
	for _, app := range f.apps {
		out[app.Status]++
	}
	return out, nil
}

func payloadFor(t *testing.T, appID string) string {
	t.Helper()
	b, err := json.Marshal(storage.AnalysisJobPayload{ApplicationID: appID, CandidateID: "c", JobID: "j"})
	require.NoError(t, err)
	return string(b)
}

func testService(q QueueOps, store ApplicationStore) *Service {
	return NewService(q, store, nil, DefaultOptions())
}

func TestCleanupRemovesFailedJobs(t *testing.T) {
	q := newFakeQueue()
	store := newFakeAppStore()
	q.addJob("f1", queue.StateFailed, "{}")
	q.addJob("f2", queue.StateFailed, "{}")

	report := testService(q, store).CleanupProblematicJobs(context.Background())
	assert.Equal(t, 2, report.Cleaned)
	assert.Empty(t, report.Errors)
	assert.Empty(t, q.idsByState(queue.StateFailed))
}

func TestCleanupPurgesOldCompleted(t *testing.T) {
	q := newFakeQueue()
	store := newFakeAppStore()
	q.addJob("old", queue.StateCompleted, "{}")
	q.finished["old"] = time.Now().Add(-25 * time.Hour)
	q.addJob("fresh", queue.StateCompleted, "{}")
	q.finished["fresh"] = time.Now().Add(-1 * time.Hour)

	report := testService(q, store).CleanupProblematicJobs(context.Background())
	assert.Equal(t, 1, report.Cleaned)
	_, ok := q.jobs["fresh"]
	assert.True(t, ok, "24小时内的completed任务不能被清")
}

func TestCleanupValidatesReferentialIntegrity(t *testing.T) {
	q := newFakeQueue()
	store := newFakeAppStore()
	store.addApp(&models.Application{ApplicationID: "app-ok", Status: constants.AppStatusPending})
	store.addApp(&models.Application{ApplicationID: "app-done", Status: constants.AppStatusAnalyzed})

	q.addJob("valid", queue.StateWaiting, payloadFor(t, "app-ok"))
	q.addJob("orphan", queue.StateWaiting, payloadFor(t, "app-ghost"))
	q.addJob("stale", queue.StateDelayed, payloadFor(t, "app-done"))
	q.addJob("corrupt", queue.StateDelayed, "not json")

	report := testService(q, store).CleanupProblematicJobs(context.Background())

	assert.Equal(t, 3, report.Cleaned) // orphan + stale + corrupt
	assert.Equal(t, 1, report.Validated)
	assert.Empty(t, report.Errors)
	_, ok := q.jobs["valid"]
	assert.True(t, ok)
}

func TestCleanupRemovesJobsWithMissingCandidateOrPosition(t *testing.T) {
	// 申请还在，但它引用的候选人或岗位已被删除：任务注定失败，必须被清掉
	q := newFakeQueue()
	store := newFakeAppStore()

	store.addApp(&models.Application{ApplicationID: "app-no-cand", Status: constants.AppStatusPending})
	delete(store.candidates, "cand-app-no-cand")
	store.addApp(&models.Application{ApplicationID: "app-no-pos", Status: constants.AppStatusPending})
	delete(store.positions, "job-app-no-pos")
	store.addApp(&models.Application{ApplicationID: "app-intact", Status: constants.AppStatusPending})

	q.addJob("dangling-cand", queue.StateWaiting, payloadFor(t, "app-no-cand"))
	q.addJob("dangling-pos", queue.StateDelayed, payloadFor(t, "app-no-pos"))
	q.addJob("sound", queue.StateWaiting, payloadFor(t, "app-intact"))

	report := testService(q, store).CleanupProblematicJobs(context.Background())

	assert.Equal(t, 2, report.Cleaned)
	assert.Equal(t, 1, report.Validated)
	assert.Empty(t, report.Errors)
	_, ok := q.jobs["sound"]
	assert.True(t, ok)
	_, ok = q.jobs["dangling-cand"]
	assert.False(t, ok)
	_, ok = q.jobs["dangling-pos"]
	assert.False(t, ok)
}

func TestCleanupIdempotent(t *testing.T) {
	// 连续执行两次，第二次cleaned必须为0（不重复删除、不重复计数）
	q := newFakeQueue()
	store := newFakeAppStore()
	q.addJob("f1", queue.StateFailed, "{}")
	q.addJob("orphan", queue.StateWaiting, payloadFor(t, "app-ghost"))

	svc := testService(q, store)
	first := svc.CleanupProblematicJobs(context.Background())
	assert.Equal(t, 2, first.Cleaned)

	second := svc.CleanupProblematicJobs(context.Background())
	assert.Equal(t, 0, second.Cleaned)
	assert.Empty(t, second.Errors)
}

func TestCleanupResetsStuckApplications(t *testing.T) {
	q := newFakeQueue()
	store := newFakeAppStore()

	twoHoursAgo := time.Now().Add(-2 * time.Hour)
	fiveMinAgo := time.Now().Add(-5 * time.Minute)
	store.addApp(&models.Application{
		ApplicationID: "stuck",
		Status:        constants.AppStatusAnalyzing,
		AnalyzingAt:   &twoHoursAgo,
	})
	store.addApp(&models.Application{
		ApplicationID: "active",
		Status:        constants.AppStatusAnalyzing,
		AnalyzingAt:   &fiveMinAgo,
	})

	report := testService(q, store).CleanupProblematicJobs(context.Background())

	assert.Equal(t, 1, report.Validated)
	assert.Equal(t, constants.AppStatusPending, store.apps["stuck"].Status)
	assert.Equal(t, storage.StuckResetNote, store.apps["stuck"].StatusNote, "重置必须留下说明备注")
	assert.Equal(t, constants.AppStatusAnalyzing, store.apps["active"].Status, "2小时阈值内的申请不动")
	assert.Empty(t, store.apps["active"].StatusNote)
}

func TestGetStats(t *testing.T) {
	q := newFakeQueue()
	store := newFakeAppStore()
	q.addJob("w1", queue.StateWaiting, "{}")
	q.addJob("a1", queue.StateActive, "{}")
	store.apps["x"] = &models.Application{ApplicationID: "x", Status: constants.AppStatusAnalyzed}

	stats, err := testService(q, store).GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Queue.Waiting)
	assert.Equal(t, int64(1), stats.Queue.Active)
	assert.Equal(t, int64(1), stats.Applications[constants.AppStatusAnalyzed])
}

func TestPauseResume(t *testing.T) {
	q := newFakeQueue()
	svc := testService(q, newFakeAppStore())

	require.NoError(t, svc.Pause(context.Background()))
	assert.True(t, q.paused)
	require.NoError(t, svc.Resume(context.Background()))
	assert.False(t, q.paused)
}
