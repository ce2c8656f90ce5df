package application

import (
	"context"
	"testing"
	"time"

	"recruit-agent-go/internal/config"
	"recruit-agent-go/internal/constants"
	"recruit-agent-go/internal/storage"
	"recruit-agent-go/internal/storage/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSubmissionStore 在内存中复刻提交事务的语义：
// 实体校验、(candidate, job)唯一、PENDING初始状态
type fakeSubmissionStore struct {
	candidates map[string]bool
	jobs       map[string]bool
	byPair     map[[2]string]*models.Application
	byID       map[string]*models.Application
}

func newFakeSubmissionStore() *fakeSubmissionStore {
	return &fakeSubmissionStore{
		candidates: map[string]bool{"cand-1": true},
		jobs:       map[string]bool{"job-1": true},
		byPair:     make(map[[2]string]*models.Application),
		byID:       make(map[string]*models.Application),
	}
}

func (f *fakeSubmissionStore) CreateApplicationWithOutbox(ctx context.Context, candidateID, jobID, exchange, routingKey string) (*models.Application, error) {
	if !f.candidates[candidateID] || !f.jobs[jobID] {
		return nil, storage.ErrNotFound
	}
	key := [2]string{candidateID, jobID}
	if _, exists := f.byPair[key]; exists {
		return nil, storage.ErrDuplicateApplication
	}
	app := &models.Application{
		ApplicationID: uuid.NewString(),
		CandidateID:   candidateID,
		JobID:         jobID,
		Status:        constants.AppStatusPending,
		AppliedAt:     time.Now(),
	}
	f.byPair[key] = app
	f.byID[app.ApplicationID] = app
	return app, nil
}

func (f *fakeSubmissionStore) GetApplicationByID(ctx context.Context, applicationID string) (*models.Application, error) {
	app, ok := f.byID[applicationID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return app, nil
}

func testRabbitConfig() *config.RabbitMQConfig {
	return &config.RabbitMQConfig{
		ApplicationEventsExchange: "application.events.exchange",
		SubmittedRoutingKey:       "application.submitted",
	}
}

func TestCreateApplication(t *testing.T) {
	svc := NewService(newFakeSubmissionStore(), testRabbitConfig())

	app, err := svc.Create(context.Background(), "cand-1", "job-1")
	require.NoError(t, err)
	assert.NotEmpty(t, app.ApplicationID)
	assert.Equal(t, constants.AppStatusPending, app.Status)

	got, err := svc.Get(context.Background(), app.ApplicationID)
	require.NoError(t, err)
	assert.Equal(t, app.ApplicationID, got.ApplicationID)
}

func TestCreateDuplicateRejected(t *testing.T) {
	store := newFakeSubmissionStore()
	svc := NewService(store, testRabbitConfig())

	first, err := svc.Create(context.Background(), "cand-1", "job-1")
	require.NoError(t, err)

	// 同一(candidate, job)再次提交必须被拒绝，且不产生第二条申请
	_, err = svc.Create(context.Background(), "cand-1", "job-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrDuplicateApplication)
	assert.Len(t, store.byID, 1)
	assert.Equal(t, first.ApplicationID, store.byPair[[2]string{"cand-1", "job-1"}].ApplicationID)
}

func TestCreateMissingEntities(t *testing.T) {
	svc := NewService(newFakeSubmissionStore(), testRabbitConfig())

	_, err := svc.Create(context.Background(), "cand-ghost", "job-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = svc.Create(context.Background(), "cand-1", "job-ghost")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
