package application

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"recruit-agent-go/internal/constants"
	"recruit-agent-go/internal/match"
	"recruit-agent-go/internal/queue"
	"recruit-agent-go/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatusStore struct {
	analyzing []string
	failed    map[string]string
	markErr   error
}

func newFakeStatusStore() *fakeStatusStore {
	return &fakeStatusStore{failed: make(map[string]string)}
}

func (f *fakeStatusStore) MarkApplicationAnalyzing(ctx context.Context, id string) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.analyzing = append(f.analyzing, id)
	return nil
}

func (f *fakeStatusStore) MarkApplicationFailed(ctx context.Context, id, note string) error {
	f.failed[id] = note
	return nil
}

type fakeAnalyzer struct {
	record *match.AnalysisRecord
	err    error
	calls  int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, candidateID, jobID string) (*match.AnalysisRecord, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.record, nil
}

func analysisJob(t *testing.T) *queue.Job {
	t.Helper()
	payload, err := json.Marshal(storage.AnalysisJobPayload{
		ApplicationID: "app-1",
		CandidateID:   "cand-1",
		JobID:         "job-1",
	})
	require.NoError(t, err)
	return &queue.Job{ID: "q-job-1", Payload: string(payload)}
}

func TestHandleJobSuccess(t *testing.T) {
	statuses := newFakeStatusStore()
	engine := &fakeAnalyzer{record: &match.AnalysisRecord{
		MatchScore: 70,
		Provenance: constants.ProvenanceComplete,
	}}
	p := NewProcessor(nil, nil, statuses, engine)

	err := p.HandleJob(context.Background(), analysisJob(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"app-1"}, statuses.analyzing)
	assert.Empty(t, statuses.failed)
	assert.Equal(t, 1, engine.calls)
}

func TestHandleJobFallbackStillCompletes(t *testing.T) {
	// 引擎兜底结果不算错误，任务正常完成
	statuses := newFakeStatusStore()
	engine := &fakeAnalyzer{record: &match.AnalysisRecord{
		MatchScore: 50,
		Provenance: constants.ProvenanceFallback,
	}}
	p := NewProcessor(nil, nil, statuses, engine)

	err := p.HandleJob(context.Background(), analysisJob(t))
	require.NoError(t, err)
	assert.Empty(t, statuses.failed)
}

func TestHandleJobEngineErrorMarksFailed(t *testing.T) {
	statuses := newFakeStatusStore()
	engine := &fakeAnalyzer{err: errors.New("candidate missing")}
	p := NewProcessor(nil, nil, statuses, engine)

	err := p.HandleJob(context.Background(), analysisJob(t))
	require.Error(t, err)
	assert.Contains(t, statuses.failed["app-1"], "candidate missing")
}

func TestHandleJobCorruptPayload(t *testing.T) {
	statuses := newFakeStatusStore()
	engine := &fakeAnalyzer{}
	p := NewProcessor(nil, nil, statuses, engine)

	err := p.HandleJob(context.Background(), &queue.Job{ID: "bad", Payload: "not json"})
	require.Error(t, err)
	assert.Equal(t, 0, engine.calls)
	assert.Empty(t, statuses.analyzing)
}

func TestHandleJobMarkAnalyzingFailure(t *testing.T) {
	statuses := newFakeStatusStore()
	statuses.markErr = errors.New("db timeout")
	engine := &fakeAnalyzer{}
	p := NewProcessor(nil, nil, statuses, engine)

	err := p.HandleJob(context.Background(), analysisJob(t))
	require.Error(t, err)
	assert.Equal(t, 0, engine.calls)
}
