package match

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"recruit-agent-go/internal/agent"
	"recruit-agent-go/internal/constants"
	"recruit-agent-go/internal/storage"
	"recruit-agent-go/internal/storage/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type fakeEntityStore struct {
	candidates map[string]*models.Candidate
	jobs       map[string]*models.Job
}

func (f *fakeEntityStore) GetCandidateByID(ctx context.Context, id string) (*models.Candidate, error) {
	c, ok := f.candidates[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return c, nil
}

func (f *fakeEntityStore) GetJobByID(ctx context.Context, id string) (*models.Job, error) {
	j, ok := f.jobs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return j, nil
}

type fakeResultStore struct {
	saved     []datatypes.JSON
	saveErr   error
	salaryMin int
	salaryMax int
}

func (f *fakeResultStore) SaveAnalysisResult(ctx context.Context, candidateID, jobID string, analysis datatypes.JSON, salaryMin, salaryMax int) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, analysis)
	f.salaryMin = salaryMin
	f.salaryMax = salaryMax
	return nil
}

func mustJSON(t *testing.T, v any) datatypes.JSON {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func testEntities(t *testing.T) *fakeEntityStore {
	t.Helper()
	return &fakeEntityStore{
		candidates: map[string]*models.Candidate{
			"cand-1": {
				CandidateID:     "cand-1",
				Name:            "Amine",
				SkillsJSON:      mustJSON(t, []string{"Node.js", "MongoDB"}),
				LanguagesJSON:   mustJSON(t, []models.CandidateLanguage{{Name: "Français", Level: "C1"}}),
				ExperienceJSON:  mustJSON(t, []models.CandidateExperience{{Title: "Développeur", Company: "ACME", Years: 3}}),
				EducationJSON:   mustJSON(t, []models.CandidateEducation{{Degree: "Licence", Field: "Informatique"}}),
				YearsExperience: 3,
				DegreeLevel:     "bachelor",
				CurrentTitle:    "Développeur Backend",
			},
		},
		jobs: map[string]*models.Job{
			"job-1": {
				JobID:                  "job-1",
				JobTitle:               "Développeur NodeJS",
				JobDescriptionText:     "Backend NodeJS",
				RequiredSkillsJSON:     mustJSON(t, []string{"NodeJS", "Mongoose"}),
				RequiredLanguagesJSON:  mustJSON(t, []models.CandidateLanguage{{Name: "Français"}}),
				MinYearsExperience:     2,
				RequiredEducationLevel: "bachelor",
			},
		},
	}
}

func fastEngineOptions() EngineOptions {
	return EngineOptions{
		Retry: RetryPolicy{
			MaxAttempts:  3,
			BaseDelay:    time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			JitterFactor: 0,
		},
		RequestTimeout: time.Second,
	}
}

const validModelOutput = `{"resume":{"score":78,"correspondance":{"competences":80,"experience":true,"formation":true,"langues":70},"matchedKeywords":["Node.js","MongoDB"],"highlightsToStandOut":["3 ans d'expérience backend"],"suggestions":["Entretien technique recommandé"]},"signauxAlerte":[{"type":"Compétence","probleme":"Docker absent du profil","severite":"faible","score":60}]}`

func TestAnalyzeComplete(t *testing.T) {
	results := &fakeResultStore{}
	chat := agent.NewMockChatClient(validModelOutput, nil)
	engine := NewEngine(testEntities(t), results, chat, fastEngineOptions())

	record, err := engine.Analyze(context.Background(), "cand-1", "job-1")
	require.NoError(t, err)

	assert.Equal(t, constants.ProvenanceComplete, record.Provenance)
	assert.Equal(t, 78, record.MatchScore)
	assert.Equal(t, 1, chat.CallCount()) // 结构有效不再重试
	require.Len(t, results.saved, 1)
	assert.Equal(t, record.Market.SalaryRange.Min, results.salaryMin)
	assert.Equal(t, record.Market.SalaryRange.Max, results.salaryMax)

	// 持久化的就是规范化记录
	var persisted AnalysisRecord
	require.NoError(t, json.Unmarshal(results.saved[0], &persisted))
	assert.Equal(t, record.MatchScore, persisted.MatchScore)
}

func TestAnalyzePromptEmbedsAliasHints(t *testing.T) {
	results := &fakeResultStore{}
	chat := agent.NewMockChatClient(validModelOutput, nil)
	engine := NewEngine(testEntities(t), results, chat, fastEngineOptions())

	_, err := engine.Analyze(context.Background(), "cand-1", "job-1")
	require.NoError(t, err)

	// 候选人写 Node.js/MongoDB，岗位写 NodeJS/Mongoose：两个技能都要进prompt提示
	require.Len(t, chat.ReceivedMessages, 1)
	messages := chat.ReceivedMessages[0]
	require.Len(t, messages, 2)
	userPrompt := messages[1].Content
	assert.Contains(t, userPrompt, "Potentielles correspondances de compétences détectées: Node.js, MongoDB")
	assert.Contains(t, userPrompt, "Règles d'analyse STRICTES")
}

func TestAnalyzeCodeFenceNoRetry(t *testing.T) {
	fenced := "```json\n" + validModelOutput + "\n```"
	chat := agent.NewMockChatClient(fenced, nil)
	engine := NewEngine(testEntities(t), &fakeResultStore{}, chat, fastEngineOptions())

	record, err := engine.Analyze(context.Background(), "cand-1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, constants.ProvenanceComplete, record.Provenance)
	assert.Equal(t, 1, chat.CallCount())
}

func TestAnalyzeFallbackAfterThreePlainTextResponses(t *testing.T) {
	results := &fakeResultStore{}
	chat := agent.NewMockChatClientSequential([]agent.MockResponse{
		{Content: "I cannot analyze this"},
		{Content: "I cannot analyze this"},
		{Content: "I cannot analyze this"},
	})
	engine := NewEngine(testEntities(t), results, chat, fastEngineOptions())

	record, err := engine.Analyze(context.Background(), "cand-1", "job-1")
	require.NoError(t, err)

	assert.Equal(t, 3, chat.CallCount())
	assert.Equal(t, constants.ProvenanceFallback, record.Provenance)
	assert.Equal(t, 50, record.MatchScore)
	assert.Len(t, record.Alerts, 1)
	// 兜底也要计算薪资并持久化
	require.Len(t, results.saved, 1)
	assert.Greater(t, results.salaryMin, 0)
}

func TestAnalyzeRecoversPartialStructure(t *testing.T) {
	// 三次都缺signauxAlerte：结构校验失败，走恢复路径
	partial := `{"resume":{"score":66,"correspondance":{"competences":70,"experience":true,"formation":true,"langues":50},"matchedKeywords":["Node.js"]}}`
	chat := agent.NewMockChatClient(partial, nil)
	results := &fakeResultStore{}
	engine := NewEngine(testEntities(t), results, chat, fastEngineOptions())

	record, err := engine.Analyze(context.Background(), "cand-1", "job-1")
	require.NoError(t, err)

	assert.Equal(t, constants.ProvenanceRecovered, record.Provenance)
	assert.Equal(t, 66, record.MatchScore)
	assert.NotEmpty(t, record.Alerts) // 占位告警
	require.Len(t, results.saved, 1)
}

func TestAnalyzeTransportErrorsThenSuccess(t *testing.T) {
	chat := agent.NewMockChatClientSequential([]agent.MockResponse{
		{Error: errors.New("connection reset")},
		{Content: validModelOutput},
	})
	engine := NewEngine(testEntities(t), &fakeResultStore{}, chat, fastEngineOptions())

	record, err := engine.Analyze(context.Background(), "cand-1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, constants.ProvenanceComplete, record.Provenance)
	assert.Equal(t, 2, chat.CallCount())
}

func TestAnalyzeNotFound(t *testing.T) {
	chat := agent.NewMockChatClient(validModelOutput, nil)
	engine := NewEngine(testEntities(t), &fakeResultStore{}, chat, fastEngineOptions())

	_, err := engine.Analyze(context.Background(), "cand-1", "job-missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, 0, chat.CallCount()) // 缺实体不调用LLM

	_, err = engine.Analyze(context.Background(), "cand-missing", "job-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAnalyzePersistFailurePropagates(t *testing.T) {
	results := &fakeResultStore{saveErr: errors.New("db down")}
	chat := agent.NewMockChatClient(validModelOutput, nil)
	engine := NewEngine(testEntities(t), results, chat, fastEngineOptions())

	_, err := engine.Analyze(context.Background(), "cand-1", "job-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "持久化失败")
}

func TestRetryPolicyBackoff(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second, JitterFactor: 0}
	assert.Equal(t, time.Second, p.Backoff(1))
	assert.Equal(t, 2*time.Second, p.Backoff(2))
	assert.Equal(t, 4*time.Second, p.Backoff(3))
	assert.Equal(t, 30*time.Second, p.Backoff(10))
}
