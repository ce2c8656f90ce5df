package match

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"recruit-agent-go/internal/agent"
	"recruit-agent-go/internal/logger"
	"recruit-agent-go/internal/storage/models"
	"recruit-agent-go/internal/tracing"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
)

var engineTracer = otel.Tracer("recruit-agent-go/match")

// EntityStore 引擎读取候选人与岗位的最小接口
type EntityStore interface {
	GetCandidateByID(ctx context.Context, id string) (*models.Candidate, error)
	GetJobByID(ctx context.Context, id string) (*models.Job, error)
}

// ResultStore 引擎持久化分析结果的最小接口
// 实现必须是针对(candidate_id, job_id)的单条条件更新，不允许创建新申请
type ResultStore interface {
	SaveAnalysisResult(ctx context.Context, candidateID, jobID string, analysis datatypes.JSON, salaryMin, salaryMax int) error
}

// RetryPolicy 重试策略值对象
type RetryPolicy struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64 // 0.1 = 最多10%抖动
}

// DefaultRetryPolicy LLM调用的默认重试策略
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		BaseDelay:    time.Second,
		MaxDelay:     30 * time.Second,
		JitterFactor: 0.1,
	}
}

// Backoff 第attempt次失败后的等待时长：BaseDelay * 2^(attempt-1) 加抖动，封顶MaxDelay
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay * time.Duration(1<<uint(attempt-1))
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.JitterFactor > 0 {
		jitter := time.Duration(rand.Int63n(int64(float64(delay)*p.JitterFactor) + 1))
		delay += jitter
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// EngineOptions 引擎行为参数
type EngineOptions struct {
	Retry          RetryPolicy
	RequestTimeout time.Duration // 单次LLM调用超时
}

// DefaultEngineOptions 默认引擎参数
func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		Retry:          DefaultRetryPolicy(),
		RequestTimeout: 90 * time.Second,
	}
}

// Engine 匹配分析引擎。
// 取数 -> 启发式预匹配 -> prompt -> 有限重试的LLM调用 ->
// 规范化/恢复/兜底 -> 单条条件更新持久化。
// LLM与解析类失败全部被吸收为降级结果，缺实体类错误向上抛。
type Engine struct {
	entities EntityStore
	results  ResultStore
	chat     agent.ChatClient
	opts     EngineOptions
	log      zerolog.Logger
	tracer   trace.Tracer
}

// NewEngine 创建匹配分析引擎
func NewEngine(entities EntityStore, results ResultStore, chat agent.ChatClient, opts EngineOptions) *Engine {
	return &Engine{
		entities: entities,
		results:  results,
		chat:     chat,
		opts:     opts,
		log:      logger.Component("match-engine"),
		tracer:   engineTracer,
	}
}

// Analyze 分析候选人与岗位的匹配度并持久化结果。
// 候选人或岗位不存在返回ErrNotFound（由存储层包装）；
// 其余情况总会产出一条带provenance的记录，persist失败时返回错误。
func (e *Engine) Analyze(ctx context.Context, candidateID, jobID string) (*AnalysisRecord, error) {
	ctx, span := e.tracer.Start(ctx, "match.analyze")
	defer span.End()
	span.SetAttributes(
		attribute.String("candidate.id", candidateID),
		attribute.String("job.id", jobID),
	)

	candidate, job, err := e.loadEntities(ctx, candidateID, jobID)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, err
	}

	candProfile := candidateProfileFromModel(candidate)
	jobProfile := jobProfileFromModel(job)

	// 启发式预匹配，提示结果进prompt，命中/缺失进最终记录
	hints := FindPotentialMatches(candProfile.Skills, jobProfile.RequiredSkills)
	skillMatch := Match(candProfile.Skills, jobProfile.RequiredSkills)
	salary := EstimateSalaryRange(candProfile.YearsExperience, candProfile.Skills, candProfile.DegreeLevel, jobProfile.Title)

	messages := BuildMessages(jobProfile, candProfile, hints)

	var (
		parsed  *ModelResponse
		lastRaw map[string]any
	)
	maxAttempts := e.opts.Retry.MaxAttempts
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, raw, attemptErr := e.generateOnce(ctx, messages)
		if attemptErr == nil {
			parsed = resp
			break
		}
		if raw != nil {
			lastRaw = raw
		}
		tracing.RecordLLMAttemptFailure(span, attemptErr, attempt, maxAttempts)
		e.log.Warn().
			Err(attemptErr).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Str("candidate_id", candidateID).
			Str("job_id", jobID).
			Msg("匹配分析尝试失败")

		if attempt < maxAttempts {
			select {
			case <-time.After(e.opts.Retry.Backoff(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	var record *AnalysisRecord
	switch {
	case parsed != nil:
		record = Format(parsed, skillMatch, salary)
	case lastRaw != nil:
		// 结构不完整但拿到了JSON：逐字段恢复
		record = Recover(lastRaw, skillMatch, salary)
	default:
		record = Fallback(salary)
	}
	span.SetAttributes(
		attribute.String("analysis.provenance", record.Provenance),
		attribute.Int("analysis.score", record.MatchScore),
	)

	analysisJSON, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("分析记录序列化失败: %w", err)
	}
	if err := e.results.SaveAnalysisResult(ctx, candidateID, jobID, analysisJSON, record.Market.SalaryRange.Min, record.Market.SalaryRange.Max); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, fmt.Errorf("分析结果持久化失败: %w", err)
	}

	e.log.Info().
		Str("candidate_id", candidateID).
		Str("job_id", jobID).
		Str("provenance", record.Provenance).
		Int("score", record.MatchScore).
		Msg("匹配分析完成")

	return record, nil
}

// loadEntities 并发加载候选人与岗位
func (e *Engine) loadEntities(ctx context.Context, candidateID, jobID string) (*models.Candidate, *models.Job, error) {
	type candResult struct {
		c   *models.Candidate
		err error
	}
	candCh := make(chan candResult, 1)
	go func() {
		c, err := e.entities.GetCandidateByID(ctx, candidateID)
		candCh <- candResult{c, err}
	}()

	job, jobErr := e.entities.GetJobByID(ctx, jobID)
	cand := <-candCh
	if jobErr != nil {
		return nil, nil, fmt.Errorf("岗位加载失败: %w", jobErr)
	}
	if cand.err != nil {
		return nil, nil, fmt.Errorf("候选人加载失败: %w", cand.err)
	}
	return cand.c, job, nil
}

// generateOnce 单次LLM调用：生成、提取、解析、结构校验
func (e *Engine) generateOnce(ctx context.Context, messages []*schema.Message) (*ModelResponse, map[string]any, error) {
	callCtx := ctx
	if e.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.opts.RequestTimeout)
		defer cancel()
	}

	reply, err := e.chat.Generate(callCtx, messages)
	if err != nil {
		return nil, nil, fmt.Errorf("LLM调用失败: %w", err)
	}
	if reply == nil || reply.Content == "" {
		return nil, nil, fmt.Errorf("LLM返回空响应")
	}

	return ParseModelResponse(reply.Content)
}

// candidateProfileFromModel 解码候选人JSON列为prompt画像
func candidateProfileFromModel(c *models.Candidate) CandidateProfile {
	profile := CandidateProfile{
		Name:            c.Name,
		YearsExperience: c.YearsExperience,
		DegreeLevel:     c.DegreeLevel,
		CurrentTitle:    c.CurrentTitle,
		Location:        c.CurrentLocation,
	}

	_ = json.Unmarshal(c.SkillsJSON, &profile.Skills)

	var langs []models.CandidateLanguage
	if err := json.Unmarshal(c.LanguagesJSON, &langs); err == nil {
		for _, l := range langs {
			if l.Level != "" {
				profile.Languages = append(profile.Languages, fmt.Sprintf("%s (%s)", l.Name, l.Level))
			} else {
				profile.Languages = append(profile.Languages, l.Name)
			}
		}
	}

	var exps []models.CandidateExperience
	if err := json.Unmarshal(c.ExperienceJSON, &exps); err == nil {
		for _, x := range exps {
			profile.Experiences = append(profile.Experiences, fmt.Sprintf("%s chez %s (%.1f ans)", x.Title, x.Company, x.Years))
		}
	}

	var edus []models.CandidateEducation
	if err := json.Unmarshal(c.EducationJSON, &edus); err == nil {
		for _, ed := range edus {
			profile.Educations = append(profile.Educations, fmt.Sprintf("%s en %s", ed.Degree, ed.Field))
		}
	}

	return profile
}

// jobProfileFromModel 解码岗位JSON列为prompt要求
func jobProfileFromModel(j *models.Job) JobProfile {
	profile := JobProfile{
		Title:          j.JobTitle,
		Description:    j.JobDescriptionText,
		MinYears:       j.MinYearsExperience,
		EducationLevel: j.RequiredEducationLevel,
		EducationField: j.RequiredEducationField,
	}

	_ = json.Unmarshal(j.RequiredSkillsJSON, &profile.RequiredSkills)

	var langs []models.CandidateLanguage
	if err := json.Unmarshal(j.RequiredLanguagesJSON, &langs); err == nil {
		for _, l := range langs {
			profile.RequiredLanguages = append(profile.RequiredLanguages, l.Name)
		}
	}

	return profile
}
