package application

import (
	"context"
	"encoding/json"
	"fmt"

	"recruit-agent-go/internal/logger"
	"recruit-agent-go/internal/match"
	"recruit-agent-go/internal/queue"
	"recruit-agent-go/internal/storage"

	"github.com/rs/zerolog"
)

// Analyzer 匹配分析引擎的最小接口
type Analyzer interface {
	Analyze(ctx context.Context, candidateID, jobID string) (*match.AnalysisRecord, error)
}

// StatusStore 分析流程的申请状态流转
type StatusStore interface {
	MarkApplicationAnalyzing(ctx context.Context, applicationID string) error
	MarkApplicationFailed(ctx context.Context, applicationID string, note string) error
}

// Enqueuer 分析任务入队
type Enqueuer interface {
	Enqueue(ctx context.Context, payload []byte) (*queue.Job, error)
}

// Processor 把application.submitted事件接入分析队列，并承载worker侧的任务处理。
// 事件链: outbox中继 -> RabbitMQ -> StartConsuming入队 -> 队列worker -> HandleJob
type Processor struct {
	rabbit   *storage.RabbitMQ
	enqueuer Enqueuer
	statuses StatusStore
	engine   Analyzer
	queueCfg struct {
		name     string
		prefetch int
	}
	log zerolog.Logger
}

// NewProcessor 创建申请分析处理器
func NewProcessor(rabbit *storage.RabbitMQ, enqueuer Enqueuer, statuses StatusStore, engine Analyzer) *Processor {
	return &Processor{
		rabbit:   rabbit,
		enqueuer: enqueuer,
		statuses: statuses,
		engine:   engine,
		log:      logger.Component("application-processor"),
	}
}

// StartConsuming 消费application.submitted事件并入队分析任务。
// 消息不可解析时ack丢弃（毒消息不重投），入队失败时nack重回队列。
func (p *Processor) StartConsuming(queueName string, prefetchCount int) (<-chan struct{}, error) {
	return p.rabbit.StartConsumer(queueName, prefetchCount, func(body []byte) bool {
		var msg storage.ApplicationSubmittedMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			p.log.Error().Err(err).Msg("提交事件反序列化失败，丢弃消息")
			return true
		}
		if msg.ApplicationID == "" || msg.CandidateID == "" || msg.JobID == "" {
			p.log.Error().RawJSON("message", body).Msg("提交事件字段不完整，丢弃消息")
			return true
		}

		payload, err := json.Marshal(storage.AnalysisJobPayload{
			ApplicationID: msg.ApplicationID,
			CandidateID:   msg.CandidateID,
			JobID:         msg.JobID,
		})
		if err != nil {
			p.log.Error().Err(err).Msg("任务载荷序列化失败")
			return true
		}

		job, err := p.enqueuer.Enqueue(context.Background(), payload)
		if err != nil {
			p.log.Error().Err(err).Str("application_id", msg.ApplicationID).Msg("分析任务入队失败，重回消息队列")
			return false
		}

		p.log.Info().
			Str("application_id", msg.ApplicationID).
			Str("job_id", job.ID).
			Msg("分析任务已入队")
		return true
	})
}

// HandleJob 队列worker的任务处理函数。
// 标记ANALYZING -> 引擎分析（内部吸收LLM失败并持久化降级结果）->
// 引擎返回错误（缺实体或持久化失败）时标记ANALYSIS_FAILED并返回错误，
// 交给队列按退避策略重试。
func (p *Processor) HandleJob(ctx context.Context, job *queue.Job) error {
	var payload storage.AnalysisJobPayload
	if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
		// 载荷损坏重试无意义，直接失败
		return fmt.Errorf("任务载荷损坏: %w", err)
	}

	log := p.log.With().
		Str("job_id", job.ID).
		Str("application_id", payload.ApplicationID).
		Logger()

	if err := p.statuses.MarkApplicationAnalyzing(ctx, payload.ApplicationID); err != nil {
		return fmt.Errorf("标记申请为分析中失败: %w", err)
	}

	record, err := p.engine.Analyze(ctx, payload.CandidateID, payload.JobID)
	if err != nil {
		note := fmt.Sprintf("analysis failed: %v", err)
		if markErr := p.statuses.MarkApplicationFailed(ctx, payload.ApplicationID, note); markErr != nil {
			log.Error().Err(markErr).Msg("标记申请失败状态时出错")
		}
		return fmt.Errorf("匹配分析失败: %w", err)
	}

	log.Info().
		Str("provenance", record.Provenance).
		Int("score", record.MatchScore).
		Msg("申请分析完成")
	return nil
}
