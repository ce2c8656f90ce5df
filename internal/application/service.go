package application

import (
	"context"

	"recruit-agent-go/internal/config"
	"recruit-agent-go/internal/logger"
	"recruit-agent-go/internal/storage"
	"recruit-agent-go/internal/storage/models"

	"github.com/rs/zerolog"
)

// SubmissionStore 提交与查询申请所需的存储能力
type SubmissionStore interface {
	CreateApplicationWithOutbox(ctx context.Context, candidateID, jobID, exchange, routingKey string) (*models.Application, error)
	GetApplicationByID(ctx context.Context, applicationID string) (*models.Application, error)
}

// Service 申请提交服务。
// 创建走单事务：实体校验、重复拒绝、PENDING行与outbox事件一并落库，
// 分析任务由发件箱中继发布的事件异步触发。
type Service struct {
	store      SubmissionStore
	exchange   string
	routingKey string
	log        zerolog.Logger
}

// NewService 创建申请服务
func NewService(store SubmissionStore, cfg *config.RabbitMQConfig) *Service {
	return &Service{
		store:      store,
		exchange:   cfg.ApplicationEventsExchange,
		routingKey: cfg.SubmittedRoutingKey,
		log:        logger.Component("application-service"),
	}
}

// Create 提交申请。
// 重复的(candidate, job)返回storage.ErrDuplicateApplication，
// 候选人或岗位不存在返回storage.ErrNotFound。
func (s *Service) Create(ctx context.Context, candidateID, jobID string) (*models.Application, error) {
	app, err := s.store.CreateApplicationWithOutbox(ctx, candidateID, jobID, s.exchange, s.routingKey)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("application_id", app.ApplicationID).
		Str("candidate_id", candidateID).
		Str("job_id", jobID).
		Msg("申请已提交，等待分析")
	return app, nil
}

// Get 按ID查询申请
func (s *Service) Get(ctx context.Context, applicationID string) (*models.Application, error) {
	return s.store.GetApplicationByID(ctx, applicationID)
}

var _ SubmissionStore = (*storage.MySQL)(nil)
