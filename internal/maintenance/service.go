package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"recruit-agent-go/internal/constants"
	"recruit-agent-go/internal/logger"
	"recruit-agent-go/internal/queue"
	"recruit-agent-go/internal/storage"
	"recruit-agent-go/internal/storage/models"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var maintenanceTracer = otel.Tracer("recruit-agent-go/maintenance")

// sweepLockKey 周期巡检的分布式锁，多实例部署时只允许一个实例执行
const sweepLockKey = "recruit:maintenance:sweep:lock"

// QueueOps 自愈服务依赖的队列运维能力
type QueueOps interface {
	GetCounts(ctx context.Context) (*queue.Counts, error)
	FailedJobIDs(ctx context.Context) ([]string, error)
	JobIDs(ctx context.Context, state queue.JobState) ([]string, error)
	GetJob(ctx context.Context, jobID string) (*queue.Job, error)
	RemoveJob(ctx context.Context, jobID string) error
	CleanCompleted(ctx context.Context, olderThan time.Duration) (int64, error)
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
}

// ApplicationStore 自愈服务依赖的申请存储能力
type ApplicationStore interface {
	GetApplicationByID(ctx context.Context, applicationID string) (*models.Application, error)
	GetCandidateByID(ctx context.Context, candidateID string) (*models.Candidate, error)
	GetJobByID(ctx context.Context, jobID string) (*models.Job, error)
	ResetStuckApplications(ctx context.Context, olderThan time.Duration) (int64, error)
	CountApplicationsByStatus(ctx context.Context) (map[string]int64, error)
}

// Locker 巡检互斥用的分布式锁
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, expiration time.Duration) (string, error)
	ReleaseLock(ctx context.Context, lockKey string, lockValue string) (bool, error)
}

// CleanupReport 单次清扫的汇总结果
type CleanupReport struct {
	Cleaned   int      `json:"cleaned"`   // 被移除的任务数
	Validated int      `json:"validated"` // 校验通过的任务数 + 被重置的卡死申请数
	Errors    []string `json:"errors"`    // 逐项错误，不中断清扫
}

// Stats 运维可见的队列与申请状态快照
type Stats struct {
	Queue        *queue.Counts    `json:"queue"`
	Applications map[string]int64 `json:"applications"`
}

// Options 自愈服务参数
type Options struct {
	CompletedRetention time.Duration // 完成任务保留时长
	StuckThreshold     time.Duration // ANALYZING卡死判定阈值
	SweepInterval      time.Duration // 周期巡检间隔
}

// DefaultOptions 默认自愈参数
func DefaultOptions() Options {
	return Options{
		CompletedRetention: constants.CompletedRetention,
		StuckThreshold:     constants.StuckAnalyzingDuration,
		SweepInterval:      constants.DefaultSweepInterval,
	}
}

// Service 队列自愈服务。
// 启动时和周期性地：清除failed任务、裁剪过期completed任务、
// 校验waiting/delayed任务的引用完整性、重置卡死的ANALYZING申请。
// 单项失败只进错误列表，绝不让一个坏任务挡住其余清理。
type Service struct {
	queue  QueueOps
	store  ApplicationStore
	locker Locker
	opts   Options
	log    zerolog.Logger
	tracer trace.Tracer
}

// NewService 创建自愈服务，locker可为nil（单实例部署）
func NewService(q QueueOps, store ApplicationStore, locker Locker, opts Options) *Service {
	return &Service{
		queue:  q,
		store:  store,
		locker: locker,
		opts:   opts,
		log:    logger.Component("maintenance"),
		tracer: maintenanceTracer,
	}
}

// CleanupProblematicJobs 执行一次完整清扫并返回汇总报告。
// 本身从不返回error：所有可继续的失败都收进报告的Errors
func (s *Service) CleanupProblematicJobs(ctx context.Context) *CleanupReport {
	ctx, span := s.tracer.Start(ctx, "maintenance.cleanup")
	defer span.End()

	report := &CleanupReport{Errors: []string{}}

	s.removeFailedJobs(ctx, report)
	s.purgeExpiredCompleted(ctx, report)
	s.validatePendingJobs(ctx, report)
	s.resetStuckApplications(ctx, report)

	span.SetAttributes(
		attribute.Int("cleanup.cleaned", report.Cleaned),
		attribute.Int("cleanup.validated", report.Validated),
		attribute.Int("cleanup.errors", len(report.Errors)),
	)

	s.log.Info().
		Int("cleaned", report.Cleaned).
		Int("validated", report.Validated).
		Int("errors", len(report.Errors)).
		Msg("队列清扫完成")
	return report
}

// removeFailedJobs 移除所有failed任务：重试已耗尽，保留没有价值
func (s *Service) removeFailedJobs(ctx context.Context, report *CleanupReport) {
	ids, err := s.queue.FailedJobIDs(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("list failed jobs: %v", err))
		return
	}
	for _, id := range ids {
		if err := s.queue.RemoveJob(ctx, id); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("remove failed job %s: %v", id, err))
			continue
		}
		report.Cleaned++
	}
}

// purgeExpiredCompleted 裁剪超过保留时长的completed任务，控制历史规模
func (s *Service) purgeExpiredCompleted(ctx context.Context, report *CleanupReport) {
	n, err := s.queue.CleanCompleted(ctx, s.opts.CompletedRetention)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("clean completed jobs: %v", err))
	}
	report.Cleaned += int(n)
}

// validatePendingJobs 校验waiting/delayed任务的引用完整性。
// 载荷损坏、申请/候选人/岗位不存在或申请已分析完成的任务当场移除（fail-fast），
// 不留给worker日后失败。
func (s *Service) validatePendingJobs(ctx context.Context, report *CleanupReport) {
	for _, state := range []queue.JobState{queue.StateWaiting, queue.StateDelayed} {
		ids, err := s.queue.JobIDs(ctx, state)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("list %s jobs: %v", state, err))
			continue
		}
		for _, id := range ids {
			s.validateJob(ctx, id, report)
		}
	}
}

func (s *Service) validateJob(ctx context.Context, jobID string, report *CleanupReport) {
	job, err := s.queue.GetJob(ctx, jobID)
	if errors.Is(err, queue.ErrJobNotFound) {
		return // 刚被worker取走或已被移除
	}
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("load job %s: %v", jobID, err))
		return
	}

	var payload storage.AnalysisJobPayload
	if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil || payload.ApplicationID == "" {
		s.removeOrphan(ctx, jobID, "载荷损坏", report)
		return
	}

	app, err := s.store.GetApplicationByID(ctx, payload.ApplicationID)
	if errors.Is(err, storage.ErrNotFound) {
		s.removeOrphan(ctx, jobID, "申请不存在", report)
		return
	}
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("load application %s: %v", payload.ApplicationID, err))
		return
	}
	if app.Status == constants.AppStatusAnalyzed {
		s.removeOrphan(ctx, jobID, "申请已分析", report)
		return
	}

	// 申请引用的候选人和岗位也必须存在，任一缺失则任务注定失败，当场移除
	if _, err := s.store.GetCandidateByID(ctx, app.CandidateID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.removeOrphan(ctx, jobID, "候选人不存在", report)
		} else {
			report.Errors = append(report.Errors, fmt.Sprintf("load candidate %s: %v", app.CandidateID, err))
		}
		return
	}
	if _, err := s.store.GetJobByID(ctx, app.JobID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.removeOrphan(ctx, jobID, "岗位不存在", report)
		} else {
			report.Errors = append(report.Errors, fmt.Sprintf("load position %s: %v", app.JobID, err))
		}
		return
	}

	report.Validated++
}

func (s *Service) removeOrphan(ctx context.Context, jobID, reason string, report *CleanupReport) {
	if err := s.queue.RemoveJob(ctx, jobID); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("remove orphan job %s: %v", jobID, err))
		return
	}
	s.log.Warn().Str("job_id", jobID).Str("reason", reason).Msg("移除孤儿任务")
	report.Cleaned++
}

// resetStuckApplications 把卡在ANALYZING超过阈值的申请重置回PENDING。
// 这是正常流水线之外唯一强制改写申请状态的地方。
func (s *Service) resetStuckApplications(ctx context.Context, report *CleanupReport) {
	n, err := s.store.ResetStuckApplications(ctx, s.opts.StuckThreshold)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("reset stuck applications: %v", err))
		return
	}
	if n > 0 {
		s.log.Warn().Int64("count", n).Msg("重置卡死的ANALYZING申请")
	}
	report.Validated += int(n)
}

// GetStats 汇总队列计数与申请状态分布
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	counts, err := s.queue.GetCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询队列计数失败: %w", err)
	}
	apps, err := s.store.CountApplicationsByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("统计申请状态失败: %w", err)
	}
	return &Stats{Queue: counts, Applications: apps}, nil
}

// Pause 暂停队列取活
func (s *Service) Pause(ctx context.Context) error {
	return s.queue.Pause(ctx)
}

// Resume 恢复队列取活
func (s *Service) Resume(ctx context.Context) error {
	return s.queue.Resume(ctx)
}

// RunSweepLoop 阻塞运行周期巡检，先立即清扫一次（启动自检），
// 之后按SweepInterval执行；配有locker时用分布式锁做实例互斥。
// ctx取消后返回。
func (s *Service) RunSweepLoop(ctx context.Context) {
	s.sweepOnce(ctx)

	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Service) sweepOnce(ctx context.Context) {
	if s.locker != nil {
		lockValue, err := s.locker.AcquireLock(ctx, sweepLockKey, s.opts.SweepInterval)
		if err != nil {
			s.log.Error().Err(err).Msg("获取巡检锁失败")
			return
		}
		if lockValue == "" {
			s.log.Debug().Msg("巡检锁被其他实例持有，跳过本轮")
			return
		}
		defer func() {
			if _, err := s.locker.ReleaseLock(ctx, sweepLockKey, lockValue); err != nil {
				s.log.Error().Err(err).Msg("释放巡检锁失败")
			}
		}()
	}

	s.CleanupProblematicJobs(ctx)
}
