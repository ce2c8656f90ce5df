package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"recruit-agent-go/internal/constants"
	"recruit-agent-go/internal/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrJobNotFound 任务不存在
var ErrJobNotFound = errors.New("job not found")

// stalledBeyondLimitReason 僵死超限的失败原因
const stalledBeyondLimitReason = "job stalled more than allowable limit"

// Handler 任务处理函数
// 返回error触发重试，尝试耗尽后任务进入failed
type Handler func(ctx context.Context, job *Job) error

// Options 队列行为参数
type Options struct {
	Concurrency       int           // worker并发数
	LimiterMax        int           // 限流窗口内最大任务数
	LimiterWindow     time.Duration // 限流窗口
	MaxAttempts       int           // 任务最大尝试次数
	BackoffBase       time.Duration // 重试退避基数（指数增长）
	MaxBackoff        time.Duration // 退避上限
	JobTimeout        time.Duration // 单任务处理超时
	LockDuration      time.Duration // 任务租约时长
	LockRenewInterval time.Duration // 处理中任务的租约续期间隔
	StallInterval     time.Duration // 僵死巡检间隔
	MaxStalledCount   int           // 僵死重投上限，超过即失败
	FetchInterval     time.Duration // 队列为空时的轮询间隔
}

// DefaultOptions 返回Bull风格默认参数
func DefaultOptions() Options {
	return Options{
		Concurrency:       5,
		LimiterMax:        5,
		LimiterWindow:     5 * time.Second,
		MaxAttempts:       3,
		BackoffBase:       constants.DefaultBackoffBase,
		MaxBackoff:        constants.DefaultMaxBackoff,
		JobTimeout:        constants.DefaultJobTimeout,
		LockDuration:      constants.DefaultLockDuration,
		LockRenewInterval: constants.DefaultLockRenewInterval,
		StallInterval:     constants.DefaultStallInterval,
		MaxStalledCount:   2,
		FetchInterval:     time.Second,
	}
}

// queueKeys 队列在Redis中的各个key
type queueKeys struct {
	waiting    string
	delayed    string
	active     string
	completed  string
	failed     string
	paused     string
	jobPrefix  string // job HASH前缀
	lockPrefix string // 租约锁前缀
}

func newQueueKeys(name string) queueKeys {
	return queueKeys{
		waiting:    fmt.Sprintf(constants.KeyQueueWaiting, name),
		delayed:    fmt.Sprintf(constants.KeyQueueDelayed, name),
		active:     fmt.Sprintf(constants.KeyQueueActive, name),
		completed:  fmt.Sprintf(constants.KeyQueueCompleted, name),
		failed:     fmt.Sprintf(constants.KeyQueueFailed, name),
		paused:     fmt.Sprintf(constants.KeyQueuePaused, name),
		jobPrefix:  fmt.Sprintf(constants.KeyQueueJob, name, ""),
		lockPrefix: fmt.Sprintf(constants.KeyQueueJobLock, name, ""),
	}
}

func (k queueKeys) job(id string) string {
	return k.jobPrefix + id
}

func (k queueKeys) lock(id string) string {
	return k.lockPrefix + id
}

// Queue Redis持久化任务队列
// 语义对齐Bull：waiting/delayed/active/completed/failed五态，
// 租约锁+巡检恢复僵死任务，指数退避重试，事件流仅用于观测
type Queue struct {
	name    string
	client  *redis.Client
	opts    Options
	keys    queueKeys
	limiter *WindowLimiter
	events  chan Event
	log     zerolog.Logger
	tracer  trace.Tracer

	workerID string // 本进程的锁持有者标识

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New 创建队列实例
func New(name string, client *redis.Client, opts Options) *Queue {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultOptions().Concurrency
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultOptions().MaxAttempts
	}
	if opts.FetchInterval <= 0 {
		opts.FetchInterval = time.Second
	}

	return &Queue{
		name:     name,
		client:   client,
		opts:     opts,
		keys:     newQueueKeys(name),
		limiter:  NewWindowLimiter(opts.LimiterMax, opts.LimiterWindow),
		events:   make(chan Event, 256),
		log:      logger.Component("queue").With().Str("queue", name).Logger(),
		tracer:   otel.Tracer("recruit-agent-go/queue"),
		workerID: uuid.NewString(),
		stopCh:   make(chan struct{}),
	}
}

// Name 返回队列名
func (q *Queue) Name() string {
	return q.name
}

// Ready 启动前的就绪检查，Redis不可达视为致命
func (q *Queue) Ready(ctx context.Context) error {
	if err := q.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("队列 %s 就绪检查失败: %w", q.name, err)
	}
	return nil
}

// Enqueue 创建任务并放入等待队列
func (q *Queue) Enqueue(ctx context.Context, payload []byte) (*Job, error) {
	ctx, span := q.tracer.Start(ctx, "queue.Enqueue",
		trace.WithAttributes(attribute.String("queue.name", q.name)))
	defer span.End()

	job := &Job{
		ID:          uuid.NewString(),
		Payload:     string(payload),
		State:       StateWaiting,
		MaxAttempts: q.opts.MaxAttempts,
		CreatedAt:   time.Now().UnixMilli(),
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.keys.job(job.ID), job.hashFields())
	pipe.LPush(ctx, q.keys.waiting, job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("任务入队失败: %w", err)
	}

	span.SetAttributes(attribute.String("queue.job_id", job.ID))
	q.emit(Event{Type: EventWaiting, JobID: job.ID})
	q.log.Debug().Str("job_id", job.ID).Msg("任务已入队")
	return job, nil
}

// Process 启动worker池、延迟提升循环与僵死巡检
func (q *Queue) Process(handler Handler) {
	for i := 0; i < q.opts.Concurrency; i++ {
		q.wg.Add(1)
		go q.workerLoop(handler)
	}

	q.wg.Add(1)
	go q.promoteLoop()

	q.wg.Add(1)
	go q.stallLoop()

	q.log.Info().
		Int("concurrency", q.opts.Concurrency).
		Int("limiter_max", q.opts.LimiterMax).
		Dur("limiter_window", q.opts.LimiterWindow).
		Msg("队列worker池已启动")
}

// Close 停止所有后台协程并等待在途任务收尾
func (q *Queue) Close() {
	q.stopOnce.Do(func() {
		close(q.stopCh)
	})
	q.wg.Wait()
	q.log.Info().Msg("队列已关闭")
}

// workerLoop 单个worker的取活循环
func (q *Queue) workerLoop(handler Handler) {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopCh:
			return
		default:
		}

		// 限流窗口：超出配额时阻塞等待
		waitCtx, cancel := context.WithTimeout(context.Background(), q.opts.FetchInterval)
		err := q.limiter.Wait(waitCtx)
		cancel()
		if err != nil {
			continue
		}

		job, err := q.fetchJob(context.Background())
		if err != nil {
			q.emit(Event{Type: EventError, Err: err})
			q.log.Error().Err(err).Msg("取任务失败")
			q.sleep(q.opts.FetchInterval)
			continue
		}
		if job == nil {
			// 队列空或已暂停
			q.sleep(q.opts.FetchInterval)
			continue
		}

		q.processJob(job, handler)
	}
}

// sleep 可被停止信号打断的休眠
func (q *Queue) sleep(d time.Duration) {
	select {
	case <-q.stopCh:
	case <-time.After(d):
	}
}

// fetchJob 原子取出一个等待任务，无任务返回nil
func (q *Queue) fetchJob(ctx context.Context) (*Job, error) {
	res, err := fetchScript.Run(ctx, q.client,
		[]string{q.keys.waiting, q.keys.active, q.keys.paused},
		q.keys.lockPrefix, q.workerID, q.opts.LockDuration.Milliseconds(),
	).Result()
	if err == redis.Nil || res == nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	jobID, ok := res.(string)
	if !ok || jobID == "" {
		return nil, nil
	}

	fields, err := q.client.HGetAll(ctx, q.keys.job(jobID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		// 任务HASH已丢失，从active中清掉孤儿ID
		q.client.LRem(ctx, q.keys.active, 1, jobID)
		q.client.Del(ctx, q.keys.lock(jobID))
		return nil, nil
	}

	return jobFromHash(fields), nil
}

// processJob 执行一个任务：计数、租约续期、超时控制、结果迁移
func (q *Queue) processJob(job *Job, handler Handler) {
	ctx, span := q.tracer.Start(context.Background(), "queue.ProcessJob",
		trace.WithAttributes(
			attribute.String("queue.name", q.name),
			attribute.String("queue.job_id", job.ID),
			attribute.Int("queue.attempt", job.Attempts+1),
		))
	defer span.End()

	job.Attempts++
	job.State = StateActive
	job.ProcessedAt = time.Now().UnixMilli()
	q.client.HSet(ctx, q.keys.job(job.ID), map[string]interface{}{
		"state":        string(StateActive),
		"attempts":     job.Attempts,
		"processed_at": job.ProcessedAt,
	})
	q.emit(Event{Type: EventActive, JobID: job.ID})

	// 处理期间持续续期租约，worker崩溃后锁过期、巡检接管
	renewStop := make(chan struct{})
	go q.renewLock(job.ID, renewStop)

	jobCtx, cancel := context.WithTimeout(ctx, q.opts.JobTimeout)
	err := handler(jobCtx, job)
	cancel()
	close(renewStop)

	if err == nil {
		q.finishJob(ctx, job, StateCompleted, "")
		q.emit(Event{Type: EventCompleted, JobID: job.ID})
		q.log.Debug().Str("job_id", job.ID).Int("attempts", job.Attempts).Msg("任务处理成功")
		return
	}

	if job.Attempts < job.MaxAttempts {
		// 还有剩余尝试，按指数退避转入delayed
		delay := ExponentialBackoff(job.Attempts, q.opts.BackoffBase, q.opts.MaxBackoff)
		readyAt := time.Now().Add(delay).UnixMilli()
		_, scriptErr := retryScript.Run(ctx, q.client,
			[]string{q.keys.active, q.keys.delayed, q.keys.job(job.ID), q.keys.lock(job.ID)},
			job.ID, readyAt, err.Error(),
		).Result()
		if scriptErr != nil {
			q.emit(Event{Type: EventError, JobID: job.ID, Err: scriptErr})
			q.log.Error().Err(scriptErr).Str("job_id", job.ID).Msg("任务转入延迟重试失败")
			return
		}
		q.log.Warn().Err(err).
			Str("job_id", job.ID).
			Int("attempt", job.Attempts).
			Dur("backoff", delay).
			Msg("任务处理失败，等待重试")
		return
	}

	// 尝试耗尽，进入failed
	q.finishJob(ctx, job, StateFailed, err.Error())
	q.emit(Event{Type: EventFailed, JobID: job.ID, Err: err})
	q.log.Error().Err(err).
		Str("job_id", job.ID).
		Int("attempts", job.Attempts).
		Msg("任务尝试耗尽，标记为失败")
}

// finishJob 任务进入终态
func (q *Queue) finishJob(ctx context.Context, job *Job, state JobState, reason string) {
	target := q.keys.completed
	if state == StateFailed {
		target = q.keys.failed
	}
	now := time.Now().UnixMilli()
	_, err := finishScript.Run(ctx, q.client,
		[]string{q.keys.active, target, q.keys.job(job.ID), q.keys.lock(job.ID)},
		job.ID, now, string(state), reason,
	).Result()
	if err != nil {
		q.emit(Event{Type: EventError, JobID: job.ID, Err: err})
		q.log.Error().Err(err).Str("job_id", job.ID).Msg("任务终态迁移失败")
	}
}

// renewLock 处理中任务的租约续期协程
func (q *Queue) renewLock(jobID string, stop <-chan struct{}) {
	ticker := time.NewTicker(q.opts.LockRenewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ok, err := q.client.PExpire(context.Background(),
				q.keys.lock(jobID), q.opts.LockDuration).Result()
			if err != nil {
				q.log.Warn().Err(err).Str("job_id", jobID).Msg("租约续期失败")
			} else if !ok {
				// 锁已不存在：任务可能已被巡检判定僵死并重投
				q.log.Warn().Str("job_id", jobID).Msg("租约已丢失，停止续期")
				return
			}
		}
	}
}

// promoteLoop 周期性把到期的delayed任务提升回waiting
func (q *Queue) promoteLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopCh:
			return
		case <-ticker.C:
			promoted, err := q.promoteDueJobs(context.Background(), time.Now().UnixMilli())
			if err != nil {
				q.emit(Event{Type: EventError, Err: err})
				q.log.Error().Err(err).Msg("延迟任务提升失败")
				continue
			}
			if promoted > 0 {
				q.log.Debug().Int64("count", promoted).Msg("延迟任务已回到等待队列")
			}
		}
	}
}

// promoteDueJobs 把截至now已到期的delayed任务搬回waiting，单次最多100个
func (q *Queue) promoteDueJobs(ctx context.Context, now int64) (int64, error) {
	return promoteScript.Run(ctx, q.client,
		[]string{q.keys.delayed, q.keys.waiting},
		now, 100,
	).Int64()
}

// stallLoop 僵死巡检：active中锁已丢失的任务按僵死处理
func (q *Queue) stallLoop() {
	defer q.wg.Done()

	interval := q.opts.StallInterval
	if interval <= 0 {
		interval = constants.DefaultStallInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopCh:
			return
		case <-ticker.C:
			if err := q.recoverStalled(context.Background()); err != nil {
				q.emit(Event{Type: EventError, Err: err})
				q.log.Error().Err(err).Msg("僵死巡检失败")
			}
		}
	}
}

// recoverStalled 检查active列表，恢复或淘汰僵死任务
// 僵死次数未超上限的重投waiting，超限的直接判失败
func (q *Queue) recoverStalled(ctx context.Context) error {
	ids, err := q.client.LRange(ctx, q.keys.active, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("读取active列表失败: %w", err)
	}

	for _, id := range ids {
		exists, err := q.client.Exists(ctx, q.keys.lock(id)).Result()
		if err != nil {
			return err
		}
		if exists == 1 {
			continue // 租约仍在，任务健康
		}

		stalledCount, err := q.client.HIncrBy(ctx, q.keys.job(id), "stalled_count", 1).Result()
		if err != nil {
			return err
		}

		q.emit(Event{Type: EventStalled, JobID: id})

		if int(stalledCount) > q.opts.MaxStalledCount {
			now := time.Now().UnixMilli()
			_, err = finishScript.Run(ctx, q.client,
				[]string{q.keys.active, q.keys.failed, q.keys.job(id), q.keys.lock(id)},
				id, now, string(StateFailed), stalledBeyondLimitReason,
			).Result()
			if err != nil {
				return err
			}
			q.emit(Event{Type: EventFailed, JobID: id, Err: errors.New(stalledBeyondLimitReason)})
			q.log.Error().Str("job_id", id).Int64("stalled_count", stalledCount).Msg("任务僵死超限，标记为失败")
			continue
		}

		pipe := q.client.TxPipeline()
		pipe.LRem(ctx, q.keys.active, 1, id)
		pipe.LPush(ctx, q.keys.waiting, id)
		pipe.HSet(ctx, q.keys.job(id), "state", string(StateWaiting))
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		q.log.Warn().Str("job_id", id).Int64("stalled_count", stalledCount).Msg("僵死任务已重投等待队列")
	}

	return nil
}
