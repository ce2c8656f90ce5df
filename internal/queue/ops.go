package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counts 各状态的任务数量
type Counts struct {
	Waiting   int64 `json:"waiting"`
	Delayed   int64 `json:"delayed"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Paused    bool  `json:"paused"`
}

// GetCounts 统计各状态任务数
func (q *Queue) GetCounts(ctx context.Context) (*Counts, error) {
	pipe := q.client.Pipeline()
	waiting := pipe.LLen(ctx, q.keys.waiting)
	delayed := pipe.ZCard(ctx, q.keys.delayed)
	active := pipe.LLen(ctx, q.keys.active)
	completed := pipe.ZCard(ctx, q.keys.completed)
	failed := pipe.ZCard(ctx, q.keys.failed)
	paused := pipe.Exists(ctx, q.keys.paused)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("统计队列计数失败: %w", err)
	}

	return &Counts{
		Waiting:   waiting.Val(),
		Delayed:   delayed.Val(),
		Active:    active.Val(),
		Completed: completed.Val(),
		Failed:    failed.Val(),
		Paused:    paused.Val() == 1,
	}, nil
}

// Pause 暂停取活，已在处理中的任务不受影响
func (q *Queue) Pause(ctx context.Context) error {
	return q.client.Set(ctx, q.keys.paused, "1", 0).Err()
}

// Resume 恢复取活
func (q *Queue) Resume(ctx context.Context) error {
	return q.client.Del(ctx, q.keys.paused).Err()
}

// IsPaused 查询暂停状态
func (q *Queue) IsPaused(ctx context.Context) (bool, error) {
	n, err := q.client.Exists(ctx, q.keys.paused).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetJob 读取单个任务
func (q *Queue) GetJob(ctx context.Context, jobID string) (*Job, error) {
	fields, err := q.client.HGetAll(ctx, q.keys.job(jobID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrJobNotFound
	}
	return jobFromHash(fields), nil
}

// JobIDs 按状态列出任务ID
func (q *Queue) JobIDs(ctx context.Context, state JobState) ([]string, error) {
	switch state {
	case StateWaiting:
		return q.client.LRange(ctx, q.keys.waiting, 0, -1).Result()
	case StateActive:
		return q.client.LRange(ctx, q.keys.active, 0, -1).Result()
	case StateDelayed:
		return q.client.ZRange(ctx, q.keys.delayed, 0, -1).Result()
	case StateCompleted:
		return q.client.ZRange(ctx, q.keys.completed, 0, -1).Result()
	case StateFailed:
		return q.client.ZRange(ctx, q.keys.failed, 0, -1).Result()
	default:
		return nil, fmt.Errorf("未知任务状态: %s", state)
	}
}

// Jobs 按状态列出任务详情，HASH缺失的ID被跳过
func (q *Queue) Jobs(ctx context.Context, states ...JobState) ([]*Job, error) {
	var jobs []*Job
	for _, state := range states {
		ids, err := q.JobIDs(ctx, state)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			job, err := q.GetJob(ctx, id)
			if err == ErrJobNotFound {
				continue
			}
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

// RemoveJob 从所有结构中移除任务
func (q *Queue) RemoveJob(ctx context.Context, jobID string) error {
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, q.keys.waiting, 0, jobID)
	pipe.LRem(ctx, q.keys.active, 0, jobID)
	pipe.ZRem(ctx, q.keys.delayed, jobID)
	pipe.ZRem(ctx, q.keys.completed, jobID)
	pipe.ZRem(ctx, q.keys.failed, jobID)
	pipe.Del(ctx, q.keys.job(jobID))
	pipe.Del(ctx, q.keys.lock(jobID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("移除任务 %s 失败: %w", jobID, err)
	}
	return nil
}

// CleanCompleted 清理完成时间早于cutoff的任务，返回清理数量
func (q *Queue) CleanCompleted(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UnixMilli()
	ids, err := q.client.ZRangeByScore(ctx, q.keys.completed, &redis.ZRangeBy{
		Min: "0",
		Max: fmt.Sprintf("%d", cutoff),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("查询过期完成任务失败: %w", err)
	}

	var cleaned int64
	for _, id := range ids {
		if err := q.RemoveJob(ctx, id); err != nil {
			return cleaned, err
		}
		cleaned++
	}
	return cleaned, nil
}

// FailedJobIDs 列出所有失败任务ID
func (q *Queue) FailedJobIDs(ctx context.Context) ([]string, error) {
	return q.client.ZRange(ctx, q.keys.failed, 0, -1).Result()
}
