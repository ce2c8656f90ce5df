package queue

import (
	"math/rand"
	"strconv"
	"time"
)

// JobState 任务状态
type JobState string

const (
	StateWaiting   JobState = "waiting"   // 等待被worker取走
	StateDelayed   JobState = "delayed"   // 等退避时间到后回到waiting
	StateActive    JobState = "active"    // 正在被worker处理
	StateCompleted JobState = "completed" // 处理成功
	StateFailed    JobState = "failed"    // 尝试耗尽或僵死超限
)

// Job 队列任务
// 字段与Redis HASH一一对应，payload为业务JSON
type Job struct {
	ID           string   `json:"id"`
	Payload      string   `json:"payload"`
	State        JobState `json:"state"`
	Attempts     int      `json:"attempts"`      // 已尝试次数
	MaxAttempts  int      `json:"max_attempts"`  // 尝试上限
	StalledCount int      `json:"stalled_count"` // 被判定僵死的次数
	CreatedAt    int64    `json:"created_at"`    // 毫秒时间戳
	ProcessedAt  int64    `json:"processed_at"`  // 最近一次开始处理
	FinishedAt   int64    `json:"finished_at"`   // 完成或失败时刻
	FailedReason string   `json:"failed_reason"`
}

// hashFields 把任务序列化为HASH字段
func (j *Job) hashFields() map[string]interface{} {
	return map[string]interface{}{
		"id":            j.ID,
		"payload":       j.Payload,
		"state":         string(j.State),
		"attempts":      j.Attempts,
		"max_attempts":  j.MaxAttempts,
		"stalled_count": j.StalledCount,
		"created_at":    j.CreatedAt,
		"processed_at":  j.ProcessedAt,
		"finished_at":   j.FinishedAt,
		"failed_reason": j.FailedReason,
	}
}

// jobFromHash 从HASH字段还原任务
func jobFromHash(fields map[string]string) *Job {
	j := &Job{
		ID:           fields["id"],
		Payload:      fields["payload"],
		State:        JobState(fields["state"]),
		FailedReason: fields["failed_reason"],
	}
	j.Attempts, _ = strconv.Atoi(fields["attempts"])
	j.MaxAttempts, _ = strconv.Atoi(fields["max_attempts"])
	j.StalledCount, _ = strconv.Atoi(fields["stalled_count"])
	j.CreatedAt, _ = strconv.ParseInt(fields["created_at"], 10, 64)
	j.ProcessedAt, _ = strconv.ParseInt(fields["processed_at"], 10, 64)
	j.FinishedAt, _ = strconv.ParseInt(fields["finished_at"], 10, 64)
	return j
}

// ExponentialBackoff 计算第attempt次失败后的退避时长
// base * 2^(attempt-1)，叠加最多10%的抖动，整体不超过maxBackoff
func ExponentialBackoff(attempt int, base, maxBackoff time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	backoff := base * time.Duration(1<<uint(attempt-1))
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	// 10%抖动，避免同批失败任务齐步重试
	jitter := time.Duration(rand.Int63n(int64(backoff)/10 + 1))
	backoff += jitter
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff
}
