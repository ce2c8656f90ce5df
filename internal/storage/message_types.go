package storage

import "time"

// EventTypeApplicationSubmitted 申请提交事件类型
const EventTypeApplicationSubmitted = "application.submitted"

// ApplicationSubmittedMessage 申请提交事件消息
// 由发件箱中继发布到RabbitMQ，消费端据此入队分析任务
type ApplicationSubmittedMessage struct {
	ApplicationID string    `json:"application_id"` // 申请ID
	CandidateID   string    `json:"candidate_id"`   // 候选人ID
	JobID         string    `json:"job_id"`         // 岗位ID
	SubmittedAt   time.Time `json:"submitted_at"`   // 提交时间戳
}

// AnalysisJobPayload 队列任务载荷
// 入队时序列化进任务HASH，worker取出后反序列化
type AnalysisJobPayload struct {
	ApplicationID string `json:"application_id"`
	CandidateID   string `json:"candidate_id"`
	JobID         string `json:"job_id"`
}
