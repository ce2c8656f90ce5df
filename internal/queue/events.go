package queue

// EventType 队列事件类型
type EventType string

const (
	EventWaiting   EventType = "waiting"   // 任务进入等待队列
	EventActive    EventType = "active"    // 任务开始处理
	EventCompleted EventType = "completed" // 任务处理成功
	EventFailed    EventType = "failed"    // 任务最终失败
	EventProgress  EventType = "progress"  // 任务上报进度
	EventStalled   EventType = "stalled"   // 任务被判定僵死
	EventError     EventType = "error"     // 队列内部错误
)

// Event 队列事件
type Event struct {
	Type     EventType
	JobID    string
	Err      error
	Progress int // 仅progress事件有效，0-100
}

// emit 非阻塞投递事件，订阅方消费不及时则丢弃
// 事件只用于观测，不承载业务语义
func (q *Queue) emit(e Event) {
	select {
	case q.events <- e:
	default:
	}
}

// Events 返回事件通道，调用方只读
func (q *Queue) Events() <-chan Event {
	return q.events
}
