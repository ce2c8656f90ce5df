package constants

// Redis Key 前缀和格式常量
// 统一命名规范: recruit:{module}:{entity}(:{unique_id})
const (
	// AppPrefix 所有Redis Key的统一应用前缀
	AppPrefix = "recruit"

	// QueueModulePrefix 任务队列模块
	QueueModulePrefix = "queue"

	// KeyQueueWaiting 等待队列 (LIST, LPUSH进RPOP出)
	// 格式: recruit:queue:{queueName}:waiting
	KeyQueueWaiting = AppPrefix + ":" + QueueModulePrefix + ":%s:waiting"

	// KeyQueueDelayed 延迟队列 (ZSET, score为就绪时间毫秒)
	// 格式: recruit:queue:{queueName}:delayed
	KeyQueueDelayed = AppPrefix + ":" + QueueModulePrefix + ":%s:delayed"

	// KeyQueueActive 处理中队列 (LIST)
	// 格式: recruit:queue:{queueName}:active
	KeyQueueActive = AppPrefix + ":" + QueueModulePrefix + ":%s:active"

	// KeyQueueCompleted 已完成集合 (ZSET, score为完成时间毫秒)
	// 格式: recruit:queue:{queueName}:completed
	KeyQueueCompleted = AppPrefix + ":" + QueueModulePrefix + ":%s:completed"

	// KeyQueueFailed 失败集合 (ZSET, score为失败时间毫秒)
	// 格式: recruit:queue:{queueName}:failed
	KeyQueueFailed = AppPrefix + ":" + QueueModulePrefix + ":%s:failed"

	// KeyQueueJob 任务数据 (HASH: payload/state/attempts等字段)
	// 格式: recruit:queue:{queueName}:job:{jobID}
	KeyQueueJob = AppPrefix + ":" + QueueModulePrefix + ":%s:job:%s"

	// KeyQueueJobLock 任务租约锁 (STRING, SET NX PX)
	// 格式: recruit:queue:{queueName}:lock:{jobID}
	KeyQueueJobLock = AppPrefix + ":" + QueueModulePrefix + ":%s:lock:%s"

	// KeyQueuePaused 暂停标记 (STRING, 存在即暂停)
	// 格式: recruit:queue:{queueName}:paused
	KeyQueuePaused = AppPrefix + ":" + QueueModulePrefix + ":%s:paused"
)

// MatchQueueName 匹配分析队列名
const MatchQueueName = "match-analysis"
