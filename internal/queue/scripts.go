package queue

import "github.com/redis/go-redis/v9"

// promoteScript 把到期的delayed任务原子搬回waiting
// KEYS[1]=delayed ZSET, KEYS[2]=waiting LIST
// ARGV[1]=当前毫秒时间戳, ARGV[2]=单次上限
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], 0, ARGV[1], 'LIMIT', 0, ARGV[2])
for i, id in ipairs(due) do
    redis.call('ZREM', KEYS[1], id)
    redis.call('LPUSH', KEYS[2], id)
end
return #due
`)

// fetchScript 原子地取出一个等待任务：waiting搬到active并设置租约锁
// 暂停标记存在时不取任务
// KEYS[1]=waiting LIST, KEYS[2]=active LIST, KEYS[3]=paused STRING
// ARGV[1]=锁key前缀, ARGV[2]=锁持有者标识, ARGV[3]=锁时长毫秒
var fetchScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[3]) == 1 then
    return false
end
local id = redis.call('RPOP', KEYS[1])
if not id then
    return false
end
redis.call('LPUSH', KEYS[2], id)
redis.call('SET', ARGV[1] .. id, ARGV[2], 'PX', ARGV[3])
return id
`)

// retryScript 处理失败后把任务从active移入delayed等待退避
// KEYS[1]=active LIST, KEYS[2]=delayed ZSET, KEYS[3]=job HASH, KEYS[4]=lock
// ARGV[1]=任务ID, ARGV[2]=就绪毫秒时间戳, ARGV[3]=失败原因
var retryScript = redis.NewScript(`
redis.call('LREM', KEYS[1], 1, ARGV[1])
redis.call('DEL', KEYS[4])
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[1])
redis.call('HSET', KEYS[3], 'state', 'delayed', 'failed_reason', ARGV[3])
return 1
`)

// finishScript 任务终态迁移：active移入completed或failed集合
// KEYS[1]=active LIST, KEYS[2]=目标 ZSET, KEYS[3]=job HASH, KEYS[4]=lock
// ARGV[1]=任务ID, ARGV[2]=完成毫秒时间戳, ARGV[3]=终态, ARGV[4]=失败原因
var finishScript = redis.NewScript(`
redis.call('LREM', KEYS[1], 1, ARGV[1])
redis.call('DEL', KEYS[4])
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[1])
redis.call('HSET', KEYS[3], 'state', ARGV[3], 'finished_at', ARGV[2], 'failed_reason', ARGV[4])
return 1
`)
