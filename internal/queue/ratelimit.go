package queue

import (
	"context"
	"sync"
	"time"
)

// WindowLimiter 令牌桶限流器，约束窗口内启动的任务数
// 例如max=5、window=5s时，稳态下每5秒最多放行5个任务
type WindowLimiter struct {
	rate           float64    // 每秒生成的令牌数
	capacity       float64    // 桶的容量
	tokens         float64    // 当前令牌数
	lastRefillTime time.Time  // 上次填充令牌的时间
	mutex          sync.Mutex // 互斥锁，保证并发安全
}

// NewWindowLimiter 创建窗口限流器
func NewWindowLimiter(max int, window time.Duration) *WindowLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Second
	}

	return &WindowLimiter{
		rate:           float64(max) / window.Seconds(),
		capacity:       float64(max),
		tokens:         float64(max), // 初始填满
		lastRefillTime: time.Now(),
	}
}

// refill 根据经过的时间填充令牌
func (l *WindowLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(l.lastRefillTime).Seconds()
	l.lastRefillTime = now

	newTokens := elapsed * l.rate

	if l.tokens+newTokens > l.capacity {
		l.tokens = l.capacity
	} else {
		l.tokens += newTokens
	}
}

// Allow 判断是否允许通过一个请求，消耗一个令牌
func (l *WindowLimiter) Allow() bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.refill()
	if l.tokens >= 1.0 {
		l.tokens -= 1.0
		return true
	}
	return false
}

// Wait 阻塞直到有令牌可用或上下文取消
func (l *WindowLimiter) Wait(ctx context.Context) error {
	for {
		l.mutex.Lock()
		l.refill()

		if l.tokens >= 1.0 {
			l.tokens -= 1.0
			l.mutex.Unlock()
			return nil
		}

		// 计算需要等待的时间
		waitTime := time.Duration((1.0 - l.tokens) / l.rate * float64(time.Second))
		l.mutex.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
			// 继续尝试获取令牌
		}
	}
}
