package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"recruit-agent-go/internal/config"
	"recruit-agent-go/internal/constants"
	"recruit-agent-go/internal/logger"
	"recruit-agent-go/internal/maintenance"
	"recruit-agent-go/internal/queue"
	"recruit-agent-go/internal/storage"

	"github.com/spf13/pflag"
)

// 队列体检工具：打印队列与申请状态，按需执行一次完整清扫。
// 运行中的服务自带周期巡检，这个命令用于人工介入和排障。
func main() {
	var (
		configPath string
		statsOnly  bool
		retention  time.Duration
		stuckAfter time.Duration
		timeout    time.Duration
	)
	pflag.StringVarP(&configPath, "config", "c", "", "Path to config file")
	pflag.BoolVar(&statsOnly, "stats-only", false, "仅打印状态快照，不执行清扫")
	pflag.DurationVar(&retention, "completed-retention", constants.CompletedRetention, "已完成任务保留时长")
	pflag.DurationVar(&stuckAfter, "stuck-threshold", constants.StuckAnalyzingDuration, "ANALYZING卡死判定阈值")
	pflag.DurationVar(&timeout, "timeout", 2*time.Minute, "整体执行超时")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     "pretty",
		TimeFormat: cfg.Logger.TimeFormat,
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()

	if storageManager.MySQL == nil || storageManager.Redis == nil {
		log.Fatalf("队列体检需要MySQL与Redis, 请检查配置")
	}

	q := queue.New(constants.MatchQueueName, storageManager.Redis.Client, queue.DefaultOptions())
	if err := q.Ready(ctx); err != nil {
		log.Fatalf("队列不可用: %v", err)
	}

	opts := maintenance.DefaultOptions()
	opts.CompletedRetention = retention
	opts.StuckThreshold = stuckAfter

	// 一次性人工执行，不走分布式锁
	svc := maintenance.NewService(q, storageManager.MySQL, nil, opts)

	stats, err := svc.GetStats(ctx)
	if err != nil {
		log.Fatalf("读取状态快照失败: %v", err)
	}
	printJSON("当前状态", stats)

	if statsOnly {
		return
	}

	report := svc.CleanupProblematicJobs(ctx)
	printJSON("清扫报告", report)

	after, err := svc.GetStats(ctx)
	if err != nil {
		log.Fatalf("读取清扫后状态失败: %v", err)
	}
	printJSON("清扫后状态", after)

	if len(report.Errors) > 0 {
		log.Printf("清扫完成, 但有 %d 项错误, 详见报告", len(report.Errors))
		return
	}
	log.Printf("清扫完成: 清除 %d 项, 校验/重置 %d 项", report.Cleaned, report.Validated)
}

func printJSON(title string, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Printf("%s: 序列化失败: %v", title, err)
		return
	}
	fmt.Printf("=== %s ===\n%s\n", title, data)
}
