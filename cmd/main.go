package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recruit-agent-go/internal/agent"
	"recruit-agent-go/internal/api/handler"
	"recruit-agent-go/internal/api/router"
	"recruit-agent-go/internal/application"
	"recruit-agent-go/internal/config"
	"recruit-agent-go/internal/constants"
	appCoreLogger "recruit-agent-go/internal/logger"
	"recruit-agent-go/internal/maintenance"
	"recruit-agent-go/internal/match"
	"recruit-agent-go/internal/outbox"
	"recruit-agent-go/internal/queue"
	"recruit-agent-go/internal/storage"
	"recruit-agent-go/internal/tracing"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
)

var (
	version = "1.0.0" //nolint:gochecknoglobals
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "Path to config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	initLogger(&cfg.Logger)
	glog.Infof("配置加载成功, 服务版本: %s", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 链路追踪（可选）
	var shutdownTracer func(context.Context) error
	if cfg.Tracing.Enabled {
		shutdownTracer, err = tracing.InitProvider(ctx, cfg.Tracing.ServiceName, cfg.Tracing.OTLPEndpoint, cfg.Tracing.SampleRatio)
		if err != nil {
			glog.Fatalf("初始化链路追踪失败: %v", err)
		}
		glog.Info("链路追踪初始化成功")
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	if storageManager.MySQL == nil || storageManager.Redis == nil || storageManager.RabbitMQ == nil {
		glog.Fatalf("MySQL、Redis与RabbitMQ均为必需组件，请检查配置")
	}

	// 申请事件拓扑：exchange + 消费队列 + 绑定
	if err := storageManager.RabbitMQ.SetupApplicationTopology(); err != nil {
		glog.Fatalf("初始化RabbitMQ拓扑失败: %v", err)
	}
	glog.Info("RabbitMQ拓扑初始化成功")

	// 事务发件箱中继：把申请提交事件从MySQL搬运到RabbitMQ
	messageRelay := outbox.NewMessageRelay(storageManager.MySQL.DB(), storageManager.RabbitMQ)
	messageRelay.Start()
	glog.Info("消息中继服务已启动")

	// Redis任务队列
	q := queue.New(constants.MatchQueueName, storageManager.Redis.Client, queueOptions(&cfg.Queue))
	if err := q.Ready(ctx); err != nil {
		glog.Fatalf("任务队列就绪检查失败: %v", err)
	}
	go observeQueueEvents(q)
	glog.Info("任务队列初始化成功")

	// LLM客户端与匹配分析引擎
	chatModel, err := agent.NewAliyunQwenChatModel(
		cfg.Aliyun.APIKey,
		cfg.Matcher.ModelName,
		cfg.Aliyun.APIURL,
		agent.GenerateOptions{
			Temperature: cfg.Matcher.Temperature,
			MaxTokens:   cfg.Matcher.MaxTokens,
		},
	)
	if err != nil {
		glog.Fatalf("初始化LLM客户端失败: %v", err)
	}
	engine := match.NewEngine(storageManager.MySQL, storageManager.MySQL, chatModel, engineOptions(&cfg.Matcher))
	glog.Info("匹配分析引擎初始化成功")

	// 申请提交服务与分析处理器
	appService := application.NewService(storageManager.MySQL, &cfg.RabbitMQ)
	processor := application.NewProcessor(storageManager.RabbitMQ, q, storageManager.MySQL, engine)

	if _, err := processor.StartConsuming(cfg.RabbitMQ.AnalysisQueue, cfg.RabbitMQ.PrefetchCount); err != nil {
		glog.Fatalf("启动申请事件消费者失败: %v", err)
	}
	glog.Info("申请事件消费者已启动")

	q.Process(processor.HandleJob)
	glog.Info("分析任务worker池已启动")

	// 队列自愈服务：启动自检 + 周期巡检
	maintService := maintenance.NewService(q, storageManager.MySQL, storageManager.Redis, maintenanceOptions(&cfg.Maintenance))
	go maintService.RunSweepLoop(ctx)
	glog.Info("队列自愈服务已启动")

	// HTTP服务
	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		tracer,
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))

	appHandler := handler.NewApplicationHandler(appService)
	queueHandler := handler.NewQueueHandler(maintService)
	router.RegisterRoutes(h, appHandler, queueHandler)
	glog.Info("HTTP路由注册成功")

	glog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)
	go func() {
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	// 先停外部入口，再停内部搬运
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("服务器关闭失败: %v", err)
	}

	cancel()
	q.Close()
	messageRelay.Stop()
	glog.Info("消息中继服务已停止")

	if shutdownTracer != nil {
		if err := shutdownTracer(shutdownCtx); err != nil {
			glog.Errorf("链路追踪关闭失败: %v", err)
		}
	}
	glog.Info("优雅退出完成")
}

// initLogger 初始化zerolog全局实例并桥接到Hertz的hlog
func initLogger(cfg *config.LoggerConfig) {
	var writers []io.Writer

	if cfg.Format == "pretty" {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: cfg.TimeFormat,
		})
	} else {
		writers = append(writers, os.Stderr)
	}

	if cfg.File != "" {
		fileWriter, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Fatalf("无法打开日志文件 %s: %v", cfg.File, err)
		}
		writers = append(writers, fileWriter)
	}

	multiWriter := zerolog.MultiLevelWriter(writers...)
	appCoreLogger.InitWithWriter(appCoreLogger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		TimeFormat:   cfg.TimeFormat,
		ReportCaller: cfg.ReportCaller,
	}, multiWriter)
	zlog.Logger = appCoreLogger.Logger

	glog.SetLogger(hertzadapter.From(appCoreLogger.Logger))
	if level, err := zerolog.ParseLevel(cfg.Level); err == nil && level <= zerolog.DebugLevel {
		glog.SetLevel(glog.LevelDebug)
	} else {
		glog.SetLevel(glog.LevelInfo)
	}
}

// observeQueueEvents 消费队列事件流，仅用于日志观测
func observeQueueEvents(q *queue.Queue) {
	eventLog := appCoreLogger.Component("queue-events")
	for ev := range q.Events() {
		switch ev.Type {
		case queue.EventFailed, queue.EventError:
			eventLog.Warn().Str("event", string(ev.Type)).Str("job_id", ev.JobID).AnErr("cause", ev.Err).Msg("队列事件")
		case queue.EventStalled:
			eventLog.Warn().Str("event", string(ev.Type)).Str("job_id", ev.JobID).Msg("检测到僵死任务")
		default:
			eventLog.Debug().Str("event", string(ev.Type)).Str("job_id", ev.JobID).Msg("队列事件")
		}
	}
}

func queueOptions(cfg *config.QueueConfig) queue.Options {
	opts := queue.DefaultOptions()
	if cfg.Concurrency > 0 {
		opts.Concurrency = cfg.Concurrency
	}
	if cfg.LimiterMax > 0 {
		opts.LimiterMax = cfg.LimiterMax
	}
	opts.LimiterWindow = config.GetDuration(cfg.LimiterDuration, opts.LimiterWindow)
	if cfg.MaxAttempts > 0 {
		opts.MaxAttempts = cfg.MaxAttempts
	}
	opts.BackoffBase = config.GetDuration(cfg.BackoffBase, opts.BackoffBase)
	opts.JobTimeout = config.GetDuration(cfg.JobTimeout, opts.JobTimeout)
	opts.LockDuration = config.GetDuration(cfg.LockDuration, opts.LockDuration)
	opts.LockRenewInterval = config.GetDuration(cfg.LockRenewInterval, opts.LockRenewInterval)
	opts.StallInterval = config.GetDuration(cfg.StallInterval, opts.StallInterval)
	if cfg.MaxStalledCount > 0 {
		opts.MaxStalledCount = cfg.MaxStalledCount
	}
	return opts
}

func engineOptions(cfg *config.MatcherConfig) match.EngineOptions {
	opts := match.DefaultEngineOptions()
	if cfg.MaxAttempts > 0 {
		opts.Retry.MaxAttempts = cfg.MaxAttempts
	}
	opts.Retry.BaseDelay = config.GetDuration(cfg.BackoffBase, opts.Retry.BaseDelay)
	opts.Retry.MaxDelay = config.GetDuration(cfg.MaxBackoff, opts.Retry.MaxDelay)
	opts.RequestTimeout = config.GetDuration(cfg.RequestTimeout, opts.RequestTimeout)
	return opts
}

func maintenanceOptions(cfg *config.MaintenanceConfig) maintenance.Options {
	opts := maintenance.DefaultOptions()
	opts.SweepInterval = config.GetDuration(cfg.SweepInterval, opts.SweepInterval)
	opts.CompletedRetention = config.GetDuration(cfg.CompletedRetention, opts.CompletedRetention)
	opts.StuckThreshold = config.GetDuration(cfg.StuckThreshold, opts.StuckThreshold)
	return opts
}
