package helper

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/ankalabs/pulse/dao"
	"github.com/ankalabs/pulse/internal/handler"
	"github.com/ankalabs/pulse/pkg/alert"
	"github.com/ankalabs/pulse/pkg/cleaner"
	"github.com/ankalabs/pulse/pkg/config"
	"github.com/ankalabs/pulse/pkg/monitor"
	"github.com/ankalabs/pulse/pkg/probe"
	"github.com/ankalabs/pulse/pkg/queue"
	"github.com/ankalabs/pulse/pkg/scheduler"
)

// Runtime holds every long-lived component the process runs.
type Runtime struct {
	Config    *config.Config
	Store     *dao.Store
	Queue     *queue.Queue
	Worker    *queue.Worker
	Scheduler *scheduler.Scheduler
	Cleaner   *cleaner.RetentionCleaner
	Register  *handler.RegisterConfig
}

// LoadDebugEnvironment loads .debug.env so local runs can point at a
// developer database and Redis without touching the config file.
func LoadDebugEnvironment() error {
	if gin.Mode() != gin.DebugMode {
		return nil
	}
	return godotenv.Load(".debug.env")
}

// InitializeRuntime wires the whole pipeline: database, Redis queue,
// probe worker, alert dispatcher, retention cleaner, and the handler
// register config. Nothing is started here.
func InitializeRuntime(cfg *config.Config) (*Runtime, error) {
	db, err := dao.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err = dao.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	store := dao.NewStore(db)

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)

	q := queue.New(rdb)
	sched := scheduler.New(q, store)

	dispatcher := alert.NewDispatcher(
		store,
		alert.NewSMTPSender(cfg),
		alert.NewTelegramClient(cfg.Telegram.BotToken),
	)
	pipeline := monitor.NewPipeline(probe.NewExecutor(), store, dispatcher, cfg.Region)

	worker := queue.NewWorker(rdb, pipeline.Handle, queue.WorkerOptions{
		Concurrency: cfg.Queue.Concurrency,
		MaxAttempts: cfg.Queue.MaxAttempts,
	})

	return &Runtime{
		Config:    cfg,
		Store:     store,
		Queue:     q,
		Worker:    worker,
		Scheduler: sched,
		Cleaner:   cleaner.NewRetentionCleaner(store),
		Register: &handler.RegisterConfig{
			Store:     store,
			Scheduler: sched,
			Config:    cfg,
		},
	}, nil
}
