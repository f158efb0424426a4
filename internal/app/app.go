package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"ScholarshipScanner/internal/config"
	"ScholarshipScanner/internal/infrastructure/document"
	"ScholarshipScanner/internal/infrastructure/llm"
	"ScholarshipScanner/internal/infrastructure/parser"
	"ScholarshipScanner/internal/infrastructure/scheduler"
	"ScholarshipScanner/internal/infrastructure/storage"
	"ScholarshipScanner/internal/infrastructure/telegram"
	"ScholarshipScanner/internal/logging"
	"ScholarshipScanner/internal/ports"
	"ScholarshipScanner/internal/reconcile"
	"ScholarshipScanner/internal/scanner"
	"ScholarshipScanner/internal/usecase"
)

const telegramAudience = "telegram"

type store interface {
	ports.CanonicalStore
	ports.NotificationLog
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	db        *sqlx.DB
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	logger    *slog.Logger
}

// New builds the application. Without a DSN, or in dry-run mode, the catalog lives in memory.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	st, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	registry := scanner.NewRegistry()
	registry.Register(parser.NewUenfScanner(nil, baseLogger.With("component", "scanner.uenf")))
	source := parser.NewStrategySource(registry, cfg.Source.Sites, baseLogger.With("component", "source"))

	keys := llm.NewKeyRing(cfg.LLM.APIKeys, cfg.LLM.UsageThreshold, baseLogger.With("component", "llm.keys"))
	if len(cfg.LLM.APIKeys) == 0 {
		baseLogger.Warn("no llm api keys configured; extraction will fail")
	}
	chat := llm.NewChatClient(cfg.LLM, keys, baseLogger.With("component", "llm.chat"))

	th := cfg.Matching.Thresholds
	filter := cfg.Matching.TermFilter()

	var reconciler usecase.Reconciler
	switch cfg.Reconcile.Mode {
	case config.ModeRow:
		reconciler = reconcile.NewRowReconciler(st, th, filter, baseLogger.With("component", "reconcile.row"))
	default:
		reconciler = reconcile.NewEngine(st, th, filter, baseLogger.With("component", "reconcile.batch"))
	}

	var notifier ports.Notifier
	if tg := cfg.Notifications.Telegram; tg.BotToken != "" && tg.ChatID != "" && !cfg.DryRun {
		notifier = telegram.NewNotifier(tg, nil)
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:        source,
		Documents:     document.NewFetcher(nil, cfg.Source.UserAgent, baseLogger.With("component", "document")),
		Extractor:     llm.NewExtractor(chat, cfg.LLM, baseLogger.With("component", "llm.extractor")),
		Store:         st,
		Merger:        reconcile.NewMerger(st, th, filter, baseLogger.With("component", "reconcile.merge")),
		Reconciler:    reconciler,
		Notifier:      notifier,
		Notifications: st,
		Audience:      telegramAudience,
		Pause:         cfg.Source.Pause,
		Logger:        baseLogger.With("component", "pipeline"),
	})

	driver := scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location(), true)
	a.scheduler = usecase.NewScheduler(driver, a.pipeline, baseLogger.With("component", "scheduler"))
	return a, nil
}

func (a *Application) openStore(ctx context.Context) (store, error) {
	if a.cfg.DryRun || a.cfg.Database.DSN == "" {
		a.logger.Info("using in-memory catalog", "dry_run", a.cfg.DryRun)
		return storage.NewMemoryRepository(), nil
	}

	db, err := storage.Open(ctx, a.cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	repo := storage.NewPostgresRepository(db, a.cfg.Database.Schema)
	if err := repo.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	a.db = db
	return repo, nil
}

// Run performs a single pipeline execution.
func (a *Application) Run(ctx context.Context) error {
	now := time.Now().In(a.cfg.Scheduler.Location())
	_, err := a.pipeline.Run(ctx, now)
	return err
}

// Serve runs the pipeline on the configured cron schedule until ctx is done.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started", "cron", a.cfg.Scheduler.CronExpression, "timezone", a.cfg.Scheduler.Timezone)

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	return a.scheduler.Stop(stopCtx)
}

// Close releases the database connection, if any.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
