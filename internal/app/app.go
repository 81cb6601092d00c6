package app

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/kevinnadar22/mongovault/internal/adapter/compressor"
	"github.com/kevinnadar22/mongovault/internal/adapter/notifier"
	"github.com/kevinnadar22/mongovault/internal/adapter/storage"
	"github.com/kevinnadar22/mongovault/internal/adapter/tool"
	"github.com/kevinnadar22/mongovault/internal/config"
	"github.com/kevinnadar22/mongovault/internal/domain"
	"github.com/kevinnadar22/mongovault/internal/infrastructure/logger"
	"github.com/kevinnadar22/mongovault/internal/infrastructure/scheduler"
	"github.com/kevinnadar22/mongovault/internal/usecase"
)

type App struct {
	config       *config.Config
	logger       *logger.Logger
	scheduler    *scheduler.Scheduler
	store        domain.ArchiveStore
	orchestrator *usecase.Orchestrator
	sweeper      *usecase.Sweeper
	oauth        *GoogleOAuthService
}

func New(cfg *config.Config) (*App, error) {
	log, err := logger.New(cfg.App.LogLevel, cfg.App.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	log.Infof("Starting %s", cfg.App.Name)
	log.Infof("Found %d database(s) configured", len(cfg.GetEnabledDatabases()))

	store, err := initializeStore(cfg, log)
	if err != nil {
		return nil, err
	}

	notifiers := initializeNotifiers(cfg, log)
	tools := initializeTools(cfg, log)
	if len(tools) == 0 {
		return nil, fmt.Errorf("no usable databases configured")
	}

	checkToolBinaries(tools, log)

	runner := usecase.NewRunner(
		store,
		compressor.NewGzip(),
		log,
		cfg.Backup.MaxExportSizeBytes,
		cfg.Backup.TerminateGrace,
		cfg.Backup.Compress,
	)

	orchestrator := usecase.NewOrchestrator(
		store,
		tools,
		runner,
		notifiers,
		log,
		cfg.Backup.MaxConcurrentJobs,
	)

	sweeper := usecase.NewSweeper(store, notifiers, log, cfg.Backup.RetentionHours)

	var oauth *GoogleOAuthService
	if cfg.Backup.Store.Type == "gdrive" && cfg.Backup.Store.ClientSecretFile != "" {
		oauth, err = NewGoogleOAuthService(log, cfg.Backup.Store.ClientSecretFile)
		if err != nil {
			log.Warnf("Google OAuth helper disabled: %v", err)
			oauth = nil
		}
	}

	return &App{
		config:       cfg,
		logger:       log,
		scheduler:    scheduler.New(),
		store:        store,
		orchestrator: orchestrator,
		sweeper:      sweeper,
		oauth:        oauth,
	}, nil
}

func initializeStore(cfg *config.Config, log *logger.Logger) (domain.ArchiveStore, error) {
	switch cfg.Backup.Store.Type {
	case "local":
		store, err := storage.NewLocal(cfg.Backup.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize local store: %w", err)
		}
		log.Infof("✓ Local archive store at %s", cfg.Backup.Store.Path)
		return store, nil

	case "s3":
		store, err := storage.NewS3(&cfg.Backup.Store)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 store: %w", err)
		}
		log.Infof("✓ S3 archive store (bucket: %s)", cfg.Backup.Store.Bucket)
		return store, nil

	case "gdrive":
		store, err := storage.NewGDrive(&cfg.Backup.Store)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Drive store: %w", err)
		}
		log.Infof("✓ Google Drive archive store")
		return store, nil

	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Backup.Store.Type)
	}
}

func initializeNotifiers(cfg *config.Config, log *logger.Logger) []domain.Notifier {
	var notifiers []domain.Notifier

	for _, nCfg := range cfg.GetEnabledNotifiers() {
		switch nCfg.Type {
		case "telegram":
			n, err := notifier.NewTelegram(&nCfg)
			if err != nil {
				log.Errorf("Failed to initialize Telegram notifier: %v", err)
				continue
			}
			log.Infof("✓ Telegram notifications enabled")
			notifiers = append(notifiers, n)

		default:
			log.Warnf("Unknown notifier type: %s", nCfg.Type)
		}
	}

	return notifiers
}

func initializeTools(cfg *config.Config, log *logger.Logger) map[string]domain.Tool {
	tools := make(map[string]domain.Tool)

	for i := range cfg.Databases {
		dbCfg := &cfg.Databases[i]

		var t domain.Tool
		switch dbCfg.Engine {
		case "mongodb":
			t = tool.NewMongoDB(dbCfg)
		case "postgresql":
			t = tool.NewPostgreSQL(dbCfg)
		case "mysql":
			t = tool.NewMySQL(dbCfg)
		default:
			log.Warnf("Unsupported database engine: %s for %s", dbCfg.Engine, dbCfg.Name)
			continue
		}

		tools[dbCfg.Name] = t
		log.Infof("✓ Registered %s (%s)", dbCfg.Name, dbCfg.Engine)
	}

	return tools
}

// checkToolBinaries warns about missing external binaries at startup. Jobs
// against a missing tool still fail individually with a launch error.
func checkToolBinaries(tools map[string]domain.Tool, log *logger.Logger) {
	seen := make(map[string]bool)

	for _, t := range tools {
		dumpBin, _, _ := t.DumpCommand()
		restoreBin, _, _ := t.RestoreCommand(t.DatabaseName())

		for _, bin := range []string{dumpBin, restoreBin} {
			if seen[bin] {
				continue
			}
			seen[bin] = true

			if _, err := exec.LookPath(bin); err != nil {
				log.Warnf("External tool %s not found in PATH", bin)
			}
		}
	}
}

// Orchestrator exposes the job interface consumed by external callers.
func (a *App) Orchestrator() *usecase.Orchestrator {
	return a.orchestrator
}

func (a *App) Run(ctx context.Context) error {
	for _, dbCfg := range a.config.GetEnabledDatabases() {
		name := dbCfg.Name

		if err := a.scheduler.AddJob(dbCfg.Schedule, func(ctx context.Context) error {
			a.logger.Infof("=== Triggered scheduled backup for %s ===", name)
			_, err := a.orchestrator.SubmitBackup([]string{name})
			return err
		}); err != nil {
			return fmt.Errorf("failed to schedule backup for %s: %w", name, err)
		}

		a.logger.Infof("✓ Scheduled backup for %s: %s", name, dbCfg.Schedule)
	}

	if err := a.scheduler.AddInterval(a.config.Backup.SweepInterval, a.sweeper.Execute); err != nil {
		return fmt.Errorf("failed to schedule retention sweep: %w", err)
	}
	a.logger.Infof("Retention sweep every %s, max age %dh",
		a.config.Backup.SweepInterval, a.config.Backup.RetentionHours)

	if a.oauth != nil && a.config.Backup.Store.OAuthAddr != "" {
		if err := a.oauth.StartAuthServer(ctx, a.config.Backup.Store.OAuthAddr); err != nil {
			return fmt.Errorf("failed to start OAuth server: %w", err)
		}
	}

	a.scheduler.Start()
	a.logger.Infof("Scheduler started successfully")

	<-ctx.Done()
	return nil
}

func (a *App) Shutdown() {
	a.logger.Infof("Shutting down application...")
	a.scheduler.Stop()
	a.orchestrator.Stop()
	if a.oauth != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = a.oauth.Shutdown(ctx)
	}
	a.logger.Close()
}
