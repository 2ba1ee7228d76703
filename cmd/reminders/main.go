package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pawhaven/pawhaven/internal/app"
	"github.com/pawhaven/pawhaven/internal/cache"
	"github.com/pawhaven/pawhaven/internal/database"
	"github.com/pawhaven/pawhaven/internal/services"
	"github.com/pawhaven/pawhaven/pkg/logger"
	"github.com/pawhaven/pawhaven/pkg/mail"
	"github.com/pawhaven/pawhaven/pkg/telegram"
)

const usage = `Usage: pawhaven-reminders [flags] <command>

Commands:
  vaccinations    Send vaccination reminders for records due soon
  birthdays       Send birthday reminders for pets whose birthday is today

Flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("pawhaven-reminders", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)
	fs.Usage = func() {
		fmt.Fprint(os.Stdout, usage)
		fs.PrintDefaults()
	}

	var (
		configPath string
		days       int
	)
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")
	fs.IntVar(&days, "days", 0, "Look-ahead window in days for the vaccination scan (default from config)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("exactly one command is required")
	}
	command := strings.ToLower(fs.Arg(0))

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("reminders-cli")

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	claimStore := buildClaimStore(cfg, db, log)
	defer func() {
		if rc, ok := claimStore.(*cache.RedisClient); ok && rc != nil {
			_ = rc.Close()
		}
	}()

	reminders, err := buildReminderService(db, claimStore, cfg)
	if err != nil {
		return err
	}

	switch command {
	case "vaccinations":
		if days <= 0 {
			days = cfg.Reminders.VaccinationDays
		}
		report, err := reminders.ScanVaccinations(ctx, time.Duration(days)*24*time.Hour)
		if report != nil {
			log.Info("vaccination scan complete",
				zap.Int("scanned", report.Scanned),
				zap.Int("notified", report.Notified),
				zap.Int("skipped", report.Skipped),
				zap.Int("failed", report.Failed),
			)
		}
		return err
	case "birthdays":
		report, err := reminders.ScanBirthdays(ctx)
		if report != nil {
			log.Info("birthday scan complete",
				zap.Int("scanned", report.Scanned),
				zap.Int("notified", report.Notified),
				zap.Int("skipped", report.Skipped),
				zap.Int("failed", report.Failed),
			)
		}
		return err
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func buildReminderService(db *gorm.DB, claimStore cache.Store, cfg *app.Config) (*services.ReminderService, error) {
	guard, err := services.NewWindowGuard(claimStore)
	if err != nil {
		return nil, fmt.Errorf("initialise window guard: %w", err)
	}
	prefs, err := services.NewPreferenceService(db)
	if err != nil {
		return nil, fmt.Errorf("initialise preference service: %w", err)
	}

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise mailer: %w", err)
	}
	telegramClient, err := telegram.NewClient(cfg.Telegram.ClientSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise telegram client: %w", err)
	}

	dispatcher, err := services.NewDispatcher(db, prefs, guard,
		services.WithMailer(mailer),
		services.WithTelegramSender(telegramClient),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise dispatcher: %w", err)
	}

	return services.NewReminderService(db, dispatcher)
}

func buildClaimStore(cfg *app.Config, db *gorm.DB, log *zap.Logger) cache.Store {
	if cfg.Cache.Redis.Enabled {
		client, err := cache.NewRedisClient(cfg.Cache.RedisClientConfig())
		if err != nil {
			log.Warn("redis unavailable; falling back to database-backed claims", zap.Error(err))
		} else {
			return client
		}
	}
	return cache.NewDatabaseStore(db)
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func openDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}
	switch dbCfg.Driver {
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		dbCfg.Host = strings.TrimSpace(cfg.Database.Postgres.Host)
		dbCfg.Port = cfg.Database.Postgres.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.Postgres.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.Postgres.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.Postgres.Password)
	case "mysql":
		dbCfg.Host = strings.TrimSpace(cfg.Database.MySQL.Host)
		dbCfg.Port = cfg.Database.MySQL.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.MySQL.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.MySQL.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.MySQL.Password)
	}

	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
