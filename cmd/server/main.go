package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pawhaven/pawhaven/internal/api"
	"github.com/pawhaven/pawhaven/internal/app"
	"github.com/pawhaven/pawhaven/internal/app/scheduler"
	iauth "github.com/pawhaven/pawhaven/internal/auth"
	"github.com/pawhaven/pawhaven/internal/cache"
	"github.com/pawhaven/pawhaven/internal/database"
	"github.com/pawhaven/pawhaven/internal/services"
	"github.com/pawhaven/pawhaven/pkg/logger"
	"github.com/pawhaven/pawhaven/pkg/mail"
	"github.com/pawhaven/pawhaven/pkg/telegram"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
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
	fs := flag.NewFlagSet("pawhaven-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	cfg.Auth.JWT.Secret = strings.TrimSpace(cfg.Auth.JWT.Secret)
	if cfg.Auth.JWT.Secret == "" {
		return errors.New("auth.jwt.secret must be configured")
	}

	db, err := initialiseDatabase(cfg)
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

	jwtService, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return fmt.Errorf("initialise jwt service: %w", err)
	}

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return fmt.Errorf("initialise mailer: %w", err)
	}
	telegramClient, err := telegram.NewClient(cfg.Telegram.ClientSettings())
	if err != nil {
		return fmt.Errorf("initialise telegram client: %w", err)
	}

	svcs, err := buildServices(db, claimStore, mailer, telegramClient, cfg)
	if err != nil {
		return err
	}

	var reminderSvc *services.ReminderService
	if cfg.Reminders.Enabled {
		reminderSvc = svcs.reminders
	}
	sched := scheduler.New(db, reminderSvc,
		scheduler.WithVaccinationSchedule(cfg.Reminders.VaccinationCron),
		scheduler.WithBirthdaySchedule(cfg.Reminders.BirthdayCron),
		scheduler.WithVaccinationWindow(time.Duration(cfg.Reminders.VaccinationDays)*24*time.Hour),
	)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduled jobs: %w", err)
	}
	defer sched.Stop()

	router, err := api.NewRouter(api.Dependencies{
		DB:              db,
		JWT:             jwtService,
		Users:           svcs.users,
		Verification:    svcs.verification,
		Notifications:   svcs.notifications,
		Actions:         svcs.actions,
		Cities:          svcs.cities,
		Telegram:        svcs.telegram,
		TelegramBotName: cfg.Telegram.BotName,
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

type serviceBundle struct {
	users         *services.UserService
	verification  *services.VerificationService
	notifications *services.NotificationService
	actions       *services.ActionService
	cities        *services.CityService
	telegram      *services.TelegramService
	reminders     *services.ReminderService
}

func buildServices(db *gorm.DB, claimStore cache.Store, mailer mail.Mailer, telegramClient *telegram.Client, cfg *app.Config) (*serviceBundle, error) {
	guard, err := services.NewWindowGuard(claimStore)
	if err != nil {
		return nil, fmt.Errorf("initialise window guard: %w", err)
	}
	prefs, err := services.NewPreferenceService(db)
	if err != nil {
		return nil, fmt.Errorf("initialise preference service: %w", err)
	}
	dispatcher, err := services.NewDispatcher(db, prefs, guard,
		services.WithMailer(mailer),
		services.WithTelegramSender(telegramClient),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise dispatcher: %w", err)
	}
	verification, err := services.NewVerificationService(db, dispatcher, guard,
		services.WithVerificationBaseURL(cfg.App.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise verification service: %w", err)
	}
	users, err := services.NewUserService(db, verification)
	if err != nil {
		return nil, fmt.Errorf("initialise user service: %w", err)
	}
	notifications, err := services.NewNotificationService(db)
	if err != nil {
		return nil, fmt.Errorf("initialise notification service: %w", err)
	}
	actions, err := services.NewActionService(db, notifications)
	if err != nil {
		return nil, fmt.Errorf("initialise action service: %w", err)
	}
	cities, err := services.NewCityService(db, dispatcher)
	if err != nil {
		return nil, fmt.Errorf("initialise city service: %w", err)
	}
	telegramSvc, err := services.NewTelegramService(db, prefs, telegramClient)
	if err != nil {
		return nil, fmt.Errorf("initialise telegram service: %w", err)
	}
	reminders, err := services.NewReminderService(db, dispatcher)
	if err != nil {
		return nil, fmt.Errorf("initialise reminder service: %w", err)
	}

	return &serviceBundle{
		users:         users,
		verification:  verification,
		notifications: notifications,
		actions:       actions,
		cities:        cities,
		telegram:      telegramSvc,
		reminders:     reminders,
	}, nil
}

func buildClaimStore(cfg *app.Config, db *gorm.DB, log *zap.Logger) cache.Store {
	if cfg.Cache.Redis.Enabled {
		client, err := cache.NewRedisClient(cfg.Cache.RedisClientConfig())
		if err != nil {
			log.Warn("redis unavailable; falling back to database-backed claims", zap.Error(err))
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
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

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected",
		zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
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
	default:
		// Leave driver as-is to surface unsupported driver error during open.
	}

	return dbCfg
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
