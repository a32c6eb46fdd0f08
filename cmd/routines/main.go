package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lifekit/routines/internal/api"
	"github.com/lifekit/routines/internal/calendar"
	"github.com/lifekit/routines/internal/dispatch"
	"github.com/lifekit/routines/internal/engine"
	"github.com/lifekit/routines/internal/lockfile"
	"github.com/lifekit/routines/internal/notify"
	"github.com/lifekit/routines/internal/scheduler"
	"github.com/lifekit/routines/internal/store"
	"github.com/lifekit/routines/internal/tasks"
	"github.com/lifekit/routines/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for routines state data
	DefaultStateDir = "/var/lib/routines"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "routines.db"
)

// Config holds environment configuration
type Config struct {
	DatabaseURL     string
	StateDir        string
	APIAddr         string
	TaskServiceURL  string
	NotifyWebhook   string
	NotifySMSTo     string
	CalendarURL     string
	DispatchTimeout time.Duration
	NoScheduler     bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir       *string
	dbDSN          *string
	apiAddr        *string
	taskServiceURL *string
	notifyWebhook  *string
	calendarURL    *string
	noScheduler    *bool
}

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := run(config, flags); err != nil {
		slog.Error("routines failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("routines exited successfully")
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		StateDir:        os.Getenv("ROUTINES_STATE_DIR"),
		APIAddr:         os.Getenv("API_ADDR"),
		TaskServiceURL:  os.Getenv("TASK_SERVICE_URL"),
		NotifyWebhook:   os.Getenv("NOTIFICATION_WEBHOOK_URL"),
		NotifySMSTo:     os.Getenv("NOTIFY_SMS_TO"),
		CalendarURL:     os.Getenv("CALENDAR_SERVICE_URL"),
		DispatchTimeout: util.ParseDurationEnv("DISPATCH_TIMEOUT", dispatch.DefaultDispatchTimeout),
		NoScheduler:     util.ParseBoolEnv("ROUTINES_SCHEDULER_DISABLED", false),
	}

	if dsn := os.Getenv("ROUTINES_DB_DSN"); dsn != "" {
		config.DatabaseURL = dsn
	}
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No ROUTINES_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"ROUTINES_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr,
		"TASK_SERVICE_URL_SET", config.TaskServiceURL != "",
		"NOTIFICATION_WEBHOOK_URL_SET", config.NotifyWebhook != "",
		"NOTIFY_SMS_TO_SET", config.NotifySMSTo != "",
		"CALENDAR_SERVICE_URL_SET", config.CalendarURL != "",
		"DISPATCH_TIMEOUT", config.DispatchTimeout,
		"SCHEDULER_DISABLED", config.NoScheduler)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:       flag.String("state-dir", config.StateDir, "state directory for routines data (overrides $ROUTINES_STATE_DIR)"),
		dbDSN:          flag.String("db-dsn", config.DatabaseURL, "database DSN (overrides $ROUTINES_DB_DSN or $DATABASE_URL)"),
		apiAddr:        flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		taskServiceURL: flag.String("task-service-url", config.TaskServiceURL, "task service base URL (overrides $TASK_SERVICE_URL)"),
		notifyWebhook:  flag.String("notify-webhook-url", config.NotifyWebhook, "notification webhook URL (overrides $NOTIFICATION_WEBHOOK_URL)"),
		calendarURL:    flag.String("calendar-service-url", config.CalendarURL, "calendar service base URL (overrides $CALENDAR_SERVICE_URL)"),
		noScheduler:    flag.Bool("no-scheduler", config.NoScheduler, "disable the scheduled sweeps (overrides $ROUTINES_SCHEDULER_DISABLED)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"apiAddr", *flags.apiAddr,
		"taskServiceURL", *flags.taskServiceURL,
		"notifyWebhook_set", *flags.notifyWebhook != "",
		"calendarURL", *flags.calendarURL,
		"noScheduler", *flags.noScheduler)

	return flags
}

// isPostgresDSN reports whether the DSN targets PostgreSQL rather than a SQLite file.
func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=")
}

// buildStore opens the routine store for the configured DSN.
func buildStore(flags Flags) (store.Store, error) {
	if isPostgresDSN(*flags.dbDSN) {
		slog.Info("Using PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	}
	slog.Info("Using SQLite store", "path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
}

// buildDispatcher wires the collaborator services that are configured.
func buildDispatcher(config Config, flags Flags) *dispatch.Dispatcher {
	opts := []dispatch.Option{dispatch.WithTimeout(config.DispatchTimeout)}

	if *flags.taskServiceURL != "" {
		opts = append(opts, dispatch.WithTaskService(tasks.NewHTTPClient(*flags.taskServiceURL)))
	} else {
		slog.Warn("No task service URL configured; create_task actions will fail")
	}

	switch {
	case config.NotifySMSTo != "":
		client, err := notify.NewTwilioClient(notify.WithStaticRecipient(config.NotifySMSTo))
		if err != nil {
			slog.Error("Failed to build Twilio notification client, notifications disabled", "error", err)
		} else {
			slog.Info("Using Twilio SMS notifications", "to_set", true)
			opts = append(opts, dispatch.WithNotificationService(client))
		}
	case *flags.notifyWebhook != "":
		slog.Info("Using webhook notifications")
		opts = append(opts, dispatch.WithNotificationService(notify.NewWebhookClient(*flags.notifyWebhook)))
	default:
		slog.Warn("No notification delivery configured; send_notification actions will fail")
	}

	if *flags.calendarURL != "" {
		opts = append(opts, dispatch.WithCalendarService(calendar.NewHTTPClient(*flags.calendarURL)))
	}

	return dispatch.NewDispatcher(opts...)
}

// run wires the modules together and blocks until shutdown.
func run(config Config, flags Flags) error {
	// Two daemons on one state directory would double-fire routines.
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := buildStore(flags)
	if err != nil {
		return err
	}
	defer st.Close()

	dispatcher := buildDispatcher(config, flags)
	eng := engine.NewEngine(st, dispatcher)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !*flags.noScheduler {
		sched := scheduler.NewScheduler()
		// Time-based routines are all swept at minute granularity; the hour
		// and day entries are hooks for future trigger kinds.
		if err := sched.RegisterSweep(scheduler.GranularityMinute, func() {
			if _, err := eng.SweepTimeBased(context.Background()); err != nil {
				slog.Error("Minute sweep failed", "error", err)
			}
		}); err != nil {
			return err
		}
		if err := sched.RegisterSweep(scheduler.GranularityHour, func() {
			slog.Debug("Hourly sweep tick: no trigger kinds at this granularity")
		}); err != nil {
			return err
		}
		if err := sched.RegisterSweep(scheduler.GranularityDay, func() {
			slog.Debug("Daily sweep tick: no trigger kinds at this granularity")
		}); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	} else {
		slog.Info("Scheduled sweeps disabled")
	}

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	server := api.NewServer(eng, apiOpts...)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
		return server.Shutdown(context.Background())
	}
}
