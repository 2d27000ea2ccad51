package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/recruitpipe/recruitpipe/internal/api"
	"github.com/recruitpipe/recruitpipe/internal/approval"
	"github.com/recruitpipe/recruitpipe/internal/browser"
	"github.com/recruitpipe/recruitpipe/internal/channels"
	"github.com/recruitpipe/recruitpipe/internal/genai"
	"github.com/recruitpipe/recruitpipe/internal/interview"
	"github.com/recruitpipe/recruitpipe/internal/orchestrator"
	"github.com/recruitpipe/recruitpipe/internal/store"
	"github.com/recruitpipe/recruitpipe/internal/twiliosms"
	"github.com/recruitpipe/recruitpipe/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for RecruitPipe state data
	DefaultStateDir = "/var/lib/recruitpipe"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "recruitpipe.db"
	// DefaultStatusSchedule prints a status report at the top of every hour
	DefaultStatusSchedule = "0 * * * *"
)

// Config holds environment configuration
type Config struct {
	DatabaseURL     string
	StateDir        string
	OpenAIKey       string
	APIAddr         string
	ApprovalLogPath string
	StatusSchedule  string
	PollInterval    time.Duration
	AutoReply       bool
	RequireApproval bool
	Headless        bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir        *string
	dbDSN           *string
	openaiKey       *string
	apiAddr         *string
	approvalLog     *string
	statusSchedule  *string
	pollInterval    *time.Duration
	autoReply       *bool
	requireApproval *bool
	headless        *bool
}

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := os.MkdirAll(*flags.stateDir, 0o755); err != nil {
		slog.Error("Failed to create state directory", "dir", *flags.stateDir, "error", err)
		os.Exit(1)
	}

	st, err := buildStore(*flags.dbDSN)
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	gen, err := genai.NewClient(genai.WithAPIKey(*flags.openaiKey))
	if err != nil {
		slog.Error("Failed to create response generator", "error", err)
		os.Exit(1)
	}

	approvals, err := approval.NewLog(*flags.approvalLog)
	if err != nil {
		slog.Error("Failed to create approval log", "error", err)
		os.Exit(1)
	}

	controller := interview.NewController(&browser.HTTPLauncher{}, gen, st,
		interview.WithHeadless(*flags.headless))
	defer controller.Close()

	emailClient := buildEmailClient()

	var notifier orchestrator.Notifier
	if addr := os.Getenv("ESCALATION_EMAIL"); addr != "" && emailClient != nil {
		notifier = orchestrator.NewEmailNotifier(emailClient, addr)
		slog.Info("Escalation alerts via email", "to", addr)
	}

	engine := orchestrator.NewEngine(st, gen, controller, notifier, approvals, orchestrator.Config{
		AutoReply:       *flags.autoReply,
		RequireApproval: *flags.requireApproval,
	})

	pollers := buildPollers(engine, emailClient)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Periodic status report for the operator log.
	statusCron := cron.New()
	if _, err := statusCron.AddFunc(*flags.statusSchedule, engine.LogStatus); err != nil {
		slog.Error("Invalid status schedule", "schedule", *flags.statusSchedule, "error", err)
		os.Exit(1)
	}
	statusCron.Start()
	defer statusCron.Stop()

	srv := api.NewServer(engine, st, api.WithAddr(*flags.apiAddr))
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("API server failed", "error", err)
			stop()
		}
	}()

	slog.Info("RecruitPipe started",
		"pollInterval", *flags.pollInterval,
		"autoReply", *flags.autoReply,
		"requireApproval", *flags.requireApproval,
		"processors", len(pollers))

	runner := orchestrator.NewRunner(pollers, *flags.pollInterval)
	runner.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("API shutdown failed", "error", err)
	}
	slog.Info("RecruitPipe exited")
}

// initializeLogger sets up structured logging
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
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
		StateDir:        os.Getenv("RECRUITPIPE_STATE_DIR"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		APIAddr:         os.Getenv("API_ADDR"),
		ApprovalLogPath: os.Getenv("APPROVAL_LOG_PATH"),
		StatusSchedule:  os.Getenv("STATUS_SCHEDULE"),
		PollInterval:    util.ParseDurationEnv("CHECK_INTERVAL_SECONDS", orchestrator.DefaultPollInterval),
		AutoReply:       util.ParseBoolEnv("AUTO_REPLY_ENABLED", true),
		RequireApproval: util.ParseBoolEnv("REQUIRE_APPROVAL", false),
		Headless:        util.ParseBoolEnv("INTERVIEW_HEADLESS", false),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No RECRUITPIPE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.APIAddr == "" {
		config.APIAddr = api.DefaultAddr
	}
	if config.ApprovalLogPath == "" {
		config.ApprovalLogPath = filepath.Join(config.StateDir, "pending_approvals.txt")
	}
	if config.StatusSchedule == "" {
		config.StatusSchedule = DefaultStatusSchedule
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", os.Getenv("DATABASE_URL") != "",
		"RECRUITPIPE_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"AUTO_REPLY_ENABLED", config.AutoReply,
		"REQUIRE_APPROVAL", config.RequireApproval)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:        flag.String("state-dir", config.StateDir, "state directory for RecruitPipe data (overrides $RECRUITPIPE_STATE_DIR)"),
		dbDSN:           flag.String("db-dsn", config.DatabaseURL, "database DSN, SQLite path or Postgres URL (overrides $DATABASE_URL)"),
		openaiKey:       flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:         flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		approvalLog:     flag.String("approval-log", config.ApprovalLogPath, "pending-approval log path (overrides $APPROVAL_LOG_PATH)"),
		statusSchedule:  flag.String("status-schedule", config.StatusSchedule, "cron schedule for status reports (overrides $STATUS_SCHEDULE)"),
		pollInterval:    flag.Duration("poll-interval", config.PollInterval, "channel poll interval (overrides $CHECK_INTERVAL_SECONDS)"),
		autoReply:       flag.Bool("auto-reply", config.AutoReply, "send generated replies automatically (overrides $AUTO_REPLY_ENABLED)"),
		requireApproval: flag.Bool("require-approval", config.RequireApproval, "queue replies for human approval instead of sending (overrides $REQUIRE_APPROVAL)"),
		headless:        flag.Bool("headless", config.Headless, "run interview browser sessions headless (overrides $INTERVIEW_HEADLESS)"),
	}
	flag.Parse()
	return flags
}

// buildStore opens the conversation store matching the DSN type.
func buildStore(dsn string) (store.Store, error) {
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Info("Using Postgres store")
		return store.NewPostgresStore(store.WithPostgresDSN(dsn))
	}
	slog.Info("Using SQLite store", "path", dsn)
	return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
}

// buildEmailClient opens the email gateway if one is configured. The client
// is shared by the email processor and the escalation notifier.
func buildEmailClient() channels.EmailClient {
	mailDir := os.Getenv("EMAIL_GATEWAY_DIR")
	if mailDir == "" {
		slog.Info("EMAIL_GATEWAY_DIR not set, email channel disabled")
		return nil
	}
	client, err := channels.NewFileEmailClient(mailDir)
	if err != nil {
		slog.Error("Failed to open email gateway directory, skipping email channel", "error", err)
		return nil
	}
	slog.Info("Email gateway opened", "gatewayDir", mailDir)
	return client
}

// buildPollers wires a processor for every configured channel. Channels
// without credentials are skipped with a log line rather than failing boot.
func buildPollers(engine *orchestrator.Engine, emailClient channels.EmailClient) []channels.Poller {
	var pollers []channels.Poller

	if os.Getenv("TWILIO_ACCOUNT_SID") != "" {
		smsClient, err := twiliosms.NewClient()
		if err != nil {
			slog.Error("Failed to create Twilio SMS client, skipping SMS channel", "error", err)
		} else {
			batch := util.ParseIntEnv("SMS_BATCH_SIZE", channels.DefaultBatchSize)
			pollers = append(pollers, channels.NewSMSProcessor(smsClient, engine, batch))
			slog.Info("SMS channel enabled")
		}
	} else {
		slog.Info("TWILIO_ACCOUNT_SID not set, SMS channel disabled")
	}

	if emailClient != nil {
		batch := util.ParseIntEnv("EMAIL_BATCH_SIZE", channels.DefaultBatchSize)
		pollers = append(pollers, channels.NewEmailProcessor(emailClient, engine, batch))
		slog.Info("Email channel enabled")
	}

	return pollers
}
