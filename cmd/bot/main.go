// Package main contains the entrypoint for the medication reminder bot.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/pcosta/lembrabot/internal/api"
	"github.com/pcosta/lembrabot/internal/bot"
	"github.com/pcosta/lembrabot/internal/bot/handlers"
	"github.com/pcosta/lembrabot/internal/bot/tasks"
	"github.com/pcosta/lembrabot/internal/config"
	"github.com/pcosta/lembrabot/internal/database"
	"github.com/pcosta/lembrabot/internal/dose"
	"github.com/pcosta/lembrabot/internal/geofence"
	"github.com/pcosta/lembrabot/internal/logger"
	"github.com/pcosta/lembrabot/internal/reminder"
	"github.com/pcosta/lembrabot/internal/telegram"
	"github.com/pcosta/lembrabot/internal/voice"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes and starts all application components, handles graceful
// shutdown, and returns an exit code (0 for success, 1 for failure).
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	log.Info("Logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	doses := dose.NewService(store, log, cfg.Reminder.DayStartUTCHour)
	gate := geofence.NewGate(store, log, cfg.Reminder.ArrivalRadiusMeters)

	hDeps := handlers.HandlerDeps{
		Logger: log,
		Config: cfg,
		Store:  store,
		Doses:  doses,
		Gate:   gate,
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log), handlers.EnsureUser(hDeps)),
		tgbot.WithDefaultHandler(handlers.NewLocationHandler(hDeps)),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	sender := telegram.NewSender(tg, log, cfg.Reminder.LowInventoryThreshold, cfg.Telegram.PublicURL)
	caller := voice.NewCaller(cfg.Twilio, log)

	policy := reminder.Policy{
		NagWindowMinutes:       cfg.Reminder.NagWindowMinutes,
		NagStepMinutes:         cfg.Reminder.NagStepMinutes,
		DefaultNaggingInterval: cfg.Reminder.DefaultNaggingInterval,
		LowInventoryThreshold:  cfg.Reminder.LowInventoryThreshold,
	}
	engine := reminder.NewEngine(store, doses, sender, caller, log, policy)

	tDeps := tasks.TaskDeps{
		Logger: log,
		Store:  store,
		Engine: engine,
		Sender: sender,
		Config: cfg,
	}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	router := api.NewRouter(api.Deps{
		Logger: log,
		Store:  store,
		Doses:  doses,
		Config: cfg,
	})
	httpServer := api.NewServer(cfg.HTTP.Addr, router)

	app := bot.NewBot(log, cfg, db, store, tg, sched, httpServer)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
