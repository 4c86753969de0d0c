// clubbot runs the paid-channel subscription bot: it sells time-limited
// memberships, verifies payments and keeps channel access in sync with the
// ledger.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/clubbot/bot"
	"github.com/m3rciful/clubbot/core/access"
	"github.com/m3rciful/clubbot/core/buildinfo"
	coreconfig "github.com/m3rciful/clubbot/core/config"
	"github.com/m3rciful/clubbot/core/database"
	"github.com/m3rciful/clubbot/core/intake"
	"github.com/m3rciful/clubbot/core/ledger"
	"github.com/m3rciful/clubbot/core/logger"
	"github.com/m3rciful/clubbot/core/metrics"
	"github.com/m3rciful/clubbot/core/notify"
	"github.com/m3rciful/clubbot/core/plan"
	"github.com/m3rciful/clubbot/core/sweep"
	tg "github.com/m3rciful/clubbot/core/telegram"
	"github.com/m3rciful/clubbot/core/telegram/sender"
)

func main() {
	if err := run(); err != nil {
		logger.L.Error("fatal", slog.String("err", err.Error()))
		_ = logger.Shutdown()
		os.Exit(1)
	}
	_ = logger.Shutdown()
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	// Local overrides only; absence of a .env file is normal.
	_ = godotenv.Load()

	cfg, err := coreconfig.Load(*configPath)
	if err != nil {
		return err
	}
	if err := logger.InitLogger(cfg); err != nil {
		return err
	}
	logger.L.Info("starting",
		slog.String("event", "startup"),
		slog.String("version", buildinfo.Version),
		slog.String("commit", buildinfo.Commit),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.RunMigrations(cfg.Database); err != nil {
		return err
	}
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	teleBot, err := tg.Build(cfg)
	if err != nil {
		return err
	}

	channelID, err := resolveChannelID(teleBot, cfg.Channel.ID)
	if err != nil {
		return err
	}
	controller, err := access.NewController(teleBot, channelID)
	if err != nil {
		return err
	}

	dispatcher := sender.NewDispatcher(sender.Options{})
	notifier := notify.NewTelegram(teleBot, dispatcher, cfg.Telegram.AdminChatID, cfg.Channel.InviteLink)

	store := ledger.New(db)
	plans := plan.FromConfig(cfg.Plans)
	svc := intake.New(store, plans, controller, notifier)

	app := bot.New(cfg, store, plans, svc, notifier)
	reg := app.Registry()

	if cfg.Sweep.Enabled {
		go sweep.New(store, controller, notifier, cfg.Sweep.Interval()).Run(ctx)
	}
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Listen); err != nil {
				logger.L.Error("metrics listener failed", slog.String("err", err.Error()))
			}
		}()
	}

	return tg.RunTelegram(ctx, teleBot, tg.RunOptions{
		Config:      cfg,
		Registry:    reg,
		Dispatcher:  dispatcher,
		Middlewares: tg.DefaultMiddlewares(cfg),
		Routes:      app.Routes(reg),
	})
}

// resolveChannelID turns an @username channel reference into its numeric id.
// Numeric references pass through untouched.
func resolveChannelID(b *tele.Bot, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "@") {
		return raw, nil
	}
	chat, err := b.ChatByUsername(raw)
	if err != nil {
		return "", fmt.Errorf("resolve channel %s: %w", raw, err)
	}
	return strconv.FormatInt(chat.ID, 10), nil
}
