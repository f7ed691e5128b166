package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"signalbot/internal/api"
	"signalbot/internal/audit"
	"signalbot/internal/config"
	"signalbot/internal/engine"
	"signalbot/internal/logger"
	"signalbot/internal/source"
	"signalbot/internal/source/mailbox"
	"signalbot/internal/source/replay"
	"signalbot/internal/source/telegram"
	"signalbot/internal/terminal"
	"signalbot/internal/terminal/bridge"
	"signalbot/internal/terminal/paper"
	"signalbot/internal/tracker"
	"syscall"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logger.New(logger.Config{
		Level:      cfg.Runtime.Log.Level,
		Format:     cfg.Runtime.Log.Format,
		Output:     cfg.Runtime.Log.File,
		MaxSize:    cfg.Runtime.Log.MaxSize,
		MaxBackups: cfg.Runtime.Log.MaxBackups,
		MaxAge:     cfg.Runtime.Log.MaxAge,
		Compress:   cfg.Runtime.Log.Compress,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = run(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Error("Бот завершился с ошибкой.")
	} else {
		logger.Info("Бот остановлен.")
	}
	_ = logger.Close()
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	client, closeTerminal, err := newTerminal(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeTerminal()

	src, err := newSource(cfg, log)
	if err != nil {
		return err
	}

	recorder, err := audit.New(cfg.Runtime.Audit.Driver, cfg.Runtime.Audit.Path)
	if err != nil {
		return err
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			log.WithError(err).Warn("Не удалось закрыть архив ордеров.")
		}
	}()

	tr := tracker.New(log, recorder)
	eng, err := engine.New(cfg, client, tr, log)
	if err != nil {
		return err
	}
	sweeper := tracker.NewSweeper(tr, client, tracker.SweeperConfig{
		Symbol:            cfg.Trading.Symbol,
		Interval:          cfg.Runtime.SweepInterval,
		StatusLogInterval: cfg.Runtime.StatusLogInterval,
	}, log)

	g, ctx := errgroup.WithContext(ctx)
	if cfg.Runtime.HTTPAddr != "" {
		history, _ := recorder.(audit.Reader)
		server := api.NewServer(cfg.Runtime.HTTPAddr, tr, history, log)
		g.Go(func() error {
			return server.Start(ctx)
		})
	}
	g.Go(func() error {
		return eng.Start(ctx, src, sweeper)
	})
	return g.Wait()
}

// newTerminal returns the configured terminal. In dry-run mode orders go to a paper terminal
// that still reads live quotes from the bridge when one is configured.
func newTerminal(ctx context.Context, cfg *config.Config, log *logger.Logger) (terminal.Client, func(), error) {
	if cfg.Terminal.Type != "bridge" {
		log.Warn("Используется бумажный терминал, ордера не уходят к брокеру.")
		return paper.New(log, nil), func() {}, nil
	}

	b := bridge.New(bridge.Config{
		URL:            cfg.Terminal.URL,
		ApiKey:         cfg.Terminal.ApiKey,
		Magic:          cfg.Terminal.Magic,
		Comment:        cfg.Terminal.Comment,
		RequestTimeout: cfg.Terminal.RequestTimeout,
	}, log)
	if err := b.Connect(ctx); err != nil {
		return nil, nil, fmt.Errorf("Не удалось подключиться к терминалу: %w", err)
	}
	closeBridge := func() {
		if err := b.Close(); err != nil {
			log.WithError(err).Warn("Не удалось закрыть соединение с терминалом.")
		}
	}

	if cfg.Runtime.DryRun {
		log.Warn("Включён dry_run: ордера исполняются на бумажном терминале.")
		return paper.New(log, b), closeBridge, nil
	}
	return b, closeBridge, nil
}

func newSource(cfg *config.Config, log *logger.Logger) (source.Source, error) {
	switch cfg.Source.Type {
	case "telegram":
		return telegram.New(telegram.Config{
			Token:       cfg.Source.Telegram.Token,
			Chat:        cfg.Source.Telegram.Chat,
			PollTimeout: cfg.Source.Telegram.PollTimeout,
		}, log), nil
	case "mailbox":
		return mailbox.New(mailbox.Config{
			Host:         cfg.Source.Mailbox.Host,
			Port:         cfg.Source.Mailbox.Port,
			User:         cfg.Source.Mailbox.User,
			Password:     cfg.Source.Mailbox.Password,
			Subject:      cfg.Source.Mailbox.Subject,
			PollInterval: cfg.Source.Mailbox.PollInterval,
		}, log), nil
	case "replay":
		return replay.New(cfg.Source.Replay.Path, 0, log), nil
	default:
		return nil, &config.ConfigurationError{Field: "source.type", Reason: fmt.Sprintf("неизвестный источник %q", cfg.Source.Type)}
	}
}
