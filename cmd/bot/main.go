package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dyatelok/secret-santa/internal/api"
	"github.com/dyatelok/secret-santa/internal/config"
	"github.com/dyatelok/secret-santa/internal/dialogue"
	"github.com/dyatelok/secret-santa/internal/logging"
	"github.com/dyatelok/secret-santa/internal/monitor"
	"github.com/dyatelok/secret-santa/internal/runner"
	"github.com/dyatelok/secret-santa/internal/storage"
	"github.com/dyatelok/secret-santa/internal/storage/boltstore"
	"github.com/dyatelok/secret-santa/internal/storage/pgstore"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/telebot.v4"
)

func main() {
	setupConfig()
	logging.Init()

	cfg := config.New()
	logrus.Debugf("config: %+v", cfg)

	store := openStore(cfg)
	defer func() {
		if err := store.Close(); err != nil {
			logrus.Errorf("failed to close store: %v", err)
		}
	}()

	engine := dialogue.NewEngine(runner.New(store))

	bot, err := telebot.NewBot(telebot.Settings{
		Token: cfg.TelegramToken,
		Poller: &telebot.LongPoller{
			Timeout:        10 * time.Second,
			AllowedUpdates: []string{"message"},
		},
	})
	if err != nil {
		logrus.Fatalf("Failed to create bot: %v", err)
	}

	mon := monitor.New(cfg, engine, bot)
	bot.Handle(telebot.OnText, mon.HandleTextUpdate)

	service := api.NewService(store)
	e := echo.New()
	e.HideBanner = true
	e.GET("/healthz", service.HandleHealthz())
	e.GET("/stats", service.HandleStats())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		bot.Start()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := e.Start(cfg.APIListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("api server stopped: %v", err)
		}
	}()

	<-ctx.Done()

	bot.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("failed to shut down api server: %v", err)
	}

	logrus.Info("waiting for services to finish")
	wg.Wait()
}

func openStore(cfg *config.Config) storage.Store {
	switch cfg.StorageDriver {
	case config.StorageDriverPostgres:
		store, err := pgstore.Open(cfg.PostgresDSN)
		if err != nil {
			logrus.Fatalf("Failed to open postgres store: %v", err)
		}
		return store
	case config.StorageDriverBolt:
		store, err := boltstore.Open(cfg.BoltPath)
		if err != nil {
			logrus.Fatalf("Failed to open bolt store: %v", err)
		}
		return store
	default:
		logrus.Fatalf("Unknown storage driver %q", cfg.StorageDriver)
		return nil
	}
}

func setupConfig() {
	viper.SetDefault("bot_handle_timeout", "10s")
	config.SetupCommon()
}
