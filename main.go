package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/icodeforyou/ostrom-go/config"
	"github.com/icodeforyou/ostrom-go/coordinator"
	"github.com/icodeforyou/ostrom-go/database"
	"github.com/icodeforyou/ostrom-go/hours"
	"github.com/icodeforyou/ostrom-go/logging"
	"github.com/icodeforyou/ostrom-go/mqtt"
	"github.com/icodeforyou/ostrom-go/ostrom"
	"github.com/icodeforyou/ostrom-go/task"
	"github.com/icodeforyou/ostrom-go/www"
)

var Version = "?.?.?"

func main() {
	defer func() {
		if err := recover(); err != nil {
			exitWithError(slog.Default(), fmt.Errorf("application panicked: %v", err))
		} else {
			slog.Default().Info("application is shutting down...")
		}
	}()

	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cnfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	if err := cnfg.Validate(); err != nil {
		panic(fmt.Sprintf("invalid config: %v", err))
	}

	if err := hours.SetTimezone(cnfg.Gui.GetTimezone()); err != nil {
		panic(fmt.Sprintf("failed to set timezone: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consoleLevel := new(slog.LevelVar)
	consoleLevel.Set(cnfg.Logging.GetConsoleLevel())
	consoleHandler := logging.NewConsoleHandler(os.Stdout, consoleLevel)
	slog.New(consoleHandler).Debug("ostrom is starting...", slog.String("version", Version))

	db, err := database.New(ctx, cnfg.Database.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to connect to database: %v", err))
	}
	defer db.Close()

	dbLevel := new(slog.LevelVar)
	dbLevel.Set(cnfg.Logging.GetDbLevel())
	logger := slog.New(logging.NewMultiHandler(
		consoleHandler,
		logging.NewSQLiteHandler(db, dbLevel, cnfg.Logging.GetDbAttrsFormat())))
	slog.SetDefault(logger)

	// Now we can use the logger to log database operations into the database itself
	db.SetLogger(logger.With("module", "database"))

	endpoints, err := cnfg.Ostrom.GetEndpoints()
	if err != nil {
		panic(fmt.Sprintf("invalid ostrom endpoints: %v", err))
	}
	client := ostrom.NewClient(cnfg.Ostrom.ClientID, cnfg.Ostrom.ClientSecret, endpoints)
	provider := ostrom.NewProvider(client, cnfg.Ostrom.ContractID, cnfg.Ostrom.Zip)

	coord := coordinator.New(provider,
		coordinator.WithHistory(db),
		coordinator.WithRetryDelay(cnfg.Refresh.GetRetryDelay()),
		coordinator.WithRefreshTimeout(cnfg.Refresh.GetTimeout()),
		coordinator.WithLocation(hours.Location()))

	server := www.NewServer(coord, db, cnfg.Api, Version)
	coord.OnUpdate(server.Publish)

	if cnfg.Mqtt.Enabled && !isDevMode() {
		publisher := mqtt.New(cnfg.Mqtt, coord, Version)
		coord.OnUpdate(publisher.Publish)
		if err := publisher.Connect(); err != nil {
			logger.Error("mqtt connection failed, continuing without it", slog.Any("error", err))
		} else {
			defer publisher.Disconnect()
		}
	} else {
		logger.Info("mqtt publishing disabled")
	}

	setupCtx, setupCancel := context.WithTimeout(ctx, cnfg.Refresh.GetTimeout())
	if err := coord.Setup(setupCtx); err != nil {
		logger.Error("initial refresh failed", slog.Any("error", err))
	}
	setupCancel()
	defer coord.Teardown()

	tasks := task.NewTasks(coord, db, cnfg)
	if isDevMode() {
		logger.Info("dev mode, skipping task scheduling")
	} else {
		tasks.Run()
		defer tasks.Stop()
	}

	config.Watch(func(c *config.AppConfig) {
		consoleLevel.Set(c.Logging.GetConsoleLevel())
		dbLevel.Set(c.Logging.GetDbLevel())
		logger.Info("log levels updated",
			slog.String("console", c.Logging.GetConsoleLevel().String()),
			slog.String("db", c.Logging.GetDbLevel().String()))
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("main context done")
		case sig := <-sigCh:
			logger.Info("received signal", slog.Any("signal", sig))
			cancel()
		}
	}()

	server.Run(ctx)
}

func isDevMode() bool {
	return strings.EqualFold(os.Getenv("APP_ENV"), "development")
}

func exitWithError(logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("application shutting down with error", slog.Any("error", err))
	}
	time.Sleep(2 * time.Second)
	os.Exit(1)
}
