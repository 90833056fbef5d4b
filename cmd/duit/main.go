package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"duit/internal/advisor"
	"duit/internal/config"
	"duit/internal/events"
	"duit/internal/gateway"
	apphttp "duit/internal/http"
	"duit/internal/log"
	"duit/internal/session"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{Component: log.ComponentApp})
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}

	gw, err := gateway.NewSQLite(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("failed to open database",
			log.FieldError, err.Error(), "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer gw.Close()

	opts := []session.Option{session.WithBudgetDebounce(cfg.BudgetFlushIn)}

	var eventsClient *events.Client
	if cfg.AMQPURL != "" {
		eventsClient, err = events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("failed to connect to message broker", log.FieldError, err.Error())
			os.Exit(1)
		}
		defer eventsClient.Close()
		opts = append(opts, session.WithEventPublisher(eventsClient))
		logger.Info("event publishing enabled",
			"exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("event publishing disabled, no AMQP_URL provided")
	}

	sessions := session.NewManager(gw, logger, opts...)

	var advRequester *advisor.Requester
	if cfg.AdvisoryOn {
		gen, err := advisor.NewGeminiGenerator(context.Background(), cfg.GeminiModel)
		if err != nil {
			logger.Error("failed to initialize advisory client", log.FieldError, err.Error())
			os.Exit(1)
		}
		advRequester = advisor.NewRequester(gen, logger)
		defer advRequester.Close()
		logger.Info("advisory enabled", "model", cfg.GeminiModel)
	} else {
		logger.Info("advisory disabled")
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, sessions, advRequester, logger, cfg.RateLimitPerMin)
	if err != nil {
		logger.Error("failed to build server", log.FieldError, err.Error())
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", log.FieldError, err.Error())
		}
		cancel()
	}()

	logger.Info("starting duit server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("server stopped gracefully")
}
