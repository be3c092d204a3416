package main

import (
	"context"
	"net/http"

	"github.com/caarlos0/env/v8"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("no .env file found, reading configuration from the environment")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		logrus.Fatalf("could not parse config: %v", err)
	}

	ctx := context.Background()

	// Initialization failure is fatal for the run: never serve traffic
	// against a database that could not be prepared.
	if err := ensureDatabase(ctx, cfg.DatabaseURL); err != nil {
		logrus.Fatalf("error ensuring database exists: %v", err)
	}

	store, err := NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logrus.Fatalf("unable to initialize store: %v", err)
	}
	defer store.Close()

	if err := store.Init(ctx); err != nil {
		logrus.Fatalf("error initializing database: %v", err)
	}
	logrus.Info("database initialized successfully")

	var publisher NotificationPublisher
	if cfg.AMQPURL != "" {
		rabbit, err := NewRabbitMQPublisher(cfg.AMQPURL)
		if err != nil {
			logrus.Fatalf("unable to connect to RabbitMQ: %v", err)
		}
		defer rabbit.Close()
		publisher = rabbit
	} else {
		logrus.Warn("AMQP_URL not set, limit alerts disabled")
	}

	h := NewHandler(store, publisher)

	mux := chi.NewRouter()
	RegisterRouters(mux, h)

	logrus.Infof("starting server on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, mux); err != nil {
		logrus.Fatal(err)
	}
}
