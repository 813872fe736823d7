package main

import (
	"context"
	"log"
	"os"
	"runtime/debug"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldline/importhub/modules"
	"github.com/fieldline/importhub/pkg/application"
	"github.com/fieldline/importhub/pkg/configuration"
	"github.com/fieldline/importhub/pkg/eventbus"
	"github.com/fieldline/importhub/pkg/metrics"
	"github.com/fieldline/importhub/pkg/middleware"
	"github.com/fieldline/importhub/pkg/server"
	"github.com/fieldline/importhub/pkg/tasks"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			configuration.Use().Unload()
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	logger := conf.Logger()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		panic(err)
	}

	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
		Runner:   tasks.NewRunner(logger),
	})
	if err := modules.Load(app, modules.BuiltInModules...); err != nil {
		log.Fatalf("failed to load modules: %v", err)
	}
	if conf.Prometheus.Enabled {
		app.RegisterControllers(metrics.NewPrometheusController(conf.Prometheus.Path))
	}
	app.RegisterMiddleware(middleware.WithLogger(logger))

	if err := app.Migrations().Apply(ctx); err != nil {
		log.Fatalf("failed to apply schema: %v", err)
	}

	logger.Infof("listening on %s", conf.SocketAddress)
	srv := server.NewHTTPServer(app)
	if err := srv.Start(conf.SocketAddress); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
