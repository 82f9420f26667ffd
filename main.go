package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/mbolis/cerimonial/app"
	"github.com/mbolis/cerimonial/config"
	"github.com/mbolis/cerimonial/database"
	"github.com/mbolis/cerimonial/httpx"
	"github.com/mbolis/cerimonial/log"
	"github.com/mbolis/cerimonial/notify"
	"github.com/mbolis/cerimonial/routes"
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		log.Fatal("main.config:", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	locale, err := cfg.Locale.Templating()
	if err != nil {
		log.Fatal("main.locale:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUrl)
	if err != nil {
		log.Fatal("main.db.open:", err)
	}
	defer db.Close()

	bearerServer := httpx.NewBearerServer(db, cfg)
	a := app.New(db, bearerServer, cfg, locale)

	if cfg.RedisAddr != "" {
		dispatcher := notify.NewQueueDispatcher(cfg.RedisAddr)
		defer dispatcher.Close()
		a.Notifier = dispatcher

		feed := notify.NewFeed(cfg.RedisAddr)
		defer feed.Close()
		if err = feed.Ping(ctx); err != nil {
			log.Warnf("main.redis: live updates disabled: %s", err)
		} else {
			a.Feed = feed
		}

		if err = notify.StartWorker(ctx, cfg.RedisAddr); err != nil {
			log.Fatal("main.worker:", err)
		}
	} else {
		log.Info("no -redis-addr: notifications are only logged")
	}

	handler := routes.Wire(a)

	err = runServer(ctx, cfg, handler)
	if !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("main.server:", err)
	}
}

func runServer(ctx context.Context, cfg config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:        cfg.Addr,
		Handler:     handler,
		IdleTimeout: time.Minute,
		ReadTimeout: 10 * time.Second,
		// no WriteTimeout: event streams stay open until shutdown
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("main.shutdown: %s", err)
		}
	}()

	log.Info("Listening on " + cfg.Url())
	return srv.ListenAndServe()
}
