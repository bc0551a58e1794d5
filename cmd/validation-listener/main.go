package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"courierval/internal/app"
	"courierval/internal/config"
	"courierval/internal/listener"
	"courierval/internal/logging"
)

func main() {
	cfg, err := config.Load()
	must(err)
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.Build(ctx, cfg, log, app.Options{})
	must(err)
	defer a.Close()

	svc := listener.NewService(a.Runner, cfg.ListenerInterval(), false, log)
	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
