// Command limitbook wires the matching engine, the good-for-day expiry
// task and the TCP gateway together. It is the process entry point: the
// harness that sits outside the core's tested contract.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"limitbook/internal/engine"
	"limitbook/internal/expiry"
	"limitbook/internal/gateway"
)

func main() {
	log := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng := engine.New(log)

	expiryTask := expiry.New(eng, clock.New(), expiry.DefaultSessionEndHour, log)
	expiryTask.Start(ctx)

	srv := gateway.New("0.0.0.0", 9001, eng, log)
	go func() {
		if err := srv.Run(ctx); err != nil {
			log.Error().Err(err).Msg("gateway stopped")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("shutting down")
	eng.Close()
	if err := expiryTask.Stop(); err != nil {
		log.Error().Err(err).Msg("expiry task stop")
		os.Exit(1)
	}
}
