// Command stubserver runs the in-memory development backend: the four REST
// endpoints the mobile client consumes, plus an endpoint that mints single-use
// QR tokens the way the classroom display would.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/spotin-app/spotin-go/internal/config"
	"github.com/spotin-app/spotin-go/session"
	"github.com/spotin-app/spotin-go/stub"
)

const (
	demoUserName  = "Demo User"
	demoUserEmail = "demo@spotin.app"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("stubserver stopped")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	backend, err := stub.New(cfg.StubSecret, cfg.Target, stub.WithLogger(log.Logger))
	if err != nil {
		return err
	}

	password := config.GetEnv("SPOTIN_DEMO_PASSWORD", "password123")
	if _, err := backend.SeedUser(demoUserName, demoUserEmail, password, session.RoleUser); err != nil {
		return err
	}

	displayAppname("SpotIn stub")
	log.Info().
		Str("addr", cfg.StubPort).
		Str("demo_user", demoUserEmail).
		Float64("fence_lat", cfg.Target.Center.Lat).
		Float64("fence_lng", cfg.Target.Center.Lng).
		Float64("fence_radius_m", cfg.Target.RadiusMeters).
		Msg("stub backend listening")

	server := &http.Server{Addr: cfg.StubPort, Handler: backend}
	go listenAndServe(server)
	waitForStopSignal()
	return shutdown(server)
}

func listenAndServe(server *http.Server) {
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
