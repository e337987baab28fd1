package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/DIMO-Network/server-garage/pkg/env"
	"github.com/DIMO-Network/server-garage/pkg/logging"
	"github.com/DIMO-Network/server-garage/pkg/monserver"
	"github.com/DIMO-Network/server-garage/pkg/runner"
	"github.com/DIMO-Network/wa-ocr-webhook/internal/app"
	"github.com/DIMO-Network/wa-ocr-webhook/internal/config"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// @title           WhatsApp OCR Webhook
// @version         1.0
// @description     Receives WhatsApp Cloud API notifications, reads text from images and relays the result.
//
// @BasePath  /
func main() {
	logger := logging.GetAndSetDefaultLogger("wa-ocr-webhook")
	mainCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-mainCtx.Done()
		logger.Info().Msg("Received signal, shutting down...")
		cancel()
	}()

	runnerGroup, runnerCtx := errgroup.WithContext(mainCtx)

	envFile := flag.String("env-file", ".env", "path to env file")
	flag.Parse()

	settings, err := env.LoadSettings[config.Settings](*envFile)
	if err != nil {
		log.Fatalf("could not load settings: %s", err)
	}
	settings.ApplyDefaults()

	level, err := zerolog.ParseLevel(settings.LogLevel)
	if err != nil {
		log.Fatalf("could not parse log level: %s", err)
	}
	zerolog.SetGlobalLevel(level)
	logger = logging.GetAndSetDefaultLogger(settings.ServiceName)

	monApp := monserver.NewMonitoringServer(&logger, settings.EnablePprof)
	logger.Info().Str("port", strconv.Itoa(settings.MonPort)).Msgf("Starting monitoring server")
	runner.RunHandler(runnerCtx, runnerGroup, monApp, ":"+strconv.Itoa(settings.MonPort))

	app, shutdown, err := app.CreateServers(&settings, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create servers")
	}
	logger.Info().Str("port", strconv.Itoa(settings.Port)).Msgf("Starting web server")
	runner.RunFiber(runnerCtx, runnerGroup, app, ":"+strconv.Itoa(settings.Port))

	runErr := runnerGroup.Wait()

	// The web server is down at this point, so no new deliveries can start.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), settings.ShutdownTimeout)
	if err := shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to drain background deliveries")
	}
	shutdownCancel()

	if runErr != nil {
		logger.Fatal().Err(runErr).Msg("Server failed.")
	}
	logger.Info().Msg("Server stopped.")
}
