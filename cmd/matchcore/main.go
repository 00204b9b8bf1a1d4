package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/llc-993/matching-core/internal/config"
	"github.com/llc-993/matching-core/internal/exchange"
	"github.com/llc-993/matching-core/internal/net"
)

func main() {
	configPath := flag.String("config", "configs/matchcore.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load config")
	}
	setupLogging(cfg.Logging.Level, cfg.Logging.Format)

	core, err := exchange.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to construct exchange core")
	}
	log.Info().Str("session", core.SessionID()).Msg("exchange core constructed")
	defer func() {
		if err := core.Close(); err != nil {
			log.Error().Err(err).Msg("error closing exchange core")
		}
	}()

	if restored, err := core.LoadLatestSnapshot(); err != nil {
		log.Fatal().Err(err).Msg("unable to load latest snapshot")
	} else if restored {
		log.Info().Msg("resumed from snapshot")
	}

	if err := core.ReplayJournal(cfg.Journal.Path); err != nil {
		log.Fatal().Err(err).Msg("unable to replay journal tail")
	}

	srv := net.New(cfg.Net.Address, cfg.Net.Port, core.Pipeline())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go srv.Run(ctx)
	<-ctx.Done()
}

func setupLogging(level, format string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)

	if format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
