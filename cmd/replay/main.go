// Command replay rebuilds an exchange's in-memory state from its journal
// and snapshot store, without opening the command-ingestion server: for
// recovery drills and for inspecting what a given journal actually
// produced.
package main

import (
	"flag"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/llc-993/matching-core/internal/config"
	"github.com/llc-993/matching-core/internal/exchange"
)

func main() {
	configPath := flag.String("config", "configs/matchcore.yaml", "path to the YAML config file")
	takeSnapshot := flag.Bool("snapshot", false, "write a fresh snapshot once replay completes")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load config")
	}

	core, err := exchange.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to construct exchange core")
	}
	defer func() {
		if err := core.Close(); err != nil {
			log.Error().Err(err).Msg("error closing exchange core")
		}
	}()

	restored, err := core.LoadLatestSnapshot()
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load latest snapshot")
	}
	if restored {
		log.Info().Msg("resumed from snapshot, replaying journal tail")
	} else {
		log.Info().Msg("no snapshot found, replaying full journal")
	}

	if err := core.ReplayJournal(cfg.Journal.Path); err != nil {
		log.Fatal().Err(err).Msg("journal replay failed")
	}

	if *takeSnapshot {
		if err := core.TakeSnapshot(); err != nil {
			log.Fatal().Err(err).Msg("post-replay snapshot failed")
		}
	}

	log.Info().Msg("replay complete")
}
