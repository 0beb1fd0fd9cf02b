// Command server runs the matching engine and its TCP front end.
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"ledgerbook/internal/book"
	"ledgerbook/internal/config"
	"ledgerbook/internal/engine"
	"ledgerbook/internal/net"
	"ledgerbook/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open snapshot store")
	}
	defer st.Close()

	eng := engine.New(cfg.Tickers...)
	restoreSnapshots(eng, st, cfg.Tickers)

	srv := net.New(cfg.Address, cfg.Port, eng)
	eng.SetReporter(srv)

	go srv.Run(ctx)
	log.Info().Strs("tickers", cfg.Tickers).Int("port", cfg.Port).Msg("exchange started")

	<-ctx.Done()

	persistSnapshots(eng, st, cfg.Tickers)
}

func restoreSnapshots(eng *engine.Engine, st *store.Store, tickers []string) {
	for _, ticker := range tickers {
		snap, ok, err := st.Load(ticker)
		if err != nil {
			log.Error().Err(err).Str("ticker", ticker).Msg("failed to load snapshot")
			continue
		}
		if !ok {
			continue
		}
		log.Info().Str("ticker", ticker).Msg("restored snapshot")
		eng.Mount(ticker, book.Restore(snap))
	}
}

func persistSnapshots(eng *engine.Engine, st *store.Store, tickers []string) {
	for _, ticker := range tickers {
		b, ok := eng.Book(ticker)
		if !ok {
			continue
		}
		if err := st.Save(b.Snapshot()); err != nil {
			log.Error().Err(err).Str("ticker", ticker).Msg("failed to persist snapshot")
		}
	}
}
