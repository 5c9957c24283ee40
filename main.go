package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/party-server/internal/archive"
	"github.com/robalobadob/wordle/apps/party-server/internal/config"
	"github.com/robalobadob/wordle/apps/party-server/internal/httpserver"
	"github.com/robalobadob/wordle/apps/party-server/internal/party"
	"github.com/robalobadob/wordle/apps/party-server/internal/realtime"
	"github.com/robalobadob/wordle/apps/party-server/internal/session"
	"github.com/robalobadob/wordle/apps/party-server/internal/store"
	"github.com/robalobadob/wordle/apps/party-server/internal/words"
)

// results is what both the machine and the HTTP layer need from the archive.
type results interface {
	party.Archiver
	httpserver.Archive
	Close() error
}

func main() {
	cfg := config.Load()
	zerolog.SetGlobalLevel(cfg.LogLevel)

	lists, err := words.Load(words.Sources{AnswersFile: cfg.AnswersFile, AllowedFile: cfg.AllowedFile})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load word lists")
	}
	a, g := lists.Stats()
	log.Info().Int("answers", a).Int("guesses", g).Msg("word lists loaded")

	var arch results = archive.Nop{}
	if cfg.ArchiveEnabled() {
		db, err := archive.Open(cfg.DBPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open archive")
		}
		arch = db
	}
	defer arch.Close()

	sessions, err := session.NewIssuer(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("session issuer")
	}

	mem := store.NewMemoryStore(store.WithMaxRooms(cfg.MaxRooms))
	hub := realtime.NewHub()
	machine := party.New(mem, lists.Answers, lists.Guesses, hub,
		party.WithArchiver(arch),
		party.WithRoundGrace(cfg.RoundGrace),
		party.WithScoring(party.PointsScoring{
			Chooser:    cfg.ChooserPoints,
			Solve:      cfg.SolvePoints,
			SpeedBonus: cfg.SpeedBonusPoints,
		}),
	)

	srv := httpserver.New(httpserver.Deps{
		Store:        mem,
		Words:        lists,
		Archive:      arch,
		Sessions:     sessions,
		WS:           realtime.NewHandler(hub, machine, sessions, realtime.Config{AllowedOrigin: cfg.ClientOrigin}),
		ClientOrigin: cfg.ClientOrigin,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("port", cfg.Port).Msg("starting party-server")
	if err := srv.Run(ctx, ":"+cfg.Port); err != nil {
		log.Error().Err(err).Msg("server exited")
		stop()
		arch.Close()
		os.Exit(1)
	}
}
