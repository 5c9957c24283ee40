// internal/httpserver/routes.go
//
// Non-realtime routes:
//   - GET /words/random       → a random choosable word
//   - GET /words/check?word=  → whether a word may be chosen / guessed
//   - GET /rooms/{roomID}     → room snapshot, members only (session token)
//   - GET /leaderboard        → best archived scores

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/party-server/internal/game"
	"github.com/robalobadob/wordle/apps/party-server/internal/store"
)

func (s *Server) mountRoutes(r chi.Router) {
	r.Route("/words", func(r chi.Router) {
		r.Get("/random", s.handleRandomWord)
		r.Get("/check", s.handleCheckWord)
	})
	r.With(s.requireSession()).Get("/rooms/{roomID}", s.handleRoom)
	r.Get("/leaderboard", s.handleLeaderboard)
}

func (s *Server) handleRandomWord(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(map[string]string{"word": s.d.Words.Answers.RandomValid()})
}

func (s *Server) handleCheckWord(w http.ResponseWriter, r *http.Request) {
	word := r.URL.Query().Get("word")
	if strings.TrimSpace(word) == "" {
		writeError(w, http.StatusBadRequest, "missing_word")
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"word":      game.Normalize(word),
		"choosable": s.d.Words.Answers.IsValid(word),
		"guessable": s.d.Words.Guesses.IsValid(word),
	})
}

func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	playerID, _ := r.Context().Value(ctxPlayerKey{}).(string)
	roomID := strings.ToUpper(chi.URLParam(r, "roomID"))

	snap, err := s.d.Store.Snapshot(r.Context(), roomID)
	if errors.Is(err, store.ErrRoomNotFound) {
		writeError(w, http.StatusNotFound, "room_not_found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("room", roomID).Msg("room snapshot")
		writeError(w, http.StatusInternalServerError, "snapshot_failed")
		return
	}

	member := false
	for _, p := range snap.PlayerList {
		if p.ID == playerID {
			member = true
			break
		}
	}
	if !member {
		writeError(w, http.StatusForbidden, "not_a_member")
		return
	}
	_ = json.NewEncoder(w).Encode(snap)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.d.Archive.Leaderboard(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("leaderboard")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	_ = json.NewEncoder(w).Encode(rows)
}

// ---------------------------- session middleware ---------------------------

// ctxPlayerKey is the context key for the authenticated player ID.
type ctxPlayerKey struct{}

// requireSession enforces a valid session token and injects the player ID.
func (s *Server) requireSession() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.d.Sessions == nil {
				writeError(w, http.StatusUnauthorized, "sessions_disabled")
				return
			}
			tok := bearer(r)
			if tok == "" {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			playerID, err := s.d.Sessions.Parse(tok)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid token")
				return
			}
			ctx := context.WithValue(r.Context(), ctxPlayerKey{}, playerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearer extracts a token from "Authorization: Bearer <token>".
func bearer(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	return ""
}
