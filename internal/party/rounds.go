package party

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/party-server/internal/archive"
	"github.com/robalobadob/wordle/apps/party-server/internal/game"
	"github.com/robalobadob/wordle/apps/party-server/internal/store"
)

// roundEnd carries what happens after a round-ending Update commits.
type roundEnd struct {
	roomID string
	round  int
	result archive.RoundResult
}

// nextRound moves the room to a new choosing phase, or to end when nobody
// is left to choose.
func (m *Machine) nextRound(tx *store.Tx) {
	r := tx.Room
	if id, ok := r.Chooser.Get(); ok {
		r.PastChoosers[id] = true
	}
	tx.EachPlayer(func(p *game.Player) { p.StartRound() })
	r.CurrentAnswer = ""
	r.SpeedBonusWinner = game.None[string]()
	r.Round++

	next := game.None[game.Player]()
	if len(r.Roster) >= game.MinPlayersToStart {
		next = tx.PickRandomChooser()
	}
	if c, ok := next.Get(); ok {
		r.Status = game.StatusChoosing
		r.Chooser = game.Some(c.ID)
		r.RoundStartPlayers = len(r.Roster)
		return
	}
	r.Status = game.StatusEnd
	r.Chooser = game.None[string]()
}

// endRound marks the round finished. The answer stays visible until the advance.
func (m *Machine) endRound(tx *store.Tx, chooser string) *roundEnd {
	r := tx.Room
	r.Status = game.StatusRoundEnd

	res := archive.RoundResult{
		RoomID:  r.ID,
		Round:   r.Round,
		Chooser: chooser,
		Answer:  r.CurrentAnswer,
	}
	for _, p := range tx.Players() {
		res.Players = append(res.Players, archive.PlayerResult{
			Name:    p.Name,
			Guesses: len(p.GuessResultHistory),
			Solved:  solved(p),
			Score:   p.Score,
		})
	}
	return &roundEnd{roomID: r.ID, round: r.Round, result: res}
}

// afterRoundEnd archives the round and schedules the advance. No locks are held.
func (m *Machine) afterRoundEnd(ctx context.Context, e *roundEnd) {
	if e == nil {
		return
	}
	if err := m.archive.RecordRound(ctx, e.result); err != nil {
		log.Error().Err(err).Str("room", e.roomID).Int("round", e.round).Msg("archive round failed")
	}
	log.Info().Str("room", e.roomID).Int("round", e.round).Msg("round ended")
	m.afterFunc(m.grace, func() {
		m.advanceRound(context.Background(), e.roomID, e.round)
	})
}

// advanceRound starts the round after `round` if the room is still showing it.
// Stale or repeated triggers do nothing.
func (m *Machine) advanceRound(ctx context.Context, roomID string, round int) {
	err := m.store.Update(ctx, roomID, func(tx *store.Tx) error {
		if tx.Room.Round != round || tx.Room.Status != game.StatusRoundEnd {
			return errSkip
		}
		m.nextRound(tx)
		return nil
	})
	switch {
	case errors.Is(err, errSkip), errors.Is(err, store.ErrRoomNotFound):
		log.Debug().Str("room", roomID).Int("round", round).Msg("stale round advance")
		return
	case err != nil:
		log.Error().Err(err).Str("room", roomID).Msg("round advance failed")
		return
	}
	m.broadcastState(ctx, roomID)
}

// roundOver reports whether every non-chooser has finished.
func roundOver(tx *store.Tx) bool {
	for _, p := range tx.Players() {
		if !tx.Room.IsChooser(p.ID) && p.Status != game.PlayerFinished {
			return false
		}
	}
	return true
}

// solvedCount is the number of players who already solved this round.
func solvedCount(tx *store.Tx) int {
	n := 0
	for _, p := range tx.Players() {
		if solved(p) {
			n++
		}
	}
	return n
}

func solved(p game.Player) bool {
	h := p.GuessResultHistory
	return len(h) > 0 && h[len(h)-1].AllHit()
}

func chooserName(tx *store.Tx) string {
	id, ok := tx.Room.Chooser.Get()
	if !ok {
		return ""
	}
	p, _ := tx.Player(id)
	return p.Name
}
