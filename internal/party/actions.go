package party

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/party-server/internal/game"
	"github.com/robalobadob/wordle/apps/party-server/internal/store"
)

// errSkip aborts an Update without changing anything; callers treat it as a no-op.
var errSkip = errors.New("party: nothing to do")

// Connect registers a freshly connected player.
func (m *Machine) Connect(ctx context.Context, playerID string) error {
	if _, err := m.store.CreatePlayer(ctx, playerID); err != nil {
		return fmt.Errorf("connect %s: %w", playerID, err)
	}
	log.Debug().Str("player", playerID).Msg("player connected")
	return nil
}

// CreateRoom opens a new room with the caller as leader.
// A player already in a room leaves it first.
func (m *Machine) CreateRoom(ctx context.Context, playerID string) (NewGameResponse, error) {
	if err := m.leaveCurrentRoom(ctx, playerID); err != nil {
		return NewGameResponse{}, err
	}

	roomID, err := m.store.CreateRoom(ctx, playerID)
	if errors.Is(err, store.ErrNoRoomsAvailable) {
		log.Warn().Str("player", playerID).Msg("no rooms available")
		return NewGameResponse{RoomsAvailable: false}, nil
	}
	if err != nil {
		return NewGameResponse{}, fmt.Errorf("create room: %w", err)
	}

	m.gw.Subscribe(roomID, playerID)
	log.Info().Str("room", roomID).Str("player", playerID).Msg("room created")
	return NewGameResponse{RoomsAvailable: true, RoomID: roomID}, nil
}

// JoinRoom adds the caller to an existing room.
func (m *Machine) JoinRoom(ctx context.Context, playerID, roomID string) (JoinResponse, error) {
	roomID = strings.ToUpper(strings.TrimSpace(roomID))

	current, err := m.roomOf(ctx, playerID)
	if err != nil {
		return "", err
	}
	if current != "" && current == roomID {
		m.gw.Subscribe(roomID, playerID)
		m.sendState(ctx, roomID, playerID)
		return JoinOK, nil
	}

	r, err := m.store.GetRoom(ctx, roomID)
	if errors.Is(err, store.ErrRoomNotFound) {
		return JoinDoesNotExist, nil
	}
	if err != nil {
		return "", err
	}
	if len(r.Roster) >= game.MaxPlayers {
		return JoinRoomFull, nil
	}

	if current != "" {
		if err := m.leaveCurrentRoom(ctx, playerID); err != nil {
			return "", err
		}
	}

	switch err := m.store.AddPlayerToRoom(ctx, playerID, roomID); {
	case errors.Is(err, store.ErrRoomNotFound):
		m.returnTo(ctx, playerID, current)
		return JoinDoesNotExist, nil
	case errors.Is(err, store.ErrRoomFull):
		m.returnTo(ctx, playerID, current)
		return JoinRoomFull, nil
	case err != nil:
		return "", fmt.Errorf("join %s: %w", roomID, err)
	}

	m.enter(ctx, playerID, roomID)
	log.Info().Str("room", roomID).Str("player", playerID).Msg("player joined")
	return JoinOK, nil
}

// enter subscribes a player who was just added to a room and makes sure they
// receive its state, either through the room broadcast or directly.
func (m *Machine) enter(ctx context.Context, playerID, roomID string) {
	m.gw.Subscribe(roomID, playerID)
	if !m.broadcastState(ctx, roomID) {
		m.sendState(ctx, roomID, playerID)
	}
}

// returnTo puts a player back into the room they left for a join that then
// failed. A room that closed in the meantime leaves them idle.
func (m *Machine) returnTo(ctx context.Context, playerID, roomID string) {
	if roomID == "" {
		return
	}
	if err := m.store.AddPlayerToRoom(ctx, playerID, roomID); err != nil {
		log.Warn().Err(err).Str("room", roomID).Str("player", playerID).Msg("could not return player to previous room")
		return
	}
	m.enter(ctx, playerID, roomID)
}

// DeclareName sets the caller's display name. Names are unique within a room.
func (m *Machine) DeclareName(ctx context.Context, playerID, name string) (NameResponse, error) {
	if strings.TrimSpace(name) == "" {
		return NameEmpty, nil
	}

	roomID, err := m.roomOf(ctx, playerID)
	if err != nil {
		return "", err
	}
	if roomID == "" {
		p, err := m.store.GetPlayer(ctx, playerID)
		if err != nil {
			return "", err
		}
		p.Name = name
		return NameOK, m.store.UpdatePlayer(ctx, p)
	}

	err = m.store.Update(ctx, roomID, func(tx *store.Tx) error {
		me, ok := tx.Player(playerID)
		if !ok {
			return store.ErrPlayerNotFound
		}
		for _, p := range tx.Players() {
			if p.ID != playerID && p.Name == name {
				return errSkip
			}
		}
		me.Name = name
		return tx.SetPlayer(me)
	})
	if errors.Is(err, errSkip) {
		return NameDuplicate, nil
	}
	if err != nil {
		return "", err
	}

	m.broadcastState(ctx, roomID)
	return NameOK, nil
}

// BeginGame starts the first round. Only the leader of a ready lobby may do this.
func (m *Machine) BeginGame(ctx context.Context, playerID string) error {
	roomID, err := m.roomOf(ctx, playerID)
	if err != nil || roomID == "" {
		return err
	}

	err = m.store.Update(ctx, roomID, func(tx *store.Tx) error {
		if tx.Room.Leader != playerID || !tx.Room.CanStart() {
			return errSkip
		}
		m.nextRound(tx)
		return nil
	})
	if errors.Is(err, errSkip) {
		log.Debug().Str("room", roomID).Str("player", playerID).Msg("begin-game ignored")
		return nil
	}
	if err != nil {
		return err
	}

	m.gw.Broadcast(roomID, EventBeginGame, nil)
	m.broadcastState(ctx, roomID)
	log.Info().Str("room", roomID).Msg("game started")
	return nil
}

// CheckChosenWordValid reports whether word may be picked as an answer.
func (m *Machine) CheckChosenWordValid(word string) bool {
	return m.answers.IsValid(word)
}

// ChooseWord sets the round's answer. Invalid or out-of-turn choices are dropped.
func (m *Machine) ChooseWord(ctx context.Context, playerID, word string) error {
	if !m.answers.IsValid(word) {
		log.Warn().Str("player", playerID).Str("word", word).Msg("invalid chosen word ignored")
		return nil
	}
	roomID, err := m.roomOf(ctx, playerID)
	if err != nil || roomID == "" {
		return err
	}

	var ended *roundEnd
	err = m.store.Update(ctx, roomID, func(tx *store.Tx) error {
		r := tx.Room
		if r.Status != game.StatusChoosing || !r.IsChooser(playerID) {
			return errSkip
		}
		r.Status = game.StatusPlaying
		r.CurrentAnswer = game.Normalize(word)
		// everyone else may have left while the word was being picked
		if roundOver(tx) {
			ended = m.endRound(tx, chooserName(tx))
		}
		return nil
	})
	if errors.Is(err, errSkip) {
		log.Warn().Str("room", roomID).Str("player", playerID).Msg("choose-word ignored")
		return nil
	}
	if err != nil {
		return err
	}

	m.broadcastState(ctx, roomID)
	m.afterRoundEnd(ctx, ended)
	return nil
}

// SubmitGuess evaluates a guess for the caller and applies scoring.
func (m *Machine) SubmitGuess(ctx context.Context, playerID, word string) (game.Evaluation, error) {
	p, err := m.store.GetPlayer(ctx, playerID)
	if errors.Is(err, store.ErrPlayerNotFound) {
		return game.Rejected(), fmt.Errorf("%w: guess from unknown player %s", ErrInvariantViolation, playerID)
	}
	if err != nil {
		return game.Rejected(), err
	}

	roomID, inRoom := p.RoomID.Get()
	if !inRoom || !m.guesses.IsValid(word) {
		return m.reject(playerID), nil
	}

	var (
		ev    game.Evaluation
		ended *roundEnd
	)
	err = m.store.Update(ctx, roomID, func(tx *store.Tx) error {
		r := tx.Room
		me, ok := tx.Player(playerID)
		if !ok {
			return errSkip
		}
		if r.Status != game.StatusPlaying || r.IsChooser(playerID) || me.Status == game.PlayerFinished {
			return errSkip
		}

		ev = game.Evaluate(word, r.CurrentAnswer)
		me.GuessResultHistory = append(me.GuessResultHistory, *ev.ResultByPosition)
		guesses := len(me.GuessResultHistory)

		if ev.Correct {
			order := 1 + solvedCount(tx)
			me.Score += m.scoring.SolverReward(*r, order, guesses)
			me.Status = game.PlayerFinished
			if order == 1 {
				r.SpeedBonusWinner = game.Some(playerID)
			}
		} else {
			if guesses >= game.MaxNumGuesses {
				me.Status = game.PlayerFinished
			}
			if chooserID, ok := r.Chooser.Get(); ok {
				if c, ok := tx.Player(chooserID); ok {
					c.Score += m.scoring.ChooserReward(*r)
					if err := tx.SetPlayer(c); err != nil {
						return err
					}
				}
			}
		}
		if err := tx.SetPlayer(me); err != nil {
			return err
		}

		if roundOver(tx) {
			ended = m.endRound(tx, chooserName(tx))
		}
		return nil
	})
	if errors.Is(err, errSkip) {
		return m.reject(playerID), nil
	}
	if errors.Is(err, store.ErrRoomNotFound) {
		return m.reject(playerID), nil
	}
	if err != nil {
		return game.Rejected(), err
	}

	m.gw.Send(playerID, EventEvaluation, ev)
	m.broadcastState(ctx, roomID)
	m.afterRoundEnd(ctx, ended)
	return ev, nil
}

func (m *Machine) reject(playerID string) game.Evaluation {
	ev := game.Rejected()
	log.Debug().Str("player", playerID).Msg("guess rejected")
	m.gw.Send(playerID, EventEvaluation, ev)
	return ev
}

// StartOver begins a new game in the same room: scores reset, everyone may choose again.
func (m *Machine) StartOver(ctx context.Context, playerID string) error {
	roomID, err := m.roomOf(ctx, playerID)
	if err != nil || roomID == "" {
		return err
	}

	err = m.store.Update(ctx, roomID, func(tx *store.Tx) error {
		r := tx.Room
		if r.Status == game.StatusLobby {
			return errSkip
		}
		tx.EachPlayer(func(p *game.Player) { p.Score = 0 })
		r.PastChoosers = map[string]bool{}
		r.Chooser = game.None[string]()
		m.nextRound(tx)
		return nil
	})
	if errors.Is(err, errSkip) {
		return nil
	}
	if err != nil {
		return err
	}

	m.broadcastState(ctx, roomID)
	log.Info().Str("room", roomID).Str("player", playerID).Msg("game restarted")
	return nil
}

// RequestValidWord suggests a random answer word.
func (m *Machine) RequestValidWord() string {
	return m.answers.RandomValid()
}

// SayHello is a liveness check; it only logs.
func (m *Machine) SayHello(playerID string) {
	log.Debug().Str("player", playerID).Msg("say-hello")
}

// Disconnect removes the player everywhere. Calling it twice is harmless.
func (m *Machine) Disconnect(ctx context.Context, playerID string) error {
	roomID, err := m.roomOf(ctx, playerID)
	if errors.Is(err, store.ErrPlayerNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if roomID != "" {
		if err := m.leave(ctx, playerID, roomID); err != nil {
			return err
		}
	}
	if _, err := m.store.DeletePlayer(ctx, playerID); err != nil && !errors.Is(err, store.ErrPlayerNotFound) {
		return err
	}
	log.Debug().Str("player", playerID).Msg("player disconnected")
	return nil
}

// leaveCurrentRoom takes the player out of their room but keeps them connected.
// The declared name goes with them.
func (m *Machine) leaveCurrentRoom(ctx context.Context, playerID string) error {
	me, err := m.store.GetPlayer(ctx, playerID)
	if err != nil {
		return err
	}
	roomID := me.RoomID.OrElse("")
	if roomID == "" {
		return nil
	}
	if err := m.leave(ctx, playerID, roomID); err != nil {
		return err
	}
	p, err := m.store.CreatePlayer(ctx, playerID)
	if errors.Is(err, store.ErrPlayerExists) {
		return nil
	}
	if err != nil {
		return err
	}
	if me.Name == "" {
		return nil
	}
	p.Name = me.Name
	return m.store.UpdatePlayer(ctx, p)
}

// leave removes a player from a room, promoting a new leader and ending the
// round when the departure makes it unplayable.
func (m *Machine) leave(ctx context.Context, playerID, roomID string) error {
	var ended *roundEnd
	err := m.store.Update(ctx, roomID, func(tx *store.Tx) error {
		r := tx.Room
		wasChooser := r.IsChooser(playerID)
		chooser := chooserName(tx)
		if !tx.RemovePlayer(playerID) {
			return errSkip
		}
		if len(r.Roster) == 0 {
			return nil
		}

		if r.Leader == playerID {
			r.Leader = r.Roster[0]
			tx.EachPlayer(func(p *game.Player) { p.IsLeader = p.ID == r.Leader })
		}

		switch r.Status {
		case game.StatusChoosing:
			if wasChooser {
				m.nextRound(tx)
			}
		case game.StatusPlaying:
			if wasChooser || roundOver(tx) {
				ended = m.endRound(tx, chooser)
			}
		}
		return nil
	})
	m.gw.Unsubscribe(roomID, playerID)
	if errors.Is(err, errSkip) || errors.Is(err, store.ErrRoomNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	log.Info().Str("room", roomID).Str("player", playerID).Msg("player left")
	m.broadcastState(ctx, roomID)
	m.afterRoundEnd(ctx, ended)
	return nil
}
