// internal/party/party.go
//
// Game state machine for party rooms.
// Responsibilities:
//   - Handling every inbound player action (create/join room, names, begin, choose,
//     guess, start over, disconnect) against the room store.
//   - Pushing authoritative room snapshots through the Gateway after each change.
//   - Scheduling the delayed round advance after a round ends.
//   - Handing finished rounds to the Archiver.
//
// Every mutation of a room runs inside store.Update, so a room is only ever seen
// before or after an action, never halfway through one.

package party

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/party-server/internal/archive"
	"github.com/robalobadob/wordle/apps/party-server/internal/store"
	"github.com/robalobadob/wordle/apps/party-server/internal/words"
)

// ErrInvariantViolation means the bookkeeping is broken, e.g. a guess arrived for a
// player the store has never heard of. Callers should drop the connection.
var ErrInvariantViolation = errors.New("party: invariant violation")

// DefaultRoundGrace is how long a finished round stays on screen.
const DefaultRoundGrace = 3 * time.Second

// Gateway delivers events to connected players.
// Implementations must not block.
type Gateway interface {
	Subscribe(roomID, playerID string)
	Unsubscribe(roomID, playerID string)
	Broadcast(roomID, event string, payload any)
	Send(playerID, event string, payload any)
}

// Archiver stores finished rounds.
type Archiver interface {
	RecordRound(ctx context.Context, r archive.RoundResult) error
}

// JoinResponse is the answer to request-join-game.
type JoinResponse string

const (
	JoinOK           JoinResponse = "OK"
	JoinDoesNotExist JoinResponse = "DNE"
	JoinRoomFull     JoinResponse = "MAX"
)

// NameResponse is the answer to declare-name.
type NameResponse string

const (
	NameOK        NameResponse = "OK"
	NameEmpty     NameResponse = "EMPTY"
	NameDuplicate NameResponse = "DUP"
)

// NewGameResponse is the answer to request-new-game.
type NewGameResponse struct {
	RoomsAvailable bool   `json:"roomsAvailable"`
	RoomID         string `json:"roomId,omitempty"`
}

// Machine drives every room. It is safe for concurrent use.
type Machine struct {
	store   store.Store
	answers words.Validator
	guesses words.Validator
	gw      Gateway
	scoring Scoring
	archive Archiver

	grace     time.Duration
	afterFunc func(d time.Duration, fn func())

	feeds sync.Map // roomID -> *feed
}

// feed orders snapshot broadcasts for one room. Room versions are store-wide,
// so a feed outliving its room never holds back a later room with the same code.
type feed struct {
	mu      sync.Mutex
	version int
}

type Option func(*Machine)

// WithScoring replaces the default points table.
func WithScoring(s Scoring) Option { return func(m *Machine) { m.scoring = s } }

// WithArchiver stores finished rounds.
func WithArchiver(a Archiver) Option { return func(m *Machine) { m.archive = a } }

// WithRoundGrace sets the delay between round end and the next round.
func WithRoundGrace(d time.Duration) Option { return func(m *Machine) { m.grace = d } }

// WithAfterFunc replaces time.AfterFunc for the round-advance timer.
func WithAfterFunc(fn func(d time.Duration, f func())) Option {
	return func(m *Machine) { m.afterFunc = fn }
}

// New wires a Machine. answers gates chosen words; guesses gates submitted guesses.
func New(st store.Store, answers, guesses words.Validator, gw Gateway, opts ...Option) *Machine {
	m := &Machine{
		store:   st,
		answers: answers,
		guesses: guesses,
		gw:      gw,
		scoring: DefaultScoring(),
		archive: archive.Nop{},
		grace:   DefaultRoundGrace,
		afterFunc: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// broadcastState pushes the room's current snapshot to its subscribers and
// reports whether it did. Snapshots no newer than one already sent are dropped.
func (m *Machine) broadcastState(ctx context.Context, roomID string) bool {
	snap, err := m.store.Snapshot(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrRoomNotFound) {
			m.feeds.Delete(roomID)
			return false
		}
		log.Error().Err(err).Str("room", roomID).Msg("snapshot failed")
		return false
	}

	v, _ := m.feeds.LoadOrStore(roomID, &feed{})
	f := v.(*feed)
	f.mu.Lock()
	sent := snap.Version > f.version
	if sent {
		f.version = snap.Version
		m.gw.Broadcast(roomID, EventUpdateGameState, snap)
	}
	f.mu.Unlock()

	// The room may have closed after the snapshot was taken, in which case the
	// closing broadcast already dropped its feed and f is orphaned.
	if _, err := m.store.GetRoom(ctx, roomID); errors.Is(err, store.ErrRoomNotFound) {
		m.feeds.CompareAndDelete(roomID, f)
	}
	return sent
}

// sendState pushes the room's current snapshot to one player regardless of
// what the room feed has already delivered.
func (m *Machine) sendState(ctx context.Context, roomID, playerID string) {
	snap, err := m.store.Snapshot(ctx, roomID)
	if err != nil {
		if !errors.Is(err, store.ErrRoomNotFound) {
			log.Error().Err(err).Str("room", roomID).Msg("snapshot failed")
		}
		return
	}
	m.gw.Send(playerID, EventUpdateGameState, snap)
}

// roomOf returns the room a player is in, or "" when idle.
func (m *Machine) roomOf(ctx context.Context, playerID string) (string, error) {
	p, err := m.store.GetPlayer(ctx, playerID)
	if err != nil {
		return "", err
	}
	return p.RoomID.OrElse(""), nil
}
