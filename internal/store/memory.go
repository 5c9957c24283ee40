// internal/store/memory.go
//
// In-memory room store.
// Holds every connected player and every active room for the lifetime of the process.
//
// Characteristics:
//   - Each room has its own mutex; operations on different rooms never block each other.
//   - The store-level RWMutex only guards the room/player indices. It is never held
//     while waiting for a room mutex (lock order is always room → store).
//   - Reads return deep copies; Update runs read-modify-write sequences on a private
//     copy and commits it atomically.
//   - A room is deleted as soon as its roster becomes empty.
//   - Room versions come from one store-wide counter, so a reused room code
//     never repeats a version seen by an earlier room with that code.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"crypto/rand"
	"math/big"
	mrand "math/rand/v2"
	"sync"
	"sync/atomic"

	"github.com/robalobadob/wordle/apps/party-server/internal/game"
)

const (
	defaultMaxRooms = 1000

	// RoomCodeLength is the length of generated room codes.
	RoomCodeLength = 4
	// RoomCodeChars excludes ambiguous characters (0/O, 1/I).
	RoomCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	codeAttempts  = 64
	lookupRetries = 8
)

// Store defines the room/player state operations the game engine relies on.
//
// UpdateRoom, AddPlayerToRoom and PickRandomChooser are the non-transactional
// API: each call locks the room on its own. Sequences that read a room and then
// write it back go through Update, whose Tx offers the same operations against
// one locked copy.
type Store interface {
	// CreatePlayer registers a connected player that has not joined a room.
	CreatePlayer(ctx context.Context, id string) (game.Player, error)
	// GetPlayer returns a copy of a player.
	GetPlayer(ctx context.Context, id string) (game.Player, error)
	// UpdatePlayer overwrites a player's fields; room membership is not changed.
	UpdatePlayer(ctx context.Context, p game.Player) error
	// DeletePlayer removes a player from the store and from its room's roster.
	DeletePlayer(ctx context.Context, id string) (game.Player, error)

	// CreateRoom allocates a room with ownerID as leader and sole player.
	CreateRoom(ctx context.Context, ownerID string) (string, error)
	// GetRoom returns a copy of a room.
	GetRoom(ctx context.Context, id string) (game.Room, error)
	// UpdateRoom overwrites a room's fields; the stored roster is kept.
	UpdateRoom(ctx context.Context, r game.Room) error
	// AddPlayerToRoom moves a room-less player onto a room's roster.
	AddPlayerToRoom(ctx context.Context, playerID, roomID string) error
	// PickRandomChooser returns a random eligible chooser, if any.
	PickRandomChooser(ctx context.Context, roomID string) (game.Option[game.Player], error)

	// Update runs fn atomically against one room. Changes are committed only
	// when fn returns nil.
	Update(ctx context.Context, roomID string, fn func(tx *Tx) error) error
	// Snapshot returns the room expanded with its players.
	Snapshot(ctx context.Context, roomID string) (game.Snapshot, error)
	// Stats returns counts of active rooms and connected players.
	Stats() (rooms int, players int)
}

type roomSlot struct {
	mu      sync.Mutex
	room    game.Room
	players map[string]game.Player
	closed  bool
}

type memory struct {
	mu    sync.RWMutex
	rooms map[string]*roomSlot
	home  map[string]string      // playerID -> roomID ("" while room-less)
	idle  map[string]game.Player // room-less players

	maxRooms int
	codes    func() string
	versions atomic.Int64

	rngMu sync.Mutex
	rng   *mrand.Rand
}

// Option configures the memory store.
type Option func(*memory)

// WithMaxRooms bounds the number of simultaneously active rooms.
func WithMaxRooms(n int) Option { return func(m *memory) { m.maxRooms = n } }

// WithRand sets the random source used for chooser selection.
func WithRand(r *mrand.Rand) Option { return func(m *memory) { m.rng = r } }

// WithCodeGenerator replaces the room code generator.
func WithCodeGenerator(gen func() string) Option { return func(m *memory) { m.codes = gen } }

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore(opts ...Option) Store {
	m := &memory{
		rooms:    make(map[string]*roomSlot),
		home:     make(map[string]string),
		idle:     make(map[string]game.Player),
		maxRooms: defaultMaxRooms,
		codes:    GenerateRoomCode,
		rng:      mrand.New(mrand.NewPCG(mrand.Uint64(), mrand.Uint64())),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// GenerateRoomCode creates a random room code.
func GenerateRoomCode() string {
	code := make([]byte, RoomCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(RoomCodeChars))))
		if err != nil {
			code[i] = RoomCodeChars[mrand.IntN(len(RoomCodeChars))]
			continue
		}
		code[i] = RoomCodeChars[n.Int64()]
	}
	return string(code)
}

// ------------------------------- players -----------------------------------

func (m *memory) CreatePlayer(ctx context.Context, id string) (game.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.home[id]; ok {
		return game.Player{}, ErrPlayerExists
	}
	p := game.NewPlayer(id)
	m.home[id] = ""
	m.idle[id] = p
	return p.Clone(), nil
}

func (m *memory) GetPlayer(ctx context.Context, id string) (game.Player, error) {
	var out game.Player
	err := m.withPlayer(id, func(p *game.Player) bool {
		out = p.Clone()
		return false
	})
	return out, err
}

func (m *memory) UpdatePlayer(ctx context.Context, p game.Player) error {
	return m.withPlayer(p.ID, func(cur *game.Player) bool {
		roomID := cur.RoomID
		*cur = p.Clone()
		cur.RoomID = roomID
		return true
	})
}

// withPlayer locates a player wherever it lives and runs fn under the lock that
// guards it. fn reports whether it modified the player.
func (m *memory) withPlayer(id string, fn func(p *game.Player) bool) error {
	for i := 0; i < lookupRetries; i++ {
		m.mu.RLock()
		roomID, ok := m.home[id]
		slot := m.rooms[roomID]
		m.mu.RUnlock()
		if !ok {
			return ErrPlayerNotFound
		}

		if roomID == "" {
			m.mu.Lock()
			if r, ok := m.home[id]; ok && r == "" {
				p := m.idle[id]
				if fn(&p) {
					m.idle[id] = p
				}
				m.mu.Unlock()
				return nil
			}
			m.mu.Unlock()
			continue
		}

		if slot == nil {
			continue
		}
		slot.mu.Lock()
		if p, ok := slot.players[id]; ok && !slot.closed {
			if fn(&p) {
				slot.players[id] = p
				slot.room.Version = m.nextVersion()
			}
			slot.mu.Unlock()
			return nil
		}
		slot.mu.Unlock()
	}
	return ErrPlayerNotFound
}

func (m *memory) DeletePlayer(ctx context.Context, id string) (game.Player, error) {
	for i := 0; i < lookupRetries; i++ {
		m.mu.RLock()
		roomID, ok := m.home[id]
		m.mu.RUnlock()
		if !ok {
			return game.Player{}, ErrPlayerNotFound
		}

		if roomID == "" {
			m.mu.Lock()
			if r, ok := m.home[id]; ok && r == "" {
				p := m.idle[id]
				delete(m.idle, id)
				delete(m.home, id)
				m.mu.Unlock()
				return p, nil
			}
			m.mu.Unlock()
			continue
		}

		var removed game.Player
		err := m.Update(ctx, roomID, func(tx *Tx) error {
			p, ok := tx.Player(id)
			if !ok {
				return ErrPlayerNotFound
			}
			removed = p
			tx.RemovePlayer(id)
			return nil
		})
		if err == nil {
			return removed, nil
		}
	}
	return game.Player{}, ErrPlayerNotFound
}

// -------------------------------- rooms ------------------------------------

func (m *memory) CreateRoom(ctx context.Context, ownerID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	roomID, ok := m.home[ownerID]
	if !ok {
		return "", ErrPlayerNotFound
	}
	if roomID != "" {
		return "", ErrAlreadyInRoom
	}
	if len(m.rooms) >= m.maxRooms {
		return "", ErrNoRoomsAvailable
	}

	code := ""
	for i := 0; i < codeAttempts; i++ {
		c := m.codes()
		if _, taken := m.rooms[c]; !taken {
			code = c
			break
		}
	}
	if code == "" {
		return "", ErrNoRoomsAvailable
	}

	owner := m.idle[ownerID]
	owner.RoomID = game.Some(code)
	owner.IsLeader = true
	room := game.NewRoom(code, ownerID)
	room.Version = m.nextVersion()
	m.rooms[code] = &roomSlot{
		room:    room,
		players: map[string]game.Player{ownerID: owner},
	}
	delete(m.idle, ownerID)
	m.home[ownerID] = code
	return code, nil
}

func (m *memory) GetRoom(ctx context.Context, id string) (game.Room, error) {
	slot, err := m.lockRoom(id)
	if err != nil {
		return game.Room{}, err
	}
	defer slot.mu.Unlock()
	return slot.room.Clone(), nil
}

func (m *memory) UpdateRoom(ctx context.Context, r game.Room) error {
	slot, err := m.lockRoom(r.ID)
	if err != nil {
		return err
	}
	defer slot.mu.Unlock()
	roster := slot.room.Roster
	slot.room = r.Clone()
	slot.room.Roster = roster
	slot.room.Version = m.nextVersion()
	return nil
}

func (m *memory) AddPlayerToRoom(ctx context.Context, playerID, roomID string) error {
	slot, err := m.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer slot.mu.Unlock()

	if _, ok := slot.players[playerID]; ok {
		return nil
	}
	if len(slot.room.Roster) >= game.MaxPlayers {
		return ErrRoomFull
	}

	m.mu.Lock()
	current, ok := m.home[playerID]
	if !ok {
		m.mu.Unlock()
		return ErrPlayerNotFound
	}
	if current != "" {
		m.mu.Unlock()
		return ErrAlreadyInRoom
	}
	p := m.idle[playerID]
	delete(m.idle, playerID)
	m.home[playerID] = roomID
	m.mu.Unlock()

	p.RoomID = game.Some(roomID)
	p.IsLeader = false
	slot.players[playerID] = p
	slot.room.Roster = append(slot.room.Roster, playerID)
	slot.room.Version = m.nextVersion()
	return nil
}

func (m *memory) PickRandomChooser(ctx context.Context, roomID string) (game.Option[game.Player], error) {
	slot, err := m.lockRoom(roomID)
	if err != nil {
		return game.None[game.Player](), err
	}
	defer slot.mu.Unlock()
	return m.pickChooser(slot.room, slot.players), nil
}

// pickChooser picks uniformly among roster members that are neither the current
// chooser nor a past chooser.
func (m *memory) pickChooser(r game.Room, players map[string]game.Player) game.Option[game.Player] {
	var eligible []string
	for _, id := range r.Roster {
		if r.IsChooser(id) || r.PastChoosers[id] {
			continue
		}
		eligible = append(eligible, id)
	}
	if len(eligible) == 0 {
		return game.None[game.Player]()
	}
	m.rngMu.Lock()
	n := m.rng.IntN(len(eligible))
	m.rngMu.Unlock()
	return game.Some(players[eligible[n]].Clone())
}

func (m *memory) Snapshot(ctx context.Context, roomID string) (game.Snapshot, error) {
	slot, err := m.lockRoom(roomID)
	if err != nil {
		return game.Snapshot{}, err
	}
	defer slot.mu.Unlock()
	return game.NewSnapshot(slot.room, slot.players), nil
}

func (m *memory) Stats() (rooms int, players int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms), len(m.home)
}

func (m *memory) nextVersion() int { return int(m.versions.Add(1)) }

// lockRoom returns the locked slot for id. Callers must unlock it.
func (m *memory) lockRoom(id string) (*roomSlot, error) {
	m.mu.RLock()
	slot := m.rooms[id]
	m.mu.RUnlock()
	if slot == nil {
		return nil, ErrRoomNotFound
	}
	slot.mu.Lock()
	if slot.closed {
		slot.mu.Unlock()
		return nil, ErrRoomNotFound
	}
	return slot, nil
}

// ----------------------------- transactions --------------------------------

func (m *memory) Update(ctx context.Context, roomID string, fn func(tx *Tx) error) error {
	slot, err := m.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer slot.mu.Unlock()

	room := slot.room.Clone()
	players := make(map[string]game.Player, len(slot.players))
	for id, p := range slot.players {
		players[id] = p.Clone()
	}
	tx := &Tx{Room: &room, players: players, removed: map[string]bool{}, store: m}
	if err := fn(tx); err != nil {
		return err
	}

	room.Version = m.nextVersion()
	slot.room = room
	slot.players = players
	if len(tx.removed) == 0 {
		return nil
	}

	m.mu.Lock()
	for id := range tx.removed {
		if m.home[id] == roomID {
			delete(m.home, id)
		}
	}
	if len(room.Roster) == 0 {
		slot.closed = true
		delete(m.rooms, roomID)
	}
	m.mu.Unlock()
	return nil
}
