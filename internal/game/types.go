// internal/game/types.go
//
// Core type definitions for the party game.
// Defines:
//   - Result: per-position / per-letter outcome of a guess (hit/has/miss).
//   - Player: a connected participant and their per-round progress.
//   - Room: the shared state of one game room.
//   - Snapshot: the authoritative view broadcast to room members.

package game

const (
	// WordLength is the number of letters in every answer and guess.
	WordLength = 5
	// MaxPlayers caps a room's roster.
	MaxPlayers = 8
	// MaxNumGuesses is the number of guesses a player gets per round.
	MaxNumGuesses = 6
	// MinPlayersToStart is the roster size required to begin a game.
	MinPlayersToStart = 2
)

// Result represents the evaluation of a single letter in a guess.
//   - "hit":  letter is in the answer at this position.
//   - "has":  letter is in the answer at another position.
//   - "miss": letter is not (or no longer) available in the answer.
type Result string

const (
	ResultHit  Result = "hit"
	ResultHas  Result = "has"
	ResultMiss Result = "miss"
)

// Row is one evaluated guess, position by position.
type Row [WordLength]Result

// PlayerStatus is the round status of a single player.
type PlayerStatus string

const (
	PlayerPlaying  PlayerStatus = "playing"
	PlayerFinished PlayerStatus = "finished"
)

// Status is the phase of a room.
type Status string

const (
	StatusLobby    Status = "lobby"
	StatusChoosing Status = "choosing"
	StatusPlaying  Status = "playing"
	StatusRoundEnd Status = "round-end"
	StatusEnd      Status = "end"
)

// Player holds the state of a single connected participant.
type Player struct {
	ID                 string         `json:"socketId"`
	RoomID             Option[string] `json:"roomId"`
	Name               string         `json:"name"`
	IsLeader           bool           `json:"isLeader"`
	GuessResultHistory []Row          `json:"guessResultHistory"`
	Score              int            `json:"score"`
	Status             PlayerStatus   `json:"status"`
}

// NewPlayer returns a fresh, room-less player.
func NewPlayer(id string) Player {
	return Player{
		ID:                 id,
		RoomID:             None[string](),
		GuessResultHistory: []Row{},
		Status:             PlayerPlaying,
	}
}

// Clone returns a deep copy of p.
func (p Player) Clone() Player {
	p.GuessResultHistory = append([]Row(nil), p.GuessResultHistory...)
	if p.GuessResultHistory == nil {
		p.GuessResultHistory = []Row{}
	}
	return p
}

// StartRound clears per-round progress.
func (p *Player) StartRound() {
	p.Status = PlayerPlaying
	p.GuessResultHistory = []Row{}
}

// Room holds the state of one game room. Players are referenced by ID.
type Room struct {
	ID                string
	Leader            string
	Roster            []string
	Status            Status
	Chooser           Option[string]
	CurrentAnswer     string
	RoundStartPlayers int
	SpeedBonusWinner  Option[string]
	Round             int
	PastChoosers      map[string]bool
	Version           int
}

// NewRoom creates a lobby room owned by leaderID.
func NewRoom(id, leaderID string) Room {
	return Room{
		ID:               id,
		Leader:           leaderID,
		Roster:           []string{leaderID},
		Status:           StatusLobby,
		Chooser:          None[string](),
		SpeedBonusWinner: None[string](),
		PastChoosers:     map[string]bool{},
	}
}

// Clone returns a deep copy of r.
func (r Room) Clone() Room {
	r.Roster = append([]string(nil), r.Roster...)
	past := make(map[string]bool, len(r.PastChoosers))
	for id := range r.PastChoosers {
		past[id] = true
	}
	r.PastChoosers = past
	return r
}

// Has reports whether playerID is on the roster.
func (r Room) Has(playerID string) bool {
	for _, id := range r.Roster {
		if id == playerID {
			return true
		}
	}
	return false
}

// IsChooser reports whether playerID is the current chooser.
func (r Room) IsChooser(playerID string) bool {
	id, ok := r.Chooser.Get()
	return ok && id == playerID
}

// CanStart reports whether a lobby room has enough players to begin.
func (r Room) CanStart() bool {
	return r.Status == StatusLobby && len(r.Roster) >= MinPlayersToStart
}

// Snapshot is the full room state pushed to clients on update-game-state.
type Snapshot struct {
	RoomID            string         `json:"roomId"`
	Leader            Option[Player] `json:"leader"`
	PlayerList        []Player       `json:"playerList"`
	Status            Status         `json:"status"`
	Chooser           Option[Player] `json:"chooser"`
	CurrentAnswer     string         `json:"currentAnswer"`
	RoundStartPlayers int            `json:"roundStartPlayers"`
	SpeedBonusWinner  Option[Player] `json:"speedBonusWinner"`
	Round             int            `json:"round"`
	Version           int            `json:"version"`
}

// NewSnapshot expands r with the given player records (keyed by ID).
func NewSnapshot(r Room, players map[string]Player) Snapshot {
	lookup := func(ref Option[string]) Option[Player] {
		if id, ok := ref.Get(); ok {
			if p, ok := players[id]; ok {
				return Some(p.Clone())
			}
		}
		return None[Player]()
	}
	list := make([]Player, 0, len(r.Roster))
	for _, id := range r.Roster {
		if p, ok := players[id]; ok {
			list = append(list, p.Clone())
		}
	}
	return Snapshot{
		RoomID:            r.ID,
		Leader:            lookup(Some(r.Leader)),
		PlayerList:        list,
		Status:            r.Status,
		Chooser:           lookup(r.Chooser),
		CurrentAnswer:     r.CurrentAnswer,
		RoundStartPlayers: r.RoundStartPlayers,
		SpeedBonusWinner:  lookup(r.SpeedBonusWinner),
		Round:             r.Round,
		Version:           r.Version,
	}
}
