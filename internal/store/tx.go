package store

import "github.com/robalobadob/wordle/apps/party-server/internal/game"

// Tx is a working copy of one room and its players, handed to Update callbacks.
// Room may be modified directly; players are modified through SetPlayer/EachPlayer.
type Tx struct {
	Room *game.Room

	players map[string]game.Player
	removed map[string]bool
	store   *memory
}

// Player returns a roster member.
func (tx *Tx) Player(id string) (game.Player, bool) {
	p, ok := tx.players[id]
	if !ok {
		return game.Player{}, false
	}
	return p.Clone(), true
}

// SetPlayer writes back a roster member. Room membership is not changed.
func (tx *Tx) SetPlayer(p game.Player) error {
	cur, ok := tx.players[p.ID]
	if !ok {
		return ErrPlayerNotFound
	}
	p = p.Clone()
	p.RoomID = cur.RoomID
	tx.players[p.ID] = p
	return nil
}

// Players returns the roster in join order.
func (tx *Tx) Players() []game.Player {
	out := make([]game.Player, 0, len(tx.Room.Roster))
	for _, id := range tx.Room.Roster {
		if p, ok := tx.players[id]; ok {
			out = append(out, p.Clone())
		}
	}
	return out
}

// EachPlayer applies fn to every roster member.
func (tx *Tx) EachPlayer(fn func(p *game.Player)) {
	for _, id := range tx.Room.Roster {
		p, ok := tx.players[id]
		if !ok {
			continue
		}
		fn(&p)
		tx.players[id] = p
	}
}

// RemovePlayer drops a player from the roster and from the store on commit.
// The room itself is deleted on commit if its roster ends up empty.
func (tx *Tx) RemovePlayer(id string) bool {
	if _, ok := tx.players[id]; !ok {
		return false
	}
	delete(tx.players, id)
	roster := tx.Room.Roster[:0:0]
	for _, rid := range tx.Room.Roster {
		if rid != id {
			roster = append(roster, rid)
		}
	}
	tx.Room.Roster = roster
	tx.removed[id] = true
	return true
}

// PickRandomChooser returns a random eligible chooser from the working copy.
func (tx *Tx) PickRandomChooser() game.Option[game.Player] {
	return tx.store.pickChooser(*tx.Room, tx.players)
}

// Snapshot expands the working copy.
func (tx *Tx) Snapshot() game.Snapshot {
	return game.NewSnapshot(*tx.Room, tx.players)
}
