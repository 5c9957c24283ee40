package store

import (
	"context"
	"errors"
	"fmt"
	mrand "math/rand/v2"
	"sync"
	"testing"

	"github.com/robalobadob/wordle/apps/party-server/internal/game"
)

func newTestStore(t *testing.T, opts ...Option) Store {
	t.Helper()
	opts = append([]Option{WithRand(mrand.New(mrand.NewPCG(1, 2)))}, opts...)
	return NewMemoryStore(opts...)
}

func mustPlayer(t *testing.T, s Store, id string) {
	t.Helper()
	if _, err := s.CreatePlayer(context.Background(), id); err != nil {
		t.Fatalf("CreatePlayer(%s): %v", id, err)
	}
}

func TestCreateRoomMakesOwnerLeader(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustPlayer(t, s, "p1")

	roomID, err := s.CreateRoom(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(roomID) != RoomCodeLength {
		t.Fatalf("room code %q", roomID)
	}
	r, err := s.GetRoom(ctx, roomID)
	if err != nil {
		t.Fatal(err)
	}
	if r.Leader != "p1" || len(r.Roster) != 1 || r.Status != game.StatusLobby {
		t.Fatalf("unexpected room %+v", r)
	}
	p, err := s.GetPlayer(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if id, ok := p.RoomID.Get(); !ok || id != roomID || !p.IsLeader {
		t.Fatalf("unexpected player %+v", p)
	}

	if _, err := s.CreateRoom(ctx, "p1"); !errors.Is(err, ErrAlreadyInRoom) {
		t.Fatalf("second CreateRoom err = %v", err)
	}
}

func TestCreateRoomExhaustsIDSpace(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, WithMaxRooms(1))
	mustPlayer(t, s, "p1")
	mustPlayer(t, s, "p2")
	if _, err := s.CreateRoom(ctx, "p1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateRoom(ctx, "p2"); !errors.Is(err, ErrNoRoomsAvailable) {
		t.Fatalf("err = %v, want ErrNoRoomsAvailable", err)
	}

	// every generated code collides
	s = newTestStore(t, WithCodeGenerator(func() string { return "AB12" }))
	mustPlayer(t, s, "p1")
	mustPlayer(t, s, "p2")
	if _, err := s.CreateRoom(ctx, "p1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateRoom(ctx, "p2"); !errors.Is(err, ErrNoRoomsAvailable) {
		t.Fatalf("err = %v, want ErrNoRoomsAvailable", err)
	}
}

func TestAddPlayerToRoom(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustPlayer(t, s, "p1")
	mustPlayer(t, s, "p2")
	roomID, _ := s.CreateRoom(ctx, "p1")

	if err := s.AddPlayerToRoom(ctx, "p2", "ZZZZ"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("err = %v, want ErrRoomNotFound", err)
	}
	if err := s.AddPlayerToRoom(ctx, "p2", roomID); err != nil {
		t.Fatal(err)
	}
	// idempotent
	if err := s.AddPlayerToRoom(ctx, "p2", roomID); err != nil {
		t.Fatal(err)
	}
	r, _ := s.GetRoom(ctx, roomID)
	if fmt.Sprint(r.Roster) != "[p1 p2]" {
		t.Fatalf("roster = %v", r.Roster)
	}
}

func TestConcurrentJoinsRespectCapacity(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustPlayer(t, s, "owner")
	roomID, _ := s.CreateRoom(ctx, "owner")

	const joiners = 30
	var wg sync.WaitGroup
	var mu sync.Mutex
	full := 0
	for i := 0; i < joiners; i++ {
		id := fmt.Sprintf("j%d", i)
		mustPlayer(t, s, id)
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.AddPlayerToRoom(ctx, id, roomID)
			if errors.Is(err, ErrRoomFull) {
				mu.Lock()
				full++
				mu.Unlock()
			} else if err != nil {
				t.Errorf("join %s: %v", id, err)
			}
		}()
	}
	wg.Wait()

	r, _ := s.GetRoom(ctx, roomID)
	if len(r.Roster) != game.MaxPlayers {
		t.Fatalf("roster size = %d, want %d", len(r.Roster), game.MaxPlayers)
	}
	if full != joiners-(game.MaxPlayers-1) {
		t.Fatalf("rejected = %d", full)
	}
}

func TestUpdatePlayerKeepsRoomMembership(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustPlayer(t, s, "p1")
	roomID, _ := s.CreateRoom(ctx, "p1")

	p, _ := s.GetPlayer(ctx, "p1")
	p.Name = "Alice"
	p.Score = 7
	p.RoomID = game.None[string]()
	if err := s.UpdatePlayer(ctx, p); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetPlayer(ctx, "p1")
	if got.Name != "Alice" || got.Score != 7 || got.RoomID.OrElse("") != roomID {
		t.Fatalf("unexpected player %+v", got)
	}
	if err := s.UpdatePlayer(ctx, game.NewPlayer("ghost")); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestUpdateDiscardsOnError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustPlayer(t, s, "p1")
	roomID, _ := s.CreateRoom(ctx, "p1")

	boom := errors.New("boom")
	err := s.Update(ctx, roomID, func(tx *Tx) error {
		tx.Room.Status = game.StatusPlaying
		tx.Room.CurrentAnswer = "CRANE"
		tx.EachPlayer(func(p *game.Player) { p.Score = 99 })
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	r, _ := s.GetRoom(ctx, roomID)
	p, _ := s.GetPlayer(ctx, "p1")
	if r.Status != game.StatusLobby || r.CurrentAnswer != "" || p.Score != 0 {
		t.Fatalf("half-applied mutation: %+v %+v", r, p)
	}
}

func TestDeleteLastPlayerRemovesRoom(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustPlayer(t, s, "p1")
	mustPlayer(t, s, "p2")
	roomID, _ := s.CreateRoom(ctx, "p1")
	_ = s.AddPlayerToRoom(ctx, "p2", roomID)

	if _, err := s.DeletePlayer(ctx, "p1"); err != nil {
		t.Fatal(err)
	}
	r, err := s.GetRoom(ctx, roomID)
	if err != nil || fmt.Sprint(r.Roster) != "[p2]" {
		t.Fatalf("room after first delete: %+v, %v", r, err)
	}
	if _, err := s.DeletePlayer(ctx, "p2"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetRoom(ctx, roomID); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("err = %v, want ErrRoomNotFound", err)
	}
	if _, err := s.DeletePlayer(ctx, "p2"); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("second delete err = %v", err)
	}
	if rooms, players := s.Stats(); rooms != 0 || players != 0 {
		t.Fatalf("Stats = (%d, %d)", rooms, players)
	}
}

func TestReusedRoomCodeKeepsVersionsIncreasing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, WithCodeGenerator(func() string { return "AB12" }))
	mustPlayer(t, s, "p1")
	mustPlayer(t, s, "p2")

	roomID, err := s.CreateRoom(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	_ = s.AddPlayerToRoom(ctx, "p2", roomID)
	old, _ := s.GetRoom(ctx, roomID)
	_, _ = s.DeletePlayer(ctx, "p1")
	_, _ = s.DeletePlayer(ctx, "p2")

	mustPlayer(t, s, "p3")
	again, err := s.CreateRoom(ctx, "p3")
	if err != nil || again != roomID {
		t.Fatalf("CreateRoom = %q, %v", again, err)
	}
	r, _ := s.GetRoom(ctx, again)
	if r.Version <= old.Version {
		t.Fatalf("new room version %d, old room reached %d", r.Version, old.Version)
	}
}

func TestPickRandomChooser(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for _, id := range []string{"p1", "p2", "p3"} {
		mustPlayer(t, s, id)
	}
	roomID, _ := s.CreateRoom(ctx, "p1")
	_ = s.AddPlayerToRoom(ctx, "p2", roomID)
	_ = s.AddPlayerToRoom(ctx, "p3", roomID)

	r, _ := s.GetRoom(ctx, roomID)
	r.Chooser = game.Some("p1")
	r.PastChoosers = map[string]bool{"p1": true, "p2": true}
	if err := s.UpdateRoom(ctx, r); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		c, err := s.PickRandomChooser(ctx, roomID)
		if err != nil {
			t.Fatal(err)
		}
		if p, ok := c.Get(); !ok || p.ID != "p3" {
			t.Fatalf("chooser = %+v", c)
		}
	}

	r.PastChoosers["p3"] = true
	_ = s.UpdateRoom(ctx, r)
	if c, _ := s.PickRandomChooser(ctx, roomID); c.IsSome() {
		t.Fatalf("expected no eligible chooser, got %+v", c)
	}
}

func TestDifferentRoomsDoNotBlock(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustPlayer(t, s, "a")
	mustPlayer(t, s, "b")
	roomA, _ := s.CreateRoom(ctx, "a")
	roomB, _ := s.CreateRoom(ctx, "b")

	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = s.Update(ctx, roomA, func(tx *Tx) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered
	if err := s.Update(ctx, roomB, func(tx *Tx) error {
		tx.Room.CurrentAnswer = "CRANE"
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetPlayer(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	close(release)
}
