package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/robalobadob/wordle/apps/party-server/internal/archive"
	"github.com/robalobadob/wordle/apps/party-server/internal/session"
	"github.com/robalobadob/wordle/apps/party-server/internal/store"
	"github.com/robalobadob/wordle/apps/party-server/internal/words"
)

type fixture struct {
	srv  *Server
	st   store.Store
	iss  *session.Issuer
	arch *archive.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	iss, err := session.NewIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	arch, err := archive.Open(filepath.Join(t.TempDir(), "party.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { arch.Close() })

	st := store.NewMemoryStore()
	f := &fixture{st: st, iss: iss, arch: arch}
	f.srv = New(Deps{
		Store: st,
		Words: words.Lists{
			Answers: words.NewList([]string{"crane"}),
			Guesses: words.NewList([]string{"crane", "bumpy"}),
		},
		Archive:      arch,
		Sessions:     iss,
		ClientOrigin: "http://example.test",
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealthAndDebug(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		t.Fatalf("health = %d %v", rec.Code, rec.Header())
	}
	var health map[string]any
	decode(t, rec, &health)
	if health["ok"] != true || health["archive"] != "ok" {
		t.Fatalf("health body = %v", health)
	}

	rec = f.do(t, http.MethodGet, "/debug/words", "")
	var counts map[string]int
	decode(t, rec, &counts)
	if counts["answers"] != 1 || counts["allowed"] != 2 {
		t.Fatalf("debug/words = %v", counts)
	}
}

func TestWordRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/words/random", "")
	var random map[string]string
	decode(t, rec, &random)
	if random["word"] != "CRANE" {
		t.Fatalf("random = %v", random)
	}

	rec = f.do(t, http.MethodGet, "/words/check?word=bumpy", "")
	var check map[string]any
	decode(t, rec, &check)
	if check["word"] != "BUMPY" || check["choosable"] != false || check["guessable"] != true {
		t.Fatalf("check = %v", check)
	}

	if rec := f.do(t, http.MethodGet, "/words/check", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing word = %d", rec.Code)
	}
}

func TestRoomRequiresMemberSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for _, id := range []string{"member", "outsider"} {
		if _, err := f.st.CreatePlayer(ctx, id); err != nil {
			t.Fatal(err)
		}
	}
	roomID, err := f.st.CreateRoom(ctx, "member")
	if err != nil {
		t.Fatal(err)
	}
	memberTok, _, _ := f.iss.Issue("member")
	outsiderTok, _, _ := f.iss.Issue("outsider")

	path := "/rooms/" + strings.ToLower(roomID)
	cases := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{"no token", path, "", http.StatusUnauthorized},
		{"bad token", path, "nope", http.StatusUnauthorized},
		{"outsider", path, outsiderTok, http.StatusForbidden},
		{"unknown room", "/rooms/ZZZZ", memberTok, http.StatusNotFound},
		{"member", path, memberTok, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := f.do(t, http.MethodGet, tc.path, tc.token); rec.Code != tc.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.want, rec.Body.String())
			}
		})
	}

	rec := f.do(t, http.MethodGet, path, memberTok)
	var snap struct {
		RoomID string `json:"roomId"`
		Status string `json:"status"`
	}
	decode(t, rec, &snap)
	if snap.RoomID != roomID || snap.Status != "lobby" {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestLeaderboard(t *testing.T) {
	f := newFixture(t)
	err := f.arch.RecordRound(context.Background(), archive.RoundResult{
		RoomID: "ABCD", Round: 1, Chooser: "Ann", Answer: "CRANE",
		Players: []archive.PlayerResult{{Name: "Bob", Guesses: 2, Solved: true, Score: 15}},
	})
	if err != nil {
		t.Fatal(err)
	}

	rec := f.do(t, http.MethodGet, "/leaderboard?limit=5", "")
	var rows []archive.LBRow
	decode(t, rec, &rows)
	if len(rows) != 1 || rows[0].Name != "Bob" || rows[0].Score != 15 {
		t.Fatalf("leaderboard = %+v", rows)
	}
}

func TestNotFoundAndCORS(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/nope", "")
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "not_found") {
		t.Fatalf("404 = %d %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://example.test" {
		t.Fatalf("allow-origin = %q", got)
	}

	rec = f.do(t, http.MethodOptions, "/leaderboard", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight = %d", rec.Code)
	}
}
