package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/party-server/internal/party"
	"github.com/robalobadob/wordle/apps/party-server/internal/session"
)

const (
	DefaultPingInterval = 30 * time.Second
	DefaultPongTimeout  = 45 * time.Second
)

// Config tunes the websocket endpoint.
type Config struct {
	// AllowedOrigin is matched against the Origin header; "" or "*" allows any.
	AllowedOrigin string
	PingInterval  time.Duration
	PongTimeout   time.Duration
}

// Handler upgrades requests to websocket connections and feeds their
// events into the party machine.
type Handler struct {
	hub      *Hub
	machine  *party.Machine
	sessions *session.Issuer
	upgrader websocket.Upgrader
	cfg      Config
}

// NewHandler wires a Handler. sessions may be nil, in which case no token is issued.
func NewHandler(hub *Hub, m *party.Machine, sessions *session.Issuer, cfg Config) *Handler {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = DefaultPongTimeout
	}
	h := &Handler{hub: hub, machine: m, sessions: sessions, cfg: cfg}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.cfg.AllowedOrigin == "" || h.cfg.AllowedOrigin == "*" {
		return true
	}
	return origin == h.cfg.AllowedOrigin
}

// sessionPayload is sent as the first event on every connection.
type sessionPayload struct {
	PlayerID  string    `json:"playerId"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	id := uuid.NewString()
	c := newClient(id, conn)
	ctx := r.Context()

	if err := h.machine.Connect(ctx, id); err != nil {
		log.Error().Err(err).Str("player", id).Msg("connect failed")
		_ = conn.Close()
		return
	}
	h.hub.register(c)
	go c.writeLoop(h.cfg.PingInterval)

	hello := sessionPayload{PlayerID: id}
	if h.sessions != nil {
		tok, exp, err := h.sessions.Issue(id)
		if err != nil {
			log.Error().Err(err).Str("player", id).Msg("issue session")
		} else {
			hello.Token, hello.ExpiresAt = tok, exp
		}
	}
	h.hub.reply(c, party.EventSession, "", hello)
	log.Info().Str("player", id).Str("remote", r.RemoteAddr).Msg("client connected")

	c.readLoop(h.cfg.PongTimeout, func(env Envelope) {
		h.handle(ctx, c, env)
	})

	// the request context is still live here, but the disconnect must not be cut short
	cleanup := context.WithoutCancel(ctx)
	if err := h.machine.Disconnect(cleanup, id); err != nil {
		log.Error().Err(err).Str("player", id).Msg("disconnect failed")
	}
	h.hub.unregister(c)
	c.close()
	log.Info().Str("player", id).Msg("client disconnected")
}

// handle runs one inbound event and acks it when the client asked for a reply.
func (h *Handler) handle(ctx context.Context, c *client, env Envelope) {
	reply, err := h.dispatch(ctx, c.id, env)
	switch {
	case errors.Is(err, party.ErrInvariantViolation):
		log.Error().Err(err).Str("player", c.id).Str("event", env.Event).Msg("closing connection")
		h.hub.reply(c, party.EventError, env.ID, errorPayload{Message: "internal error"})
		c.close()
		return
	case err != nil:
		log.Warn().Err(err).Str("player", c.id).Str("event", env.Event).Msg("event failed")
		h.hub.reply(c, party.EventError, env.ID, errorPayload{Message: err.Error()})
		return
	}
	if env.ID != "" {
		h.hub.reply(c, party.EventAck, env.ID, reply)
	}
}

var errUnknownEvent = errors.New("unknown event")

func (h *Handler) dispatch(ctx context.Context, playerID string, env Envelope) (any, error) {
	m := h.machine
	switch env.Event {
	case party.EventRequestNewGame:
		return m.CreateRoom(ctx, playerID)

	case party.EventRequestJoinGame:
		roomID, err := stringArg(env)
		if err != nil {
			return nil, err
		}
		return m.JoinRoom(ctx, playerID, roomID)

	case party.EventDeclareName:
		name, err := stringArg(env)
		if err != nil {
			return nil, err
		}
		return m.DeclareName(ctx, playerID, name)

	case party.EventGuess:
		word, err := stringArg(env)
		if err != nil {
			return nil, err
		}
		return m.SubmitGuess(ctx, playerID, word)

	case party.EventRequestBeginGame:
		return nil, m.BeginGame(ctx, playerID)

	case party.EventCheckChosenWordValid:
		word, err := stringArg(env)
		if err != nil {
			return nil, err
		}
		return m.CheckChosenWordValid(word), nil

	case party.EventChooseWord:
		word, err := stringArg(env)
		if err != nil {
			return nil, err
		}
		return nil, m.ChooseWord(ctx, playerID, word)

	case party.EventStartOver:
		return nil, m.StartOver(ctx, playerID)

	case party.EventRequestValidWord:
		return m.RequestValidWord(), nil

	case party.EventSayHello:
		m.SayHello(playerID)
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %q", errUnknownEvent, env.Event)
}

// stringArg decodes the single string argument most events carry.
func stringArg(env Envelope) (string, error) {
	var s string
	if len(env.Data) == 0 {
		return "", fmt.Errorf("%s: missing argument", env.Event)
	}
	if err := json.Unmarshal(env.Data, &s); err != nil {
		return "", fmt.Errorf("%s: argument must be a string", env.Event)
	}
	return s, nil
}
