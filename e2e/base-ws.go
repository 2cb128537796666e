package e2e

import (
	"chat-signal/auth"
	"chat-signal/infrastructure/websocket"
	"encoding/json"
	"fmt"
	"net/url"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
)

type BaseWsSuite struct {
	suite.Suite
	Config  Config
	timeout time.Duration
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseWsSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerAddr == "" {
		s.T().Skip("SERVER_ADDR is not set, skipping end-to-end scenarios")
	}
	s.Require().NotEmpty(s.Config.JWTSecret, "JWT_SECRET is required to mint tokens")
	s.timeout, err = time.ParseDuration(s.Config.EventTimeout)
	s.Require().NoError(err)
}

// Peer is one authenticated websocket connection driven by a scenario.
type Peer struct {
	UserID string
	s      *BaseWsSuite
	t      *testing.T
	conn   *gorilla.Conn
	frames chan websocket.Envelope
}

// Dial opens a connection for userID with a freshly minted token.
func (s *BaseWsSuite) Dial(name, userID string) *Peer {
	t := s.T()
	header := fmt.Sprintf("  ====== %s (%s) ======", name, userID)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)

	token, err := auth.GenerateToken([]byte(s.Config.JWTSecret), userID, time.Hour)
	s.Require().NoError(err)

	u := url.URL{Scheme: "ws", Host: s.Config.ServerAddr, Path: "/ws", RawQuery: "token=" + url.QueryEscape(token)}
	conn, _, err := gorilla.DefaultDialer.Dial(u.String(), nil)
	s.Require().NoError(err, "Failed to connect to signaling server at "+s.Config.ServerAddr)

	p := &Peer{UserID: userID, s: s, t: t, conn: conn, frames: make(chan websocket.Envelope, 64)}
	go p.readLoop()
	t.Cleanup(func() { _ = conn.Close() })
	return p
}

func (p *Peer) readLoop() {
	defer close(p.frames)
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		var env websocket.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		if p.s.Config.DebugJSON {
			p.t.Logf("<- %s %s", p.UserID, data)
		}
		p.frames <- env
	}
}

// Emit sends one event with payload marshaled as JSON.
func (p *Peer) Emit(event string, payload any) {
	raw, err := json.Marshal(payload)
	p.s.Require().NoError(err)
	data, err := json.Marshal(websocket.Envelope{Event: event, Payload: raw})
	p.s.Require().NoError(err)
	if p.s.Config.DebugJSON {
		p.t.Logf("-> %s %s", p.UserID, data)
	}
	p.s.Require().NoError(p.conn.WriteMessage(gorilla.TextMessage, data))
}

// Expect waits for the next event named event, skipping unrelated ones,
// and decodes its payload into out when out is not nil.
func (p *Peer) Expect(event string, out any) {
	deadline := time.After(p.s.timeout)
	for {
		select {
		case env, ok := <-p.frames:
			p.s.Require().True(ok, "%s: connection closed while waiting for %s", p.UserID, event)
			if env.Event != event {
				continue
			}
			if out != nil {
				p.s.Require().NoError(json.Unmarshal(env.Payload, out))
			}
			return
		case <-deadline:
			p.s.FailNow(fmt.Sprintf("%s: no %s event within %s", p.UserID, event, p.s.timeout))
		}
	}
}

// Online announces the peer and waits for its presence snapshot.
func (p *Peer) Online() []string {
	p.Emit("user:online", map[string]string{"userId": p.UserID})
	var snapshot struct {
		Online []string `json:"online"`
	}
	p.Expect("presence:snapshot", &snapshot)
	return snapshot.Online
}
