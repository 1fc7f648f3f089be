package ws

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"parkcraft.gg/internal/protocol"
	"parkcraft.gg/internal/sim/actions"
	"parkcraft.gg/internal/sim/engine"
	"parkcraft.gg/internal/sim/world"
)

// fakeSession answers every join with a fixed actor id and records
// leaves, standing in for the engine loop.
type fakeSession struct {
	join  chan engine.JoinRequest
	leave chan uint32
	inbox chan engine.CommandEnvelope
}

func newFakeSession(actorID uint32) *fakeSession {
	s := &fakeSession{
		join:  make(chan engine.JoinRequest, 4),
		leave: make(chan uint32, 4),
		inbox: make(chan engine.CommandEnvelope, 4),
	}
	go func() {
		for jr := range s.join {
			jr.Resp <- engine.JoinResponse{Welcome: protocol.WelcomeMsg{
				Type:            protocol.TypeWelcome,
				ProtocolVersion: protocol.Version,
				ActorID:         actorID,
				WorldID:         "t",
				TickRateHz:      25,
				CodecVersion:    actions.CodecVersion,
			}}
		}
	}()
	return s
}

func (s *fakeSession) Join() chan<- engine.JoinRequest      { return s.join }
func (s *fakeSession) Leave() chan<- uint32                 { return s.leave }
func (s *fakeSession) Inbox() chan<- engine.CommandEnvelope { return s.inbox }

// fakeConn serves queued reads and captures writes. writeErr, when set,
// fails every WriteMessage.
type fakeConn struct {
	reads    [][]byte
	writes   [][]byte
	writeErr error
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	if len(c.reads) == 0 {
		return 0, nil, io.EOF
	}
	msg := c.reads[0]
	c.reads = c.reads[1:]
	return websocket.TextMessage, msg, nil
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	c.writes = append(c.writes, data)
	return nil
}

func (c *fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func helloFrame(t *testing.T) []byte {
	t.Helper()
	b, err := json.Marshal(protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      "test",
	})
	if err != nil {
		t.Fatalf("marshal hello: %v", err)
	}
	return b
}

func expectLeave(t *testing.T, s *fakeSession, actor uint32) {
	t.Helper()
	select {
	case got := <-s.leave:
		if got != actor {
			t.Fatalf("leave for actor %d, want %d", got, actor)
		}
	case <-time.After(time.Second):
		t.Fatalf("no leave for actor %d", actor)
	}
}

func TestHandshake_DeliversWelcome(t *testing.T) {
	session := newFakeSession(7)
	srv := NewServer(session, log.New(io.Discard, "", 0))
	conn := &fakeConn{reads: [][]byte{helloFrame(t)}}

	actor, out := srv.handshake(conn)
	if actor != 7 || out == nil {
		t.Fatalf("handshake: actor=%d out=%v", actor, out)
	}
	if len(conn.writes) != 1 {
		t.Fatalf("writes: %d", len(conn.writes))
	}
	var w protocol.WelcomeMsg
	if err := json.Unmarshal(conn.writes[0], &w); err != nil {
		t.Fatalf("welcome: %v", err)
	}
	if w.Type != protocol.TypeWelcome || w.ActorID != 7 {
		t.Fatalf("welcome msg: %+v", w)
	}
	if len(session.leave) != 0 {
		t.Fatalf("unexpected leave after successful handshake")
	}
}

func TestHandshake_FailedWelcomeUnregistersActor(t *testing.T) {
	// The join is already registered when the WELCOME write fails; the
	// session must get the matching leave or it keeps a dead client
	// entry and its out channel forever.
	session := newFakeSession(7)
	srv := NewServer(session, log.New(io.Discard, "", 0))
	conn := &fakeConn{
		reads:    [][]byte{helloFrame(t)},
		writeErr: errors.New("broken pipe"),
	}

	actor, out := srv.handshake(conn)
	if actor != 0 || out != nil {
		t.Fatalf("failed handshake returned actor=%d out=%v", actor, out)
	}
	expectLeave(t, session, 7)
}

func TestHandshake_RejectsNonHello(t *testing.T) {
	session := newFakeSession(7)
	srv := NewServer(session, log.New(io.Discard, "", 0))
	cmd, _ := json.Marshal(protocol.CommandMsg{
		Type:            protocol.TypeCommand,
		ProtocolVersion: protocol.Version,
		Ref:             "c1",
	})
	conn := &fakeConn{reads: [][]byte{cmd}}

	actor, out := srv.handshake(conn)
	if actor != 0 || out != nil {
		t.Fatalf("non-HELLO accepted: actor=%d", actor)
	}
	if len(session.join) != 0 {
		t.Fatalf("join sent for rejected handshake")
	}
}

func TestServe_RoutesCommandsAndLeavesOnDisconnect(t *testing.T) {
	session := newFakeSession(7)
	srv := NewServer(session, log.New(io.Discard, "", 0))

	frame := actions.Encode(actions.NewRideSetStatus(1, world.RideStatusOpen))
	cmd, err := json.Marshal(protocol.CommandMsg{
		Type:            protocol.TypeCommand,
		ProtocolVersion: protocol.Version,
		Ref:             "c1",
		Frame:           frame,
	})
	if err != nil {
		t.Fatalf("marshal command: %v", err)
	}
	conn := &fakeConn{reads: [][]byte{helloFrame(t), cmd}}

	srv.serve(conn)

	select {
	case env := <-session.inbox:
		if env.Actor != 7 || env.Ref != "c1" {
			t.Fatalf("envelope: %+v", env)
		}
	default:
		t.Fatalf("command not routed to session")
	}
	expectLeave(t, session, 7)
}
