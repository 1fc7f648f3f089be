package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"parkcraft.gg/internal/protocol"
	"parkcraft.gg/internal/sim/engine"
)

// Session is the engine surface a connection talks to.
type Session interface {
	Join() chan<- engine.JoinRequest
	Leave() chan<- uint32
	Inbox() chan<- engine.CommandEnvelope
}

// wsConn is the subset of *websocket.Conn the server uses.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

type Server struct {
	session Session
	log     *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(s Session, logger *log.Logger) *Server {
	return &Server{
		session: s,
		log:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		s.serve(conn)
	}
}

func (s *Server) serve(conn wsConn) {
	actorID, out := s.handshake(conn)
	if actorID == 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Writer goroutine.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case b, ok := <-out:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	// Reader loop.
	for {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			cancel()
			break
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		if base.Type != protocol.TypeCommand {
			continue
		}
		var cmd protocol.CommandMsg
		if err := json.Unmarshal(msg, &cmd); err != nil {
			continue
		}
		if cmd.ProtocolVersion != protocol.Version {
			continue
		}
		s.session.Inbox() <- engine.CommandEnvelope{Actor: actorID, Ref: cmd.Ref, Frame: cmd.Frame}
	}

	// Cleanup.
	s.session.Leave() <- actorID
}

func (s *Server) handshake(conn wsConn) (actorID uint32, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return 0, nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		return 0, nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return 0, nil
	}
	if hello.ProtocolVersion != protocol.Version {
		return 0, nil
	}

	out = make(chan []byte, 256)
	resp := make(chan engine.JoinResponse, 1)
	s.session.Join() <- engine.JoinRequest{Name: hello.ClientName, Out: out, Resp: resp}
	jr := <-resp

	// The actor is registered from here on; a failed WELCOME delivery must
	// unregister it or the session leaks.
	b, err := json.Marshal(jr.Welcome)
	if err != nil {
		s.session.Leave() <- jr.Welcome.ActorID
		return 0, nil
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		s.session.Leave() <- jr.Welcome.ActorID
		return 0, nil
	}
	return jr.Welcome.ActorID, out
}
