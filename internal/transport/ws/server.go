// Package ws carries the streaming protocol over websockets: a server that
// serves chunk payloads and fans out world events, and a client that feeds
// the update loop.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"voxelstream.ai/internal/chunk"
	"voxelstream.ai/internal/protocol"
	"voxelstream.ai/internal/stream/lod"
	"voxelstream.ai/internal/world"
)

// EventSink records server events for the offline logs. Nil-safe wrappers
// guard it at the call sites.
type EventSink interface {
	Write(v any) error
}

type Server struct {
	world  *world.World
	log    *log.Logger
	events EventSink

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[uint64]chan []byte
	nextID  uint64
}

func NewServer(w *world.World, logger *log.Logger, events EventSink) *Server {
	return &Server{
		world:   w,
		log:     logger,
		events:  events,
		clients: make(map[uint64]chan []byte),
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

		clientID, out := s.handshake(conn)
		if clientID == 0 {
			return
		}
		defer s.unregister(clientID)

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
				return
			}
			up, err := protocol.DecodeClientUpdate(msg)
			if err != nil {
				continue
			}
			switch m := up.(type) {
			case *protocol.RequestChunkMsg:
				if m.ProtocolVersion != protocol.Version {
					continue
				}
				s.serveChunk(ctx, out, m)
			case *protocol.EditVoxelMsg:
				if m.ProtocolVersion != protocol.Version {
					continue
				}
				s.applyEdit(clientID, m)
			}
		}
	}
}

func (s *Server) serveChunk(ctx context.Context, out chan []byte, m *protocol.RequestChunkMsg) {
	pos := chunk.Position{X: m.Position[0], Y: m.Position[1], Z: m.Position[2]}
	payload := s.world.ChunkPayload(pos, m.LgSampleSize)

	b, err := json.Marshal(protocol.ChunkMsg{
		Type:            protocol.TypeChunk,
		ProtocolVersion: protocol.Version,
		Position:        m.Position,
		LgSampleSize:    m.LgSampleSize,
		Voxels:          payload,
		TimeRequestedNs: m.TimeRequestedNs,
	})
	if err != nil {
		return
	}
	// A dropped chunk reply would strand the client's in-flight request, so
	// this send blocks until the writer drains or the connection dies.
	select {
	case out <- b:
	case <-ctx.Done():
	}

	if s.events != nil {
		_ = s.events.Write(map[string]any{
			"event": "chunk_served", "client": m.ClientID,
			"pos": m.Position, "lg": m.LgSampleSize,
		})
	}
}

func (s *Server) applyEdit(clientID uint64, m *protocol.EditVoxelMsg) {
	pos := s.world.ApplyEdit(m.Position, m.Material)
	s.log.Printf("edit client=%d voxel=%v material=%d chunk=%v", clientID, m.Position, m.Material, pos)

	s.Broadcast(protocol.VoxelsUpdatedMsg{
		Type:            protocol.TypeVoxelsUpdated,
		ProtocolVersion: protocol.Version,
		Edits:           []protocol.VoxelEdit{{Position: m.Position, Material: m.Material}},
	})
	if s.events != nil {
		_ = s.events.Write(map[string]any{
			"event": "edit", "client": clientID,
			"pos": m.Position, "material": m.Material,
		})
	}
}

// Broadcast fans a message out to every connected client. Slow clients drop
// broadcasts rather than stall the rest; the streaming protocol recovers
// via chunk re-requests.
func (s *Server) Broadcast(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, out := range s.clients {
		select {
		case out <- b:
		default:
		}
	}
}

// ClientCount reports the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) handshake(conn *websocket.Conn) (clientID uint64, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return 0, nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return 0, nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return 0, nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return 0, nil
	}
	if hello.ClientName == "" {
		hello.ClientName = "client"
	}

	out = make(chan []byte, 256)
	s.mu.Lock()
	s.nextID++
	clientID = s.nextID
	s.clients[clientID] = out
	s.mu.Unlock()

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		ClientID:        clientID,
		WorldParams: protocol.WorldParams{
			Seed:         s.world.Seed(),
			ChunkLgWidth: chunk.LgWidth,
			NumLODs:      lod.NumLODs,
		},
	}
	if err := writeJSON(conn, welcome); err != nil {
		s.unregister(clientID)
		return 0, nil
	}

	spawn := protocol.PlayerMsg{
		Type:            protocol.TypePlayer,
		ProtocolVersion: protocol.Version,
		ID:              clientID,
		Position:        s.world.SpawnPosition(),
	}
	if err := writeJSON(conn, spawn); err != nil {
		s.unregister(clientID)
		return 0, nil
	}

	s.log.Printf("join client=%d name=%q", clientID, hello.ClientName)
	if s.events != nil {
		_ = s.events.Write(map[string]any{"event": "join", "client": clientID, "name": hello.ClientName})
	}
	return clientID, out
}

func (s *Server) unregister(clientID uint64) {
	s.mu.Lock()
	delete(s.clients, clientID)
	s.mu.Unlock()
	s.log.Printf("leave client=%d", clientID)
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
