// Command bot is a headless load generator: it connects like a client and
// periodically places and removes voxels near its spawn, exercising the
// edit broadcast path.
package main

import (
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"voxelstream.ai/internal/gen"
	"voxelstream.ai/internal/protocol"
	"voxelstream.ai/internal/transport/ws"
)

func main() {
	var (
		url   = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name  = flag.String("name", "bot", "client name")
		every = flag.Duration("every", 2*time.Second, "edit interval")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, err := ws.Dial(*url, *name)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	logger.Printf("connected client_id=%d", conn.ID())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var spawn [3]int32
	haveSpawn := false

	ticker := time.NewTicker(*every)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-conn.Done():
			logger.Printf("connection closed")
			return
		case <-ticker.C:
			if !haveSpawn {
				continue
			}
			material := gen.Stone
			if rng.Intn(2) == 0 {
				material = gen.Air
			}
			p := [3]int32{
				spawn[0] + int32(rng.Intn(9)-4),
				spawn[1],
				spawn[2] + int32(rng.Intn(9)-4),
			}
			conn.Send(&protocol.EditVoxelMsg{
				Type:            protocol.TypeEditVoxel,
				ProtocolVersion: protocol.Version,
				ClientID:        conn.ID(),
				Position:        p,
				Material:        material,
			})
		default:
		}

		u, ok := conn.TryRecv()
		if !ok {
			time.Sleep(20 * time.Millisecond)
			continue
		}
		switch m := u.(type) {
		case *protocol.PlayerMsg:
			spawn = [3]int32{int32(m.Position[0]), int32(m.Position[1]), int32(m.Position[2])}
			haveSpawn = true
			logger.Printf("spawned at %v", spawn)
		case *protocol.VoxelsUpdatedMsg:
			logger.Printf("voxels updated: %d edits", len(m.Edits))
		}
	}
}
