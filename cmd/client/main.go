package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	persistlog "voxelstream.ai/internal/persistence/log"
	"voxelstream.ai/internal/physics"
	"voxelstream.ai/internal/stream"
	"voxelstream.ai/internal/transport/ws"
	"voxelstream.ai/internal/tuning"
	"voxelstream.ai/internal/view"
	"voxelstream.ai/internal/view/buffers"
)

// logAudio prints ambience cues; a real client would feed a mixer.
type logAudio struct{ log *log.Logger }

func (a logAudio) Play(cue stream.AudioCue) {
	a.log.Printf("ambience %s", cue)
}

func main() {
	var (
		url        = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name       = flag.String("name", "client", "client name")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		statsEvery = flag.Duration("stats_every", 10*time.Second, "telemetry snapshot interval")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[client] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(strings.TrimSpace(*tuningPath))
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		tune = tuning.Defaults()
	}

	conn, err := ws.Dial(*url, *name)
	if err != nil {
		logger.Fatalf("connect: %v", err)
	}
	defer conn.Close()
	params := conn.WorldParams()
	logger.Printf("connected client_id=%d seed=%d num_lods=%d", conn.ID(), params.Seed, params.NumLODs)
	tune.Seed = params.Seed

	terrainBuffers := buffers.NewTerrainBuffers(tune.VertexBudget)
	v := view.New(terrainBuffers)

	client := stream.New(conn.ID(), tune, stream.Deps{
		Source:  conn,
		Out:     conn,
		View:    v,
		Audio:   logAudio{log: logger},
		Buffers: terrainBuffers,
		Physics: physics.NewTable(),
	})

	ctx, cancel := signalContext()
	defer cancel()
	go func() {
		select {
		case <-conn.Done():
			logger.Printf("connection closed")
			cancel()
		case <-ctx.Done():
		}
	}()

	telemetry := persistlog.NewTelemetryLogger(*dataDir)
	defer telemetry.Close()
	go func() {
		ticker := time.NewTicker(*statsEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap := client.Counters.Snapshot()
				_ = telemetry.Write(map[string]any{
					"ts":       time.Now().UTC().Format(time.RFC3339Nano),
					"client":   conn.ID(),
					"counters": snap,
				})
				logger.Printf("requests=%d loaded=%d unloaded=%d edits=%d",
					snap.RequestsSent, snap.ChunksLoaded, snap.ChunksUnloaded,
					snap.EditsApplied)
			}
		}
	}()

	client.Run(ctx)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
