package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"voxelstream.ai/internal/persistence/chunkdb"
	persistlog "voxelstream.ai/internal/persistence/log"
	"voxelstream.ai/internal/persistence/snapshot"
	"voxelstream.ai/internal/protocol"
	"voxelstream.ai/internal/transport/ws"
	"voxelstream.ai/internal/tuning"
	"voxelstream.ai/internal/world"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		seed       = flag.Int64("seed", 0, "world seed (0: use tuning value)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		disableDB  = flag.Bool("disable_db", false, "disable the chunk payload cache")
		snapEvery  = flag.Duration("snapshot_every", 5*time.Minute, "edit snapshot interval")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(strings.TrimSpace(*tuningPath))
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", *tuningPath)
		tune = tuning.Defaults()
	}
	if *seed != 0 {
		tune.Seed = *seed
	}

	var store *chunkdb.Store
	if !*disableDB {
		store, err = chunkdb.Open(filepath.Join(*dataDir, "chunks.db"))
		if err != nil {
			logger.Fatalf("open chunk cache: %v", err)
		}
		defer store.Close()
	}

	events := persistlog.NewEventLogger(*dataDir)
	defer events.Close()

	w := world.New(tune.Seed, store)
	srv := ws.NewServer(w, logger, events)

	snapPath := filepath.Join(*dataDir, "edits.snap.zst")
	if snap, err := snapshot.ReadSnapshot(snapPath); err == nil {
		if err := w.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed %d edits from %s", len(snap.Edits), snapPath)
	} else if !os.IsNotExist(err) {
		logger.Fatalf("read snapshot: %v", err)
	}
	saveSnapshot := func() {
		if err := snapshot.WriteSnapshot(snapPath, w.ExportSnapshot()); err != nil {
			logger.Printf("snapshot write: %v", err)
		}
	}
	defer saveSnapshot()

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		ticker := time.NewTicker(*snapEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				saveSnapshot()
			}
		}
	}()

	// Day/night clock: one sun broadcast per update interval.
	go func() {
		ticker := time.NewTicker(time.Duration(tune.SunUpdateMs) * time.Millisecond)
		defer ticker.Stop()
		tick := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tick++
				srv.Broadcast(protocol.SunMsg{
					Type:            protocol.TypeSun,
					ProtocolVersion: protocol.Version,
					Fraction:        float64(tick%tune.DayLengthTicks) / float64(tune.DayLengthTicks),
				})
			}
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		fmt.Fprintf(rw, "# HELP voxelstream_clients Current number of connected clients.\n")
		fmt.Fprintf(rw, "# TYPE voxelstream_clients gauge\n")
		fmt.Fprintf(rw, "voxelstream_clients %d\n", srv.ClientCount())

		fmt.Fprintf(rw, "# HELP voxelstream_world_edits Live voxel edits on top of the generated field.\n")
		fmt.Fprintf(rw, "# TYPE voxelstream_world_edits gauge\n")
		fmt.Fprintf(rw, "voxelstream_world_edits %d\n", w.EditCount())
	})
	mux.HandleFunc("/v1/ws", srv.Handler())

	httpSrv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = httpSrv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s seed=%d", *addr, tune.Seed)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
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
