// Command admin inspects a running server and its on-disk state: health
// and metrics over http, chunk cache statistics straight from sqlite.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"time"

	"voxelstream.ai/internal/persistence/chunkdb"
)

func main() {
	var (
		baseURL = flag.String("url", "http://localhost:8080", "server base url")
		dbPath  = flag.String("db", "", "chunk cache sqlite path (skip http, read the cache)")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[admin] ", log.LstdFlags)

	if *dbPath != "" {
		if err := cacheStats(*dbPath); err != nil {
			logger.Fatalf("cache stats: %v", err)
		}
		return
	}

	client := &http.Client{Timeout: 5 * time.Second}
	for _, path := range []string{"/healthz", "/metrics"} {
		body, err := get(client, *baseURL+path)
		if err != nil {
			logger.Fatalf("GET %s: %v", path, err)
		}
		fmt.Printf("== %s ==\n%s\n", path, body)
	}
}

func get(client *http.Client, url string) (string, error) {
	resp, err := client.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %s", resp.Status)
	}
	b, err := io.ReadAll(resp.Body)
	return string(b), err
}

func cacheStats(path string) error {
	store, err := chunkdb.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats()
	if err != nil {
		return err
	}

	lgs := make([]int, 0, len(stats))
	total := 0
	for lg, n := range stats {
		lgs = append(lgs, lg)
		total += n
	}
	sort.Ints(lgs)
	for _, lg := range lgs {
		fmt.Printf("lg=%d cached_chunks=%d\n", lg, stats[lg])
	}
	fmt.Printf("total=%d\n", total)
	return nil
}
