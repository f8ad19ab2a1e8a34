// Command replay walks the compressed JSONL logs the server and clients
// write (events, telemetry) and prints the entries back, optionally
// filtered by event type.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
)

func main() {
	var (
		dir    = flag.String("dir", "./data/events", "directory of *.jsonl.zst logs")
		evType = flag.String("type", "", "only print entries whose event field matches")
		limit  = flag.Int("n", 0, "stop after n entries (0: all)")
	)
	flag.Parse()

	files, err := logFiles(*dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list logs:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "no *.jsonl.zst files under %s\n", *dir)
		os.Exit(1)
	}

	printed := 0
	byType := make(map[string]int)
	for _, path := range files {
		if err := dumpFile(path, *evType, *limit, &printed, byType); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			os.Exit(1)
		}
		if *limit > 0 && printed >= *limit {
			break
		}
	}

	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)
	fmt.Fprintf(os.Stderr, "-- %d entries", printed)
	for _, t := range types {
		fmt.Fprintf(os.Stderr, " %s=%d", t, byType[t])
	}
	fmt.Fprintln(os.Stderr)
}

func logFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl.zst") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func dumpFile(path, evType string, limit int, printed *int, byType map[string]int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		var entry map[string]any
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		t, _ := entry["event"].(string)
		if evType != "" && t != evType {
			continue
		}
		if t == "" {
			t = "(untyped)"
		}
		byType[t]++
		fmt.Printf("%s\n", line)
		*printed++
		if limit > 0 && *printed >= limit {
			return nil
		}
	}
	return sc.Err()
}
