package stream

import "sync/atomic"

// Counters are the client's streaming statistics. They are written from the
// update goroutine and read from anywhere, so every field is atomic.
type Counters struct {
	RequestsSent       atomic.Uint64
	ChunksReceived     atomic.Uint64
	DecodeFailures     atomic.Uint64
	ChunksLoaded       atomic.Uint64
	ChunksDowngraded   atomic.Uint64
	ChunksUnloaded     atomic.Uint64
	PlaceholdersHeld   atomic.Uint64
	CapacityFailures   atomic.Uint64
	EditsApplied       atomic.Uint64
	BackpressureStalls atomic.Uint64
}

// Snapshot is a plain copy of the counters, suitable for JSON telemetry.
type Snapshot struct {
	RequestsSent       uint64 `json:"requests_sent"`
	ChunksReceived     uint64 `json:"chunks_received"`
	DecodeFailures     uint64 `json:"decode_failures"`
	ChunksLoaded       uint64 `json:"chunks_loaded"`
	ChunksDowngraded   uint64 `json:"chunks_downgraded"`
	ChunksUnloaded     uint64 `json:"chunks_unloaded"`
	PlaceholdersHeld   uint64 `json:"placeholders_held"`
	CapacityFailures   uint64 `json:"capacity_failures"`
	EditsApplied       uint64 `json:"edits_applied"`
	BackpressureStalls uint64 `json:"backpressure_stalls"`
}

func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		RequestsSent:       c.RequestsSent.Load(),
		ChunksReceived:     c.ChunksReceived.Load(),
		DecodeFailures:     c.DecodeFailures.Load(),
		ChunksLoaded:       c.ChunksLoaded.Load(),
		ChunksDowngraded:   c.ChunksDowngraded.Load(),
		ChunksUnloaded:     c.ChunksUnloaded.Load(),
		PlaceholdersHeld:   c.PlaceholdersHeld.Load(),
		CapacityFailures:   c.CapacityFailures.Load(),
		EditsApplied:       c.EditsApplied.Load(),
		BackpressureStalls: c.BackpressureStalls.Load(),
	}
}
