package protocol

import (
	"encoding/json"
	"fmt"
)

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	ClientID        uint64      `json:"client_id"`
	WorldParams     WorldParams `json:"world_params"`
}

type WorldParams struct {
	Seed         int64 `json:"seed"`
	ChunkLgWidth int   `json:"chunk_lg_width"`
	NumLODs      int   `json:"num_lods"`
}

// REQUEST_CHUNK (client -> server): ask for one chunk's voxel samples.
// The timestamp and requester id let the server prioritize and dedup.
type RequestChunkMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	TimeRequestedNs int64    `json:"time_requested_ns"`
	ClientID        uint64   `json:"client_id"`
	Position        [3]int32 `json:"position"`
	LgSampleSize    int      `json:"lg_sample_size"`
}

// EDIT_VOXEL (client -> server)
type EditVoxelMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	ClientID        uint64   `json:"client_id"`
	Position        [3]int32 `json:"position"`
	Material        uint16   `json:"material"`
}

// CHUNK (server -> client): one chunk's voxel samples at one granularity.
// Voxels is base64(zstd(RLE)).
type ChunkMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Position        [3]int32 `json:"position"`
	LgSampleSize    int      `json:"lg_sample_size"`
	Voxels          string   `json:"voxels"`
	TimeRequestedNs int64    `json:"time_requested_ns,omitempty"`
}

// VOXELS_UPDATED (server -> client): world edits to apply locally.
type VoxelsUpdatedMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Edits           []VoxelEdit `json:"edits"`
}

type VoxelEdit struct {
	Position [3]int32 `json:"position"`
	Material uint16   `json:"material"`
}

// SUN (server -> client): time-of-day as a [0,1) fraction.
type SunMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Fraction        float64 `json:"fraction"`
}

// PLAYER (server -> client): the client avatar's authoritative position.
type PlayerMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	ID              uint64     `json:"id"`
	Position        [3]float64 `json:"position"`
}

// ServerUpdate is one decoded server-to-client message.
type ServerUpdate interface{ isServerUpdate() }

func (*ChunkMsg) isServerUpdate()         {}
func (*VoxelsUpdatedMsg) isServerUpdate() {}
func (*SunMsg) isServerUpdate()           {}
func (*PlayerMsg) isServerUpdate()        {}

// ClientUpdate is one decoded client-to-server message (post-handshake).
type ClientUpdate interface{ isClientUpdate() }

func (*RequestChunkMsg) isClientUpdate() {}
func (*EditVoxelMsg) isClientUpdate()    {}

// DecodeServerUpdate routes a raw server message to its concrete type.
func DecodeServerUpdate(b []byte) (ServerUpdate, error) {
	base, err := DecodeBase(b)
	if err != nil {
		return nil, err
	}
	switch base.Type {
	case TypeChunk:
		var m ChunkMsg
		return &m, json.Unmarshal(b, &m)
	case TypeVoxelsUpdated:
		var m VoxelsUpdatedMsg
		return &m, json.Unmarshal(b, &m)
	case TypeSun:
		var m SunMsg
		return &m, json.Unmarshal(b, &m)
	case TypePlayer:
		var m PlayerMsg
		return &m, json.Unmarshal(b, &m)
	default:
		return nil, fmt.Errorf("unknown server message type %q", base.Type)
	}
}

// DecodeClientUpdate routes a raw client message to its concrete type.
func DecodeClientUpdate(b []byte) (ClientUpdate, error) {
	base, err := DecodeBase(b)
	if err != nil {
		return nil, err
	}
	switch base.Type {
	case TypeRequestChunk:
		var m RequestChunkMsg
		return &m, json.Unmarshal(b, &m)
	case TypeEditVoxel:
		var m EditVoxelMsg
		return &m, json.Unmarshal(b, &m)
	default:
		return nil, fmt.Errorf("unknown client message type %q", base.Type)
	}
}
