package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello         = "HELLO"
	TypeWelcome       = "WELCOME"
	TypeRequestChunk  = "REQUEST_CHUNK"
	TypeEditVoxel     = "EDIT_VOXEL"
	TypeChunk         = "CHUNK"
	TypeVoxelsUpdated = "VOXELS_UPDATED"
	TypeSun           = "SUN"
	TypePlayer        = "PLAYER"
)

// NoLOD is the wire sentinel for "no LOD" / full removal.
const NoLOD = -1

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
