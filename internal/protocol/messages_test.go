package protocol

import (
	"encoding/json"
	"testing"
)

func TestDecodeServerUpdateRoutesByType(t *testing.T) {
	b, _ := json.Marshal(ChunkMsg{
		Type:            TypeChunk,
		ProtocolVersion: Version,
		Position:        [3]int32{1, 0, -2},
		LgSampleSize:    2,
		Voxels:          "AA==",
	})
	up, err := DecodeServerUpdate(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	m, ok := up.(*ChunkMsg)
	if !ok {
		t.Fatalf("expected *ChunkMsg, got %T", up)
	}
	if m.Position != [3]int32{1, 0, -2} || m.LgSampleSize != 2 {
		t.Fatalf("bad payload: %+v", m)
	}
}

func TestDecodeServerUpdateRejectsUnknownType(t *testing.T) {
	if _, err := DecodeServerUpdate([]byte(`{"type":"NOPE"}`)); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestDecodeClientUpdateRoutesByType(t *testing.T) {
	b, _ := json.Marshal(RequestChunkMsg{
		Type:            TypeRequestChunk,
		ProtocolVersion: Version,
		TimeRequestedNs: 42,
		ClientID:        7,
		Position:        [3]int32{0, 1, 0},
		LgSampleSize:    0,
	})
	up, err := DecodeClientUpdate(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m, ok := up.(*RequestChunkMsg); !ok || m.TimeRequestedNs != 42 {
		t.Fatalf("bad decode: %T %+v", up, up)
	}
}
