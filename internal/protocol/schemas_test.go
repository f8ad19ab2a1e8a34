package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	helloSchema := compile("hello.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	requestSchema := compile("request_chunk.schema.json")
	chunkSchema := compile("chunk.schema.json")

	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "client_name":"observer1"
	}`), &hello)
	validate(helloSchema, hello)

	var welcome any
	_ = json.Unmarshal([]byte(`{
	  "type":"WELCOME",
	  "protocol_version":"1.0",
	  "client_id":7,
	  "world_params":{"seed":1337,"chunk_lg_width":5,"num_lods":4}
	}`), &welcome)
	validate(welcomeSchema, welcome)

	var request any
	_ = json.Unmarshal([]byte(`{
	  "type":"REQUEST_CHUNK",
	  "protocol_version":"1.0",
	  "time_requested_ns":1724400000000000000,
	  "client_id":7,
	  "position":[-2,0,13],
	  "lg_sample_size":1
	}`), &request)
	validate(requestSchema, request)

	var chunkMsg any
	_ = json.Unmarshal([]byte(`{
	  "type":"CHUNK",
	  "protocol_version":"1.0",
	  "position":[-2,0,13],
	  "lg_sample_size":1,
	  "voxels":"AA==",
	  "time_requested_ns":1724400000000000000
	}`), &chunkMsg)
	validate(chunkSchema, chunkMsg)
}
