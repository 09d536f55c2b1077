package matching

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/cellarium-cloud/cas-api/internal/domain"
)

// codec is one wire encoding against the match endpoint.
type codec interface {
	contentType() string
	marshal(v any) ([]byte, error)
	unmarshal(data []byte, v any) error
}

// codecFor resolves the codec bound to an index transport mode.
func codecFor(mode domain.TransportMode) (codec, error) {
	switch mode {
	case domain.TransportJSON:
		return jsonCodec{}, nil
	case domain.TransportMsgpack:
		return msgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown index transport mode %q", mode)
	}
}

type jsonCodec struct{}

func (jsonCodec) contentType() string { return "application/json" }

func (jsonCodec) marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type msgpackCodec struct{}

func (msgpackCodec) contentType() string { return "application/msgpack" }

func (msgpackCodec) marshal(v any) ([]byte, error) { return msgpack.Marshal(v) }

func (msgpackCodec) unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }
