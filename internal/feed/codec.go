package feed

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// #region codec

// CodecName is the gRPC content-subtype the feed runs over. The wire
// contract of this system is JSON end to end, so the feed carries JSON
// frames rather than introducing a second schema language for one RPC.
const CodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json codec marshal: %w", err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json codec unmarshal: %w", err)
	}
	return nil
}

func (jsonCodec) Name() string { return CodecName }

// #endregion codec
