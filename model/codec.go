package model

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec serializes artifact files
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type jsonCodec struct{}

func (jsonCodec) Name() string                       { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type msgpackCodec struct{}

func (msgpackCodec) Name() string                       { return "msgpack" }
func (msgpackCodec) Marshal(v any) ([]byte, error)      { return msgpack.Marshal(v) }
func (msgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

var (
	// JSON reads and writes .json artifacts
	JSON Codec = jsonCodec{}
	// MessagePack reads and writes .msgpack artifacts
	MessagePack Codec = msgpackCodec{}
)

// CodecFor picks the codec from a file extension
func CodecFor(filename string) (Codec, error) {
	switch strings.ToLower(path.Ext(filename)) {
	case ".json":
		return JSON, nil
	case ".msgpack", ".mpk":
		return MessagePack, nil
	default:
		return nil, fmt.Errorf("no codec for artifact %q (want .json or .msgpack)", filename)
	}
}
