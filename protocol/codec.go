package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v5"
)

// Envelope 所有消息的外层：事件名 + 原始载荷字节（编码由 Codec 决定）
type Envelope struct {
	Type string
	Data []byte
}

// Codec 线上编码。每条连接在握手时选定一种（?codec=json|msgpack）。
type Codec interface {
	Name() string
	// Binary 为 true 时使用 websocket 二进制帧
	Binary() bool
	Encode(event string, payload any) ([]byte, error)
	Decode(b []byte) (Envelope, error)
	Unmarshal(data []byte, v any) error
}

var (
	JSON    Codec = jsonCodec{}
	MsgPack Codec = msgpackCodec{}
)

var ErrEmptyFrame = errors.New("protocol: empty frame")

// CodecByName 未知名称回落到 JSON
func CodecByName(name string) Codec {
	switch name {
	case "msgpack", "mp":
		return MsgPack
	default:
		return JSON
	}
}

// DecodePayload 把 Envelope.Data 解码为 T
func DecodePayload[T any](c Codec, env Envelope) (T, error) {
	var out T
	if len(env.Data) == 0 {
		return out, fmt.Errorf("empty payload for event %q", env.Type)
	}
	err := c.Unmarshal(env.Data, &out)
	return out, err
}

// DecodeGeneric 解码为通用 map，用于服务端转发（可跨编码重新编码）
func DecodeGeneric(c Codec, env Envelope) (map[string]any, error) {
	if len(env.Data) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := c.Unmarshal(env.Data, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

type jsonEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }
func (jsonCodec) Binary() bool { return false }

func (jsonCodec) Encode(event string, payload any) ([]byte, error) {
	if event == "" {
		return nil, errors.New("protocol: empty event name")
	}
	env := jsonEnvelope{Type: event}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

func (jsonCodec) Decode(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, ErrEmptyFrame
	}
	var env jsonEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: env.Type, Data: env.Data}, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return err
	}
	// JSON 数字统一是 float64；整数值转成 int64，跨编码转发时
	// msgpack 对端按整数解码
	if m, ok := v.(*map[string]any); ok && *m != nil {
		for k, val := range *m {
			(*m)[k] = normalizeNumbers(val)
		}
	}
	return nil
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return int64(t)
		}
		return t
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeNumbers(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = normalizeNumbers(val)
		}
		return t
	default:
		return v
	}
}

type msgpackEnvelope struct {
	Type string             `msgpack:"type"`
	Data msgpack.RawMessage `msgpack:"data,omitempty"`
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return "msgpack" }
func (msgpackCodec) Binary() bool { return true }

// marshal 载荷沿用 json tag，消息类型不必写两套 tag
func (msgpackCodec) marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c msgpackCodec) Encode(event string, payload any) ([]byte, error) {
	if event == "" {
		return nil, errors.New("protocol: empty event name")
	}
	env := msgpackEnvelope{Type: event}
	if payload != nil {
		raw, err := c.marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Data = raw
	}
	return msgpack.Marshal(&env)
}

func (msgpackCodec) Decode(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, ErrEmptyFrame
	}
	var env msgpackEnvelope
	if err := msgpack.Unmarshal(b, &env); err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: env.Type, Data: []byte(env.Data)}, nil
}

func (msgpackCodec) Unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	dec.UseLooseInterfaceDecoding(true)
	return dec.Decode(v)
}
