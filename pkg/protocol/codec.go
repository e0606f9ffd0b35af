package protocol

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/vango-dev/villain/pkg/vdom"
)

// Codec serializes message payloads. The codec of a connection is chosen
// with the WebSocket subprotocol; each frame also names its codec in its
// flags, so either side can decode without knowing the negotiation.
type Codec interface {
	// Name is the WebSocket subprotocol selecting the codec.
	Name() string
	Flags() FrameFlags
	Marshal(m Message) ([]byte, error)
	Unmarshal(t FrameType, payload []byte) (Message, error)
}

var (
	// Binary is the compact varint codec.
	Binary Codec = binaryCodec{}

	// MsgPack encodes payloads as MessagePack maps with short keys.
	MsgPack Codec = msgpackCodec{}
)

// Codecs lists the supported codecs in server preference order.
var Codecs = []Codec{Binary, MsgPack}

// CodecFor returns the codec named by a subprotocol.
func CodecFor(name string) (Codec, bool) {
	for _, c := range Codecs {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// Encode marshals m into a frame.
func Encode(c Codec, m Message) (*Frame, error) {
	payload, err := c.Marshal(m)
	if err != nil {
		return nil, err
	}
	if len(payload) > MaxPayloadSize {
		return nil, ErrFrameTooLarge
	}
	return &Frame{Type: m.FrameType(), Flags: c.Flags(), Payload: payload}, nil
}

// Decode unmarshals the payload of f with the codec its flags name.
func Decode(f *Frame) (Message, error) {
	var c Codec = Binary
	if f.Flags.Has(FlagMsgPack) {
		c = MsgPack
	}
	return c.Unmarshal(f.Type, f.Payload)
}

type binaryCodec struct{}

func (binaryCodec) Name() string      { return "villain.v1.bin" }
func (binaryCodec) Flags() FrameFlags { return 0 }

func (binaryCodec) Marshal(m Message) ([]byte, error) {
	e := NewEncoder()
	switch m := m.(type) {
	case *Hello:
		m.encode(e)
	case *Welcome:
		m.encode(e)
	case *Ops:
		m.encode(e)
	case *Event:
		if err := m.encode(e); err != nil {
			return nil, err
		}
	case *Control:
		m.encode(e)
	case *ErrorMessage:
		m.encode(e)
	default:
		return nil, fmt.Errorf("protocol: cannot encode %T", m)
	}
	return e.Bytes(), nil
}

func (binaryCodec) Unmarshal(t FrameType, payload []byte) (Message, error) {
	d := NewDecoder(payload)
	var (
		m   Message
		err error
	)
	switch t {
	case FrameHello:
		m, err = decodeHello(d)
	case FrameWelcome:
		m, err = decodeWelcome(d)
	case FrameOps:
		m, err = decodeOps(d)
	case FrameEvent:
		m, err = decodeEvent(d)
	case FrameControl:
		m, err = decodeControl(d)
	case FrameError:
		m, err = decodeErrorMessage(d)
	default:
		return nil, ErrInvalidFrameType
	}
	if err != nil {
		return nil, fmt.Errorf("protocol: decode %s: %w", t, err)
	}
	if err := d.Done(); err != nil {
		return nil, fmt.Errorf("protocol: decode %s: %w", t, err)
	}
	return m, nil
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string      { return "villain.v1.msgpack" }
func (msgpackCodec) Flags() FrameFlags { return FlagMsgPack }

// opWire is the MessagePack shape of a vdom.Op.
type opWire struct {
	Kind     vdom.OpKind `msgpack:"k"`
	Node     vdom.NodeID `msgpack:"n"`
	Parent   vdom.NodeID `msgpack:"p,omitempty"`
	Before   vdom.NodeID `msgpack:"b,omitempty"`
	Old      vdom.NodeID `msgpack:"o,omitempty"`
	Index    int         `msgpack:"i,omitempty"`
	NodeKind vdom.VKind  `msgpack:"t,omitempty"`
	Tag      string      `msgpack:"g,omitempty"`
	Name     string      `msgpack:"a,omitempty"`
	Value    string      `msgpack:"v,omitempty"`
}

type opsWire struct {
	Seq uint64   `msgpack:"q"`
	Ops []opWire `msgpack:"o"`
}

func (msgpackCodec) Marshal(m Message) ([]byte, error) {
	var v any = m
	if b, ok := m.(*Ops); ok {
		w := opsWire{Seq: b.Seq, Ops: make([]opWire, len(b.Ops))}
		for i, op := range b.Ops {
			w.Ops[i] = opWire(op)
		}
		v = &w
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", m.FrameType(), err)
	}
	return buf.Bytes(), nil
}

func (msgpackCodec) Unmarshal(t FrameType, payload []byte) (Message, error) {
	var m Message
	switch t {
	case FrameHello:
		m = &Hello{}
	case FrameWelcome:
		m = &Welcome{}
	case FrameEvent:
		m = &Event{}
	case FrameControl:
		m = &Control{}
	case FrameError:
		m = &ErrorMessage{}
	case FrameOps:
	default:
		return nil, ErrInvalidFrameType
	}

	// The decoder sizes slices and maps from their headers.
	if err := scanMsgPack(payload); err != nil {
		return nil, fmt.Errorf("protocol: decode %s: %w", t, err)
	}
	dec := msgpack.NewDecoder(bytes.NewReader(payload))
	dec.UseLooseInterfaceDecoding(true)

	if t == FrameOps {
		var w opsWire
		if err := dec.Decode(&w); err != nil {
			return nil, fmt.Errorf("protocol: decode %s: %w", t, err)
		}
		b := &Ops{Seq: w.Seq, Ops: make([]vdom.Op, len(w.Ops))}
		for i, op := range w.Ops {
			b.Ops[i] = vdom.Op(op)
		}
		return b, nil
	}
	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("protocol: decode %s: %w", t, err)
	}
	if ev, ok := m.(*Event); ok && ev.Name == "" {
		return nil, fmt.Errorf("protocol: decode %s: event without a name", t)
	}
	return m, nil
}
