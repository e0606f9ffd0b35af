package protocol

import (
	"fmt"
	"io"

	"github.com/vango-dev/villain/pkg/vdom"
)

// Version is the protocol version as major.minor.
type Version struct {
	Major uint8 `msgpack:"M"`
	Minor uint8 `msgpack:"m"`
}

// CurrentVersion is the protocol version spoken by this package.
var CurrentVersion = Version{Major: 1, Minor: 0}

// Compatible reports whether a peer speaking v can talk to this package.
func (v Version) Compatible() bool {
	return v.Major == CurrentVersion.Major
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Message is a decoded frame payload.
type Message interface {
	FrameType() FrameType
}

// Hello opens a session. Session and LastSeq are set when the client
// resumes after a reconnect.
type Hello struct {
	Version Version `msgpack:"v"`
	Session string  `msgpack:"s,omitempty"`
	LastSeq uint64  `msgpack:"l,omitempty"`
}

// FrameType implements Message.
func (*Hello) FrameType() FrameType { return FrameHello }

// HandshakeStatus is the outcome of a Hello.
type HandshakeStatus uint8

const (
	HandshakeOK              HandshakeStatus = 0x00
	HandshakeVersionMismatch HandshakeStatus = 0x01
	HandshakeSessionExpired  HandshakeStatus = 0x02
	HandshakeServerBusy      HandshakeStatus = 0x03
	HandshakeInternalError   HandshakeStatus = 0x04
)

// String returns the string representation of the handshake status.
func (hs HandshakeStatus) String() string {
	switch hs {
	case HandshakeOK:
		return "OK"
	case HandshakeVersionMismatch:
		return "VersionMismatch"
	case HandshakeSessionExpired:
		return "SessionExpired"
	case HandshakeServerBusy:
		return "ServerBusy"
	case HandshakeInternalError:
		return "InternalError"
	default:
		return "Unknown"
	}
}

// Welcome answers a Hello. Resumed is set when the session continues and
// only missed batches follow; otherwise the client clears its mount point
// and a full mount follows.
type Welcome struct {
	Status     HandshakeStatus `msgpack:"st"`
	Session    string          `msgpack:"s"`
	Component  string          `msgpack:"c"`
	NextSeq    uint64          `msgpack:"n"`
	ServerTime uint64          `msgpack:"t"`
	Resumed    bool            `msgpack:"r,omitempty"`
}

// FrameType implements Message.
func (*Welcome) FrameType() FrameType { return FrameWelcome }

// Ops carries the ops of one commit. Seq increases by one per batch.
type Ops struct {
	Seq uint64    `msgpack:"q"`
	Ops []vdom.Op `msgpack:"o"`
}

// FrameType implements Message.
func (*Ops) FrameType() FrameType { return FrameOps }

// Event is a host event on an engine node.
type Event struct {
	Seq     uint64      `msgpack:"q"`
	Node    vdom.NodeID `msgpack:"n"`
	Name    string      `msgpack:"e"`
	Payload any         `msgpack:"p,omitempty"`
}

// FrameType implements Message.
func (*Event) FrameType() FrameType { return FrameEvent }

// ControlKind identifies a control message.
type ControlKind uint8

const (
	ControlPing   ControlKind = 0x01
	ControlPong   ControlKind = 0x02
	ControlResync ControlKind = 0x10 // Client asks for batches after LastSeq
	ControlClose  ControlKind = 0x20
)

// String returns the string representation of the control kind.
func (ck ControlKind) String() string {
	switch ck {
	case ControlPing:
		return "Ping"
	case ControlPong:
		return "Pong"
	case ControlResync:
		return "Resync"
	case ControlClose:
		return "Close"
	default:
		return "Unknown"
	}
}

// Control is a ping, pong, resync request or close notice.
type Control struct {
	Kind      ControlKind `msgpack:"k"`
	Timestamp uint64      `msgpack:"t,omitempty"` // Unix milliseconds, ping and pong
	LastSeq   uint64      `msgpack:"l,omitempty"` // Resync
}

// FrameType implements Message.
func (*Control) FrameType() FrameType { return FrameControl }

func (h *Hello) encode(e *Encoder) {
	e.WriteByte(h.Version.Major)
	e.WriteByte(h.Version.Minor)
	e.WriteString(h.Session)
	e.WriteUvarint(h.LastSeq)
}

func decodeHello(d *Decoder) (*Hello, error) {
	h := &Hello{}
	var err error
	if h.Version.Major, err = d.ReadByte(); err != nil {
		return nil, err
	}
	if h.Version.Minor, err = d.ReadByte(); err != nil {
		return nil, err
	}
	if h.Session, err = d.ReadString(); err != nil {
		return nil, err
	}
	if h.LastSeq, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	return h, nil
}

func (w *Welcome) encode(e *Encoder) {
	e.WriteByte(byte(w.Status))
	e.WriteString(w.Session)
	e.WriteString(w.Component)
	e.WriteUvarint(w.NextSeq)
	e.WriteUint64(w.ServerTime)
	e.WriteBool(w.Resumed)
}

func decodeWelcome(d *Decoder) (*Welcome, error) {
	w := &Welcome{}
	status, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	w.Status = HandshakeStatus(status)
	if w.Session, err = d.ReadString(); err != nil {
		return nil, err
	}
	if w.Component, err = d.ReadString(); err != nil {
		return nil, err
	}
	if w.NextSeq, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	if w.ServerTime, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	if w.Resumed, err = d.ReadBool(); err != nil {
		return nil, err
	}
	return w, nil
}

// Binary op layout: kind byte, node varint, then per kind
//
//	CreateNode       node kind byte, tag, text
//	ReplaceNode      old varint, parent varint
//	SetAttribute     name, value
//	RemoveAttribute  name
//	SetText          value
//	InsertChild      parent varint, before varint, index varint
//	MoveNode         parent varint, before varint, index varint
func (b *Ops) encode(e *Encoder) {
	e.WriteUvarint(b.Seq)
	e.WriteUvarint(uint64(len(b.Ops)))
	for _, op := range b.Ops {
		encodeOp(e, op)
	}
}

func encodeOp(e *Encoder, op vdom.Op) {
	e.WriteByte(byte(op.Kind))
	e.WriteUvarint(uint64(op.Node))
	switch op.Kind {
	case vdom.OpCreateNode:
		e.WriteByte(byte(op.NodeKind))
		e.WriteString(op.Tag)
		e.WriteString(op.Value)
	case vdom.OpReplaceNode:
		e.WriteUvarint(uint64(op.Old))
		e.WriteUvarint(uint64(op.Parent))
	case vdom.OpSetAttribute:
		e.WriteString(op.Name)
		e.WriteString(op.Value)
	case vdom.OpRemoveAttribute:
		e.WriteString(op.Name)
	case vdom.OpSetText:
		e.WriteString(op.Value)
	case vdom.OpInsertChild, vdom.OpMoveNode:
		e.WriteUvarint(uint64(op.Parent))
		e.WriteUvarint(uint64(op.Before))
		e.WriteUvarint(uint64(op.Index))
	}
}

func decodeOps(d *Decoder) (*Ops, error) {
	seq, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	count, err := d.ReadCount()
	if err != nil {
		return nil, err
	}
	b := &Ops{Seq: seq, Ops: make([]vdom.Op, count)}
	for i := range b.Ops {
		if err := decodeOp(d, &b.Ops[i]); err != nil {
			return nil, fmt.Errorf("protocol: op %d: %w", i, err)
		}
	}
	return b, nil
}

func decodeOp(d *Decoder, op *vdom.Op) error {
	kind, err := d.ReadByte()
	if err != nil {
		return err
	}
	op.Kind = vdom.OpKind(kind)
	if op.Node, err = readNodeID(d); err != nil {
		return err
	}
	switch op.Kind {
	case vdom.OpCreateNode:
		nk, err := d.ReadByte()
		if err != nil {
			return err
		}
		if vdom.VKind(nk) > vdom.KindComponent {
			return fmt.Errorf("unknown node kind %d", nk)
		}
		op.NodeKind = vdom.VKind(nk)
		if op.Tag, err = d.ReadString(); err != nil {
			return err
		}
		op.Value, err = d.ReadString()
		return err
	case vdom.OpRemoveNode:
		return nil
	case vdom.OpReplaceNode:
		if op.Old, err = readNodeID(d); err != nil {
			return err
		}
		op.Parent, err = readNodeID(d)
		return err
	case vdom.OpSetAttribute:
		if op.Name, err = d.ReadString(); err != nil {
			return err
		}
		op.Value, err = d.ReadString()
		return err
	case vdom.OpRemoveAttribute:
		op.Name, err = d.ReadString()
		return err
	case vdom.OpSetText:
		op.Value, err = d.ReadString()
		return err
	case vdom.OpInsertChild, vdom.OpMoveNode:
		if op.Parent, err = readNodeID(d); err != nil {
			return err
		}
		if op.Before, err = readNodeID(d); err != nil {
			return err
		}
		index, err := d.ReadUvarint()
		if err != nil {
			return err
		}
		if index > MaxCollectionCount {
			return ErrCollectionTooLarge
		}
		op.Index = int(index)
		return nil
	}
	return fmt.Errorf("unknown op kind %#x", kind)
}

func readNodeID(d *Decoder) (vdom.NodeID, error) {
	v, err := d.ReadUvarint()
	return vdom.NodeID(v), err
}

func (ev *Event) encode(e *Encoder) error {
	e.WriteUvarint(ev.Seq)
	e.WriteUvarint(uint64(ev.Node))
	e.WriteString(ev.Name)
	return encodeValue(e, ev.Payload, 0)
}

func decodeEvent(d *Decoder) (*Event, error) {
	ev := &Event{}
	var err error
	if ev.Seq, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	if ev.Node, err = readNodeID(d); err != nil {
		return nil, err
	}
	if ev.Name, err = d.ReadString(); err != nil {
		return nil, err
	}
	if ev.Name == "" {
		return nil, fmt.Errorf("protocol: event without a name: %w", io.ErrUnexpectedEOF)
	}
	if ev.Payload, err = decodeValue(d, 0); err != nil {
		return nil, err
	}
	return ev, nil
}

func (c *Control) encode(e *Encoder) {
	e.WriteByte(byte(c.Kind))
	switch c.Kind {
	case ControlPing, ControlPong:
		e.WriteUint64(c.Timestamp)
	case ControlResync:
		e.WriteUvarint(c.LastSeq)
	}
}

func decodeControl(d *Decoder) (*Control, error) {
	kind, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	c := &Control{Kind: ControlKind(kind)}
	switch c.Kind {
	case ControlPing, ControlPong:
		c.Timestamp, err = d.ReadUint64()
	case ControlResync:
		c.LastSeq, err = d.ReadUvarint()
	case ControlClose:
	default:
		err = fmt.Errorf("protocol: unknown control kind %#x", kind)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}
