package protocol

import (
	"errors"
	"io"
)

// FrameHeaderSize is the size of the frame header in bytes.
const FrameHeaderSize = 6

// MaxPayloadSize bounds a frame payload.
const MaxPayloadSize = MaxAllocation

// FrameType identifies the message carried by a frame.
type FrameType uint8

const (
	FrameHello   FrameType = 0x00 // Client → Server handshake
	FrameEvent   FrameType = 0x01 // Client → Server event
	FrameOps     FrameType = 0x02 // Server → Client op batch
	FrameControl FrameType = 0x03 // Ping, pong, resync
	FrameWelcome FrameType = 0x04 // Server → Client handshake reply
	FrameError   FrameType = 0x05 // Error message
)

// String returns the string representation of the frame type.
func (ft FrameType) String() string {
	switch ft {
	case FrameHello:
		return "Hello"
	case FrameEvent:
		return "Event"
	case FrameOps:
		return "Ops"
	case FrameControl:
		return "Control"
	case FrameWelcome:
		return "Welcome"
	case FrameError:
		return "Error"
	default:
		return "Unknown"
	}
}

// FrameFlags qualify the payload.
type FrameFlags uint8

const (
	// FlagMsgPack marks a MessagePack payload; otherwise the payload uses
	// the binary codec.
	FlagMsgPack FrameFlags = 0x01
)

// Has reports whether ff contains flag.
func (ff FrameFlags) Has(flag FrameFlags) bool {
	return ff&flag != 0
}

// Frame errors.
var (
	ErrFrameTooLarge    = errors.New("protocol: frame payload too large")
	ErrInvalidFrameType = errors.New("protocol: invalid frame type")
)

// Frame is one protocol message on the wire.
//
// Wire format (6 bytes header + payload):
//
//	┌────────────┬───────────┬─────────────────────────────┐
//	│ Frame Type │ Flags     │ Payload Length              │
//	│ (1 byte)   │ (1 byte)  │ (4 bytes, big-endian)       │
//	└────────────┴───────────┴─────────────────────────────┘
type Frame struct {
	Type    FrameType
	Flags   FrameFlags
	Payload []byte
}

// Encode returns the frame with its header.
func (f *Frame) Encode() []byte {
	e := &Encoder{buf: make([]byte, 0, FrameHeaderSize+len(f.Payload))}
	f.EncodeTo(e)
	return e.Bytes()
}

// EncodeTo appends the frame to e.
func (f *Frame) EncodeTo(e *Encoder) {
	e.WriteByte(byte(f.Type))
	e.WriteByte(byte(f.Flags))
	e.WriteUint32(uint32(len(f.Payload)))
	e.buf = append(e.buf, f.Payload...)
}

// DecodeFrame decodes a frame occupying all of data.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) < FrameHeaderSize {
		return nil, io.ErrUnexpectedEOF
	}
	d := NewDecoder(data)
	ft, _ := d.ReadByte()
	flags, _ := d.ReadByte()
	length, _ := d.ReadUint32()
	if length > MaxPayloadSize {
		return nil, ErrFrameTooLarge
	}
	if ft > byte(FrameError) {
		return nil, ErrInvalidFrameType
	}
	if uint64(d.Remaining()) < uint64(length) {
		return nil, io.ErrUnexpectedEOF
	}
	if uint64(d.Remaining()) > uint64(length) {
		return nil, ErrTrailingBytes
	}
	payload := make([]byte, length)
	copy(payload, data[FrameHeaderSize:])
	return &Frame{Type: FrameType(ft), Flags: FrameFlags(flags), Payload: payload}, nil
}

// ReadFrame reads one frame from r.
func ReadFrame(r io.Reader) (*Frame, error) {
	header := make([]byte, FrameHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	length := uint32(header[2])<<24 | uint32(header[3])<<16 | uint32(header[4])<<8 | uint32(header[5])
	if length > MaxPayloadSize {
		return nil, ErrFrameTooLarge
	}
	if header[0] > byte(FrameError) {
		return nil, ErrInvalidFrameType
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return &Frame{Type: FrameType(header[0]), Flags: FrameFlags(header[1]), Payload: payload}, nil
}

// WriteFrame writes f to w.
func WriteFrame(w io.Writer, f *Frame) error {
	if len(f.Payload) > MaxPayloadSize {
		return ErrFrameTooLarge
	}
	_, err := w.Write(f.Encode())
	return err
}
