package protocol

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// maxMsgPackDepth allows for the message map and the event payload field
// around a payload of MaxValueDepth.
const maxMsgPackDepth = MaxValueDepth + 2

// scanMsgPack checks that payload holds exactly one MessagePack value whose
// length headers fit in the bytes that follow them. Every container element
// takes at least one byte, so a short payload cannot declare a large
// container. Map keys must be strings and extension types are rejected; no
// message uses either.
func scanMsgPack(payload []byte) error {
	s := &msgpackScanner{buf: payload}
	if err := s.value(0); err != nil {
		return err
	}
	if s.pos != len(s.buf) {
		return ErrTrailingBytes
	}
	return nil
}

type msgpackScanner struct {
	buf []byte
	pos int
}

func (s *msgpackScanner) remaining() int {
	return len(s.buf) - s.pos
}

func (s *msgpackScanner) code() (byte, error) {
	if s.pos >= len(s.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	c := s.buf[s.pos]
	s.pos++
	return c, nil
}

func (s *msgpackScanner) skip(n uint64) error {
	if n > uint64(s.remaining()) {
		return io.ErrUnexpectedEOF
	}
	s.pos += int(n)
	return nil
}

// length reads a big-endian length header of size bytes.
func (s *msgpackScanner) length(size int) (uint64, error) {
	if size > s.remaining() {
		return 0, io.ErrUnexpectedEOF
	}
	var n uint64
	for _, b := range s.buf[s.pos : s.pos+size] {
		n = n<<8 | uint64(b)
	}
	s.pos += size
	return n, nil
}

func (s *msgpackScanner) bytes(n uint64) error {
	if n > MaxAllocation {
		return ErrAllocationTooLarge
	}
	return s.skip(n)
}

func (s *msgpackScanner) count(n uint64, per uint64) error {
	if n > MaxCollectionCount {
		return ErrCollectionTooLarge
	}
	if n*per > uint64(s.remaining()) {
		return fmt.Errorf("%w: %d elements in %d bytes", ErrMalformedPayload, n, s.remaining())
	}
	return nil
}

func (s *msgpackScanner) array(n uint64, depth int) error {
	if err := s.count(n, 1); err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		if err := s.value(depth + 1); err != nil {
			return err
		}
	}
	return nil
}

func (s *msgpackScanner) mapping(n uint64, depth int) error {
	if err := s.count(n, 2); err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		if err := s.key(); err != nil {
			return err
		}
		if err := s.value(depth + 1); err != nil {
			return err
		}
	}
	return nil
}

func (s *msgpackScanner) key() error {
	c, err := s.code()
	if err != nil {
		return err
	}
	if !msgpcode.IsString(c) {
		return fmt.Errorf("%w: map key type %#x", ErrMalformedPayload, c)
	}
	return s.str(c)
}

func (s *msgpackScanner) str(c byte) error {
	var n uint64
	var err error
	switch c {
	case msgpcode.Str8, msgpcode.Bin8:
		n, err = s.length(1)
	case msgpcode.Str16, msgpcode.Bin16:
		n, err = s.length(2)
	case msgpcode.Str32, msgpcode.Bin32:
		n, err = s.length(4)
	default:
		n = uint64(c & msgpcode.FixedStrMask)
	}
	if err != nil {
		return err
	}
	return s.bytes(n)
}

func (s *msgpackScanner) value(depth int) error {
	if depth > maxMsgPackDepth {
		return ErrMaxDepthExceeded
	}
	c, err := s.code()
	if err != nil {
		return err
	}
	switch {
	case msgpcode.IsFixedNum(c), c == msgpcode.Nil, c == msgpcode.False, c == msgpcode.True:
		return nil
	case msgpcode.IsString(c), msgpcode.IsBin(c):
		return s.str(c)
	case msgpcode.IsFixedArray(c):
		return s.array(uint64(c&msgpcode.FixedArrayMask), depth)
	case msgpcode.IsFixedMap(c):
		return s.mapping(uint64(c&msgpcode.FixedMapMask), depth)
	}

	switch c {
	case msgpcode.Uint8, msgpcode.Int8:
		return s.skip(1)
	case msgpcode.Uint16, msgpcode.Int16:
		return s.skip(2)
	case msgpcode.Uint32, msgpcode.Int32, msgpcode.Float:
		return s.skip(4)
	case msgpcode.Uint64, msgpcode.Int64, msgpcode.Double:
		return s.skip(8)
	case msgpcode.Array16, msgpcode.Array32:
		n, err := s.length(headerSize(c == msgpcode.Array16))
		if err != nil {
			return err
		}
		return s.array(n, depth)
	case msgpcode.Map16, msgpcode.Map32:
		n, err := s.length(headerSize(c == msgpcode.Map16))
		if err != nil {
			return err
		}
		return s.mapping(n, depth)
	}
	return fmt.Errorf("%w: type code %#x", ErrMalformedPayload, c)
}

func headerSize(short bool) int {
	if short {
		return 2
	}
	return 4
}
