package protocol

import (
	"fmt"
	"sort"
)

// ValueType tags an event payload value in the binary codec.
type ValueType uint8

const (
	ValueNull   ValueType = 0x00
	ValueBool   ValueType = 0x01
	ValueInt    ValueType = 0x02
	ValueFloat  ValueType = 0x03
	ValueString ValueType = 0x04
	ValueList   ValueType = 0x05
	ValueObject ValueType = 0x06
)

// encodeValue writes a payload value. Payloads are JSON-shaped: nil, bool,
// numbers, strings, lists and string-keyed objects.
func encodeValue(e *Encoder, v any, depth int) error {
	if depth > MaxValueDepth {
		return ErrMaxDepthExceeded
	}
	switch val := v.(type) {
	case nil:
		e.WriteByte(byte(ValueNull))
	case bool:
		e.WriteByte(byte(ValueBool))
		e.WriteBool(val)
	case int:
		e.WriteByte(byte(ValueInt))
		e.WriteSvarint(int64(val))
	case int64:
		e.WriteByte(byte(ValueInt))
		e.WriteSvarint(val)
	case float64:
		e.WriteByte(byte(ValueFloat))
		e.WriteFloat64(val)
	case string:
		e.WriteByte(byte(ValueString))
		e.WriteString(val)
	case []any:
		e.WriteByte(byte(ValueList))
		e.WriteUvarint(uint64(len(val)))
		for _, item := range val {
			if err := encodeValue(e, item, depth+1); err != nil {
				return err
			}
		}
	case map[string]any:
		e.WriteByte(byte(ValueObject))
		e.WriteUvarint(uint64(len(val)))
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			e.WriteString(k)
			if err := encodeValue(e, val[k], depth+1); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("protocol: unsupported payload type %T", v)
	}
	return nil
}

func decodeValue(d *Decoder, depth int) (any, error) {
	if depth > MaxValueDepth {
		return nil, ErrMaxDepthExceeded
	}
	tag, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	switch ValueType(tag) {
	case ValueNull:
		return nil, nil
	case ValueBool:
		return d.ReadBool()
	case ValueInt:
		return d.ReadSvarint()
	case ValueFloat:
		return d.ReadFloat64()
	case ValueString:
		return d.ReadString()
	case ValueList:
		count, err := d.ReadCount()
		if err != nil {
			return nil, err
		}
		list := make([]any, count)
		for i := range list {
			if list[i], err = decodeValue(d, depth+1); err != nil {
				return nil, err
			}
		}
		return list, nil
	case ValueObject:
		count, err := d.ReadCount()
		if err != nil {
			return nil, err
		}
		obj := make(map[string]any, count)
		for i := 0; i < count; i++ {
			key, err := d.ReadString()
			if err != nil {
				return nil, err
			}
			if obj[key], err = decodeValue(d, depth+1); err != nil {
				return nil, err
			}
		}
		return obj, nil
	}
	return nil, fmt.Errorf("protocol: unknown value tag %#x", tag)
}
