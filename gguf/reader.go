// Package gguf parses the header and key/value metadata of a GGUF model
// file without mapping its tensor data, per §4.A and the bit-exact wire
// format in §6.
package gguf

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
)

// arraySkipThreshold is the element count at or above which array
// payloads are skipped rather than materialized, to avoid loading a
// full tokenizer vocabulary into memory.
const arraySkipThreshold = 1000

var magicBytes = [4]byte{'G', 'G', 'U', 'F'}

// Read opens path and parses its GGUF header and metadata, blocking
// until the read completes.
func Read(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(path, err)
		}
		return nil, malformed("open", err)
	}
	defer f.Close()

	return parse(bufio.NewReader(f))
}

// NewStreamReader parses a GGUF header and metadata from an already-open
// stream, such as the leading bytes of an in-progress download. It
// shares identical parsing logic with Read.
func NewStreamReader(r io.Reader) (*Metadata, error) {
	return parse(bufio.NewReader(r))
}

func parse(r *bufio.Reader) (*Metadata, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, malformed("magic", err)
		}
		return nil, malformed("magic", err)
	}
	if magic != magicBytes {
		return nil, notGGUF(magic)
	}

	version, err := readUint32(r)
	if err != nil {
		return nil, malformed("version", err)
	}
	if version != 2 && version != 3 {
		return nil, unsupportedVersion(version)
	}

	tensorCount, err := readUint64(r)
	if err != nil {
		return nil, malformed("tensor_count", err)
	}
	kvCount, err := readUint64(r)
	if err != nil {
		return nil, malformed("kv_count", err)
	}

	md := &Metadata{
		Version:     version,
		TensorCount: tensorCount,
		KVCount:     kvCount,
		Entries:     make(map[string]Value, kvCount),
		Order:       make([]string, 0, kvCount),
	}

	for i := uint64(0); i < kvCount; i++ {
		key, err := readString(r)
		if err != nil {
			return nil, malformed("kv_key", err)
		}
		typeTag, err := readUint32(r)
		if err != nil {
			return nil, malformed("kv_type", err)
		}
		value, err := readValue(r, ValueType(typeTag))
		if err != nil {
			return nil, malformed("kv_value("+key+")", err)
		}
		md.Entries[key] = value
		md.Order = append(md.Order, key)
	}

	return md, nil
}

func readValue(r *bufio.Reader, t ValueType) (Value, error) {
	if t == TypeArray {
		arr, err := readArray(r)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: TypeArray, Array: arr}, nil
	}
	scalar, err := readScalar(r, t)
	if err != nil {
		return Value{}, err
	}
	return Value{Type: t, Scalar: scalar}, nil
}

func readArray(r *bufio.Reader) (*ArrayValue, error) {
	elemTypeTag, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	elemType := ValueType(elemTypeTag)
	length, err := readUint64(r)
	if err != nil {
		return nil, err
	}

	if length >= arraySkipThreshold {
		if err := skipElements(r, elemType, length); err != nil {
			return nil, err
		}
		return &ArrayValue{ElemType: elemType, Len: length, Skipped: true}, nil
	}

	elements := make([]any, length)
	for i := uint64(0); i < length; i++ {
		v, err := readValue(r, elemType)
		if err != nil {
			return nil, err
		}
		if v.Array != nil {
			elements[i] = v.Array
		} else {
			elements[i] = v.Scalar
		}
	}
	return &ArrayValue{ElemType: elemType, Len: length, Elements: elements}, nil
}

// skipElements discards length elements of elemType without
// materializing them. Fixed-width element types are discarded in one
// bulk copy; strings and nested arrays must still be traversed
// element-by-element since their length prefixes are data-dependent.
func skipElements(r *bufio.Reader, elemType ValueType, length uint64) error {
	if size, ok := elemType.fixedSize(); ok {
		_, err := io.CopyN(io.Discard, r, int64(size)*int64(length))
		return err
	}
	for i := uint64(0); i < length; i++ {
		switch elemType {
		case TypeString:
			if _, err := readString(r); err != nil {
				return err
			}
		case TypeArray:
			if _, err := readArray(r); err != nil {
				return err
			}
		}
	}
	return nil
}

func readScalar(r *bufio.Reader, t ValueType) (any, error) {
	switch t {
	case TypeUint8:
		b, err := r.ReadByte()
		return uint8(b), err
	case TypeInt8:
		b, err := r.ReadByte()
		return int8(b), err
	case TypeUint16:
		v, err := readFixed(r, 2)
		return uint16(binary.LittleEndian.Uint16(v)), err
	case TypeInt16:
		v, err := readFixed(r, 2)
		return int16(binary.LittleEndian.Uint16(v)), err
	case TypeUint32:
		v, err := readUint32(r)
		return v, err
	case TypeInt32:
		v, err := readUint32(r)
		return int32(v), err
	case TypeFloat32:
		v, err := readUint32(r)
		return float32FromBits(v), err
	case TypeBool:
		b, err := r.ReadByte()
		return b != 0, err
	case TypeString:
		return readString(r)
	case TypeUint64:
		return readUint64(r)
	case TypeInt64:
		v, err := readUint64(r)
		return int64(v), err
	case TypeFloat64:
		v, err := readUint64(r)
		return float64FromBits(v), err
	default:
		return nil, errUnknownType(t)
	}
}

func readFixed(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	_, err := io.ReadFull(r, buf)
	return buf, err
}

func readUint32(r io.Reader) (uint32, error) {
	buf, err := readFixed(r, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

func readUint64(r io.Reader) (uint64, error) {
	buf, err := readFixed(r, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

func readString(r io.Reader) (string, error) {
	n, err := readUint64(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
