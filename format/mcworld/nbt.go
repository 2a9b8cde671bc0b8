package mcworld

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/voxelforge/voxconv/format"
)

// NBT tag-tree parsing. Values are kept as loosely typed Go values; long
// arrays stay packed until a consumer asks for individual block states.
const (
	tagEnd       = 0
	tagByte      = 1
	tagShort     = 2
	tagInt       = 3
	tagLong      = 4
	tagFloat     = 5
	tagDouble    = 6
	tagByteArray = 7
	tagString    = 8
	tagList      = 9
	tagCompound  = 10
	tagIntArray  = 11
	tagLongArray = 12
)

// Compound is a named tag tree node.
type Compound map[string]any

func (c Compound) Compound(key string) Compound {
	v, _ := c[key].(Compound)
	return v
}

func (c Compound) List(key string) []any {
	v, _ := c[key].([]any)
	return v
}

func (c Compound) String(key string) string {
	v, _ := c[key].(string)
	return v
}

func (c Compound) Int(key string) (int32, bool) {
	switch v := c[key].(type) {
	case int8:
		return int32(v), true
	case int16:
		return int32(v), true
	case int32:
		return v, true
	case int64:
		return int32(v), true
	}
	return 0, false
}

func (c Compound) LongArray(key string) []int64 {
	v, _ := c[key].([]int64)
	return v
}

// parseNBT reads one named root compound.
func parseNBT(data []byte) (Compound, error) {
	r := bytes.NewReader(data)
	typ, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: nbt root", format.ErrTruncated)
	}
	if typ != tagCompound {
		return nil, fmt.Errorf("%w: nbt root tag %d", format.ErrMalformed, typ)
	}
	if _, err := readNBTString(r); err != nil {
		return nil, err
	}
	v, err := readPayload(r, tagCompound, 0)
	if err != nil {
		return nil, err
	}
	root, ok := v.(Compound)
	if !ok {
		return nil, fmt.Errorf("%w: nbt root payload", format.ErrMalformed)
	}
	return root, nil
}

const maxNBTDepth = 64

func readPayload(r *bytes.Reader, typ byte, depth int) (any, error) {
	if depth > maxNBTDepth {
		return nil, fmt.Errorf("%w: nbt nesting too deep", format.ErrMalformed)
	}
	switch typ {
	case tagByte:
		b, err := r.ReadByte()
		return int8(b), wrapEOF(err)
	case tagShort:
		var v int16
		err := binary.Read(r, binary.BigEndian, &v)
		return v, wrapEOF(err)
	case tagInt:
		var v int32
		err := binary.Read(r, binary.BigEndian, &v)
		return v, wrapEOF(err)
	case tagLong:
		var v int64
		err := binary.Read(r, binary.BigEndian, &v)
		return v, wrapEOF(err)
	case tagFloat:
		var v uint32
		err := binary.Read(r, binary.BigEndian, &v)
		return math.Float32frombits(v), wrapEOF(err)
	case tagDouble:
		var v uint64
		err := binary.Read(r, binary.BigEndian, &v)
		return math.Float64frombits(v), wrapEOF(err)
	case tagByteArray:
		n, err := readNBTLength(r)
		if err != nil {
			return nil, err
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, wrapEOF(err)
		}
		return b, nil
	case tagString:
		return readNBTString(r)
	case tagList:
		elemType, err := r.ReadByte()
		if err != nil {
			return nil, wrapEOF(err)
		}
		n, err := readNBTLength(r)
		if err != nil {
			return nil, err
		}
		list := make([]any, 0, n)
		for i := 0; i < n; i++ {
			v, err := readPayload(r, elemType, depth+1)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	case tagCompound:
		c := make(Compound)
		for {
			childType, err := r.ReadByte()
			if err != nil {
				return nil, wrapEOF(err)
			}
			if childType == tagEnd {
				return c, nil
			}
			name, err := readNBTString(r)
			if err != nil {
				return nil, err
			}
			v, err := readPayload(r, childType, depth+1)
			if err != nil {
				return nil, err
			}
			c[name] = v
		}
	case tagIntArray:
		n, err := readNBTLength(r)
		if err != nil {
			return nil, err
		}
		out := make([]int32, n)
		for i := range out {
			if err := binary.Read(r, binary.BigEndian, &out[i]); err != nil {
				return nil, wrapEOF(err)
			}
		}
		return out, nil
	case tagLongArray:
		n, err := readNBTLength(r)
		if err != nil {
			return nil, err
		}
		out := make([]int64, n)
		for i := range out {
			if err := binary.Read(r, binary.BigEndian, &out[i]); err != nil {
				return nil, wrapEOF(err)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: nbt tag type %d", format.ErrMalformed, typ)
}

func readNBTString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", wrapEOF(err)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", wrapEOF(err)
	}
	return string(b), nil
}

func readNBTLength(r *bytes.Reader) (int, error) {
	var n int32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return 0, wrapEOF(err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative nbt length", format.ErrMalformed)
	}
	return int(n), nil
}

func wrapEOF(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", format.ErrTruncated, err)
}
