package sqlgraph

import (
	"bytes"
	"fmt"
	"math"
	"math/big"

	jsoniter "github.com/json-iterator/go"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/joss/ogm/pkg/graph"
)

// Property maps are stored as msgpack. Decimals and dates have no native
// msgpack form and travel as extension types.
const (
	extDecimal int8 = 1
	extDate    int8 = 2
)

func init() {
	msgpack.RegisterExt(extDecimal, (*decimal)(nil))
	msgpack.RegisterExt(extDate, (*date)(nil))
}

type decimal struct {
	r *big.Rat
}

func (d *decimal) MarshalMsgpack() ([]byte, error) {
	return []byte(d.r.RatString()), nil
}

func (d *decimal) UnmarshalMsgpack(b []byte) error {
	r, ok := new(big.Rat).SetString(string(b))
	if !ok {
		return fmt.Errorf("decode decimal %q", b)
	}
	d.r = r
	return nil
}

type date struct {
	d graph.Date
}

func (d *date) MarshalMsgpack() ([]byte, error) {
	return d.d.MarshalText()
}

func (d *date) UnmarshalMsgpack(b []byte) error {
	return d.d.UnmarshalText(b)
}

var docJSON = jsoniter.ConfigCompatibleWithStandardLibrary

func newEncoder(buf *bytes.Buffer) *msgpack.Encoder {
	enc := msgpack.NewEncoder(buf)
	enc.SetSortMapKeys(true)
	enc.UseCompactInts(true)
	return enc
}

// encodeProps serializes a property map. Equal maps encode to equal bytes.
func encodeProps(props map[string]any) ([]byte, error) {
	wrapped := make(map[string]any, len(props))
	for k, v := range props {
		wrapped[k] = wrap(v)
	}
	var buf bytes.Buffer
	if err := newEncoder(&buf).Encode(wrapped); err != nil {
		return nil, fmt.Errorf("encode properties: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeProps reverses encodeProps. Integers come back as int64 (uint64
// only above MaxInt64), floats as float64 and binary values as []byte.
func decodeProps(data []byte) (map[string]any, error) {
	props := make(map[string]any)
	if len(data) == 0 {
		return props, nil
	}
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&props); err != nil {
		return nil, fmt.Errorf("decode properties: %w", err)
	}
	for k, v := range props {
		props[k] = unwrap(v)
	}
	return props, nil
}

// encodeKey serializes the values of a unique index entry.
func encodeKey(values []any) ([]byte, error) {
	var buf bytes.Buffer
	if err := newEncoder(&buf).Encode(wrap(values)); err != nil {
		return nil, fmt.Errorf("encode index key: %w", err)
	}
	return buf.Bytes(), nil
}

// encodeDoc renders the JSON mirror of a property map that SQL queries can
// reach with json_extract.
func encodeDoc(props map[string]any) (string, error) {
	doc, err := docJSON.MarshalToString(props)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return doc, nil
}

func wrap(v any) any {
	switch x := v.(type) {
	case *big.Rat:
		if x == nil {
			return nil
		}
		return &decimal{r: x}
	case graph.Date:
		return &date{d: x}
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = wrap(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = wrap(e)
		}
		return out
	}
	return v
}

func unwrap(v any) any {
	switch x := v.(type) {
	case *decimal:
		return x.r
	case decimal:
		return x.r
	case *date:
		return x.d
	case date:
		return x.d
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x)
		}
		return x
	case float32:
		return float64(x)
	case []any:
		for i, e := range x {
			x[i] = unwrap(e)
		}
		return x
	case map[string]any:
		for k, e := range x {
			x[k] = unwrap(e)
		}
		return x
	}
	return v
}
