package sqlgraph

import (
	"context"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/ogm/pkg/graph"
)

func TestPropsRoundTrip(t *testing.T) {
	day := graph.DateOf(time.Date(2024, 2, 29, 13, 0, 0, 0, time.UTC))
	props := map[string]any{
		"name":    "Ann",
		"count":   42,
		"ratio":   0.25,
		"ok":      true,
		"price":   big.NewRat(199, 100),
		"day":     day,
		"nested":  []any{big.NewRat(1, 3), "x"},
		"doc":     map[string]any{"when": day},
		"payload": []byte{1, 2, 3},
	}

	data, err := encodeProps(props)
	require.NoError(t, err)
	got, err := decodeProps(data)
	require.NoError(t, err)

	assert.Equal(t, "Ann", got["name"])
	assert.Equal(t, int64(42), got["count"])
	assert.Equal(t, 0.25, got["ratio"])
	assert.Equal(t, true, got["ok"])
	assert.Equal(t, day, got["day"])
	assert.Equal(t, []byte{1, 2, 3}, got["payload"])
	assert.Equal(t, map[string]any{"when": day}, got["doc"])

	price, ok := got["price"].(*big.Rat)
	require.True(t, ok)
	assert.Equal(t, "199/100", price.RatString())

	nested, ok := got["nested"].([]any)
	require.True(t, ok)
	require.Len(t, nested, 2)
	assert.Equal(t, "1/3", nested[0].(*big.Rat).RatString())
}

func TestDecodeEmptyProps(t *testing.T) {
	got, err := decodeProps(nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = decodeProps([]byte{0xc1})
	assert.Error(t, err)
}

func TestDecodeNormalizesWidths(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"small positive", 7, int64(7)},
		{"negative", int8(-3), int64(-3)},
		{"uint16", uint16(300), int64(300)},
		{"year", int64(2020), int64(2020)},
		{"large", uint64(1) << 40, int64(1) << 40},
		{"max int64", int64(math.MaxInt64), int64(math.MaxInt64)},
		{"above int64", uint64(math.MaxUint64), uint64(math.MaxUint64)},
		{"float32", float32(0.5), float64(0.5)},
		{"bytes", []byte{1, 2}, []byte{1, 2}},
		{"list", []any{uint8(1), []byte{9}}, []any{int64(1), []byte{9}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := encodeProps(map[string]any{"v": tt.in})
			require.NoError(t, err)
			got, err := decodeProps(data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got["v"])
		})
	}
}

func TestStoredBytesSurviveReload(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)
	require.NoError(t, s.Schema().CreateClass(ctx, "Blob", graph.BaseVertex))

	v := s.NewVertex("Blob")
	v.SetProperty("data", []byte{1, 2})
	v.SetProperty("size", int64(2))
	require.NoError(t, s.Save(ctx, v))

	got := loadVertex(t, s, v.Identity())
	assert.Equal(t, []byte{1, 2}, got.Property("data"))
	assert.Equal(t, int64(2), got.Property("size"))
}

func TestEncodingIsDeterministic(t *testing.T) {
	props := map[string]any{"b": 1, "a": "x", "c": map[string]any{"z": 1, "y": 2}}
	first, err := encodeProps(props)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := encodeProps(props)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEncodeKeyIgnoresIntWidth(t *testing.T) {
	a, err := encodeKey([]any{"Ann", 7})
	require.NoError(t, err)
	b, err := encodeKey([]any{"Ann", int64(7)})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := encodeKey([]any{"Ann", 8})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestEncodeDoc(t *testing.T) {
	doc, err := encodeDoc(map[string]any{
		"name":  "Ann",
		"price": big.NewRat(3, 2),
		"day":   graph.DateOf(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Ann","price":"3/2","day":"2024-01-02"}`, doc)
}
