package trait

import (
	"math"
	"testing"

	"github.com/specialistvlad/traitgraph/internal/handle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestLayoutFields(t *testing.T) {
	fields, size, align := LayoutFields([]Field{
		{Name: "flag", Kind: KindBool},
		{Name: "weight", Kind: KindFloat64},
		{Name: "count", Kind: KindInt32},
	})
	assert.Equal(t, uint32(0), fields[0].Offset)
	assert.Equal(t, uint32(8), fields[1].Offset)
	assert.Equal(t, uint32(16), fields[2].Offset)
	assert.Equal(t, uint32(24), size)
	assert.Equal(t, uint32(8), align)
}

func TestPutLiteral(t *testing.T) {
	cases := []struct {
		name string
		kind FieldKind
		in   cty.Value
		want any
	}{
		{"bool", KindBool, cty.True, true},
		{"int32", KindInt32, cty.NumberIntVal(-20), int32(-20)},
		{"uint32", KindUint32, cty.NumberIntVal(7), uint32(7)},
		{"int64", KindInt64, cty.NumberIntVal(1 << 40), int64(1 << 40)},
		{"int64 max", KindInt64, cty.NumberIntVal(math.MaxInt64), int64(math.MaxInt64)},
		{"int64 min", KindInt64, cty.NumberIntVal(math.MinInt64), int64(math.MinInt64)},
		{"float32", KindFloat32, cty.NumberFloatVal(0.5), float32(0.5)},
		{"float64", KindFloat64, cty.NumberFloatVal(2.25), 2.25},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := make([]byte, 8)
			require.NoError(t, PutLiteral(tc.kind, buf, tc.in))
			assert.Equal(t, tc.want, Decode(tc.kind, buf))
		})
	}

	t.Run("rejects mismatches", func(t *testing.T) {
		buf := make([]byte, 8)
		assert.ErrorIs(t, PutLiteral(KindInt32, buf, cty.StringVal("x")), ErrValueKind)
		assert.ErrorIs(t, PutLiteral(KindInt32, buf, cty.NumberFloatVal(1.5)), ErrValueKind)
		assert.ErrorIs(t, PutLiteral(KindInt32, buf, cty.NumberIntVal(1<<33)), ErrValueKind)
		assert.ErrorIs(t, PutLiteral(KindInt64, buf, cty.MustParseNumberVal("1180591620717411303424")), ErrValueKind, "2^70")
		assert.ErrorIs(t, PutLiteral(KindUint32, buf, cty.MustParseNumberVal("-1180591620717411303424")), ErrValueKind)
		assert.ErrorIs(t, PutLiteral(KindFloat32, buf, cty.NumberFloatVal(1e39)), ErrValueKind)
		assert.ErrorIs(t, PutLiteral(KindFloat64, buf, cty.MustParseNumberVal("1e400")), ErrValueKind)
		assert.ErrorIs(t, PutLiteral(KindNodeHandle, buf, cty.NumberIntVal(1)), ErrValueKind)
		assert.ErrorIs(t, PutLiteral(KindBool, buf, cty.NullVal(cty.Bool)), ErrValueKind)
	})
}

func TestLatentHandleCodec(t *testing.T) {
	buf := make([]byte, 2*LatentHandleSize)
	LatentHandle{Program: 3, Freezable: true, ValueOffset: 40}.Encode(buf)
	LatentHandle{Program: NoProgram}.Encode(buf[LatentHandleSize:])

	table := DecodeLatentTable(buf)
	require.Len(t, table, 2)
	assert.Equal(t, LatentHandle{Program: 3, Freezable: true, ValueOffset: 40}, table[0])
	assert.False(t, table[1].HasProgram())
}

func TestBindingValue(t *testing.T) {
	r := NewRegistry()
	r.RegisterStatic(sample("Blend"))
	d, _ := r.FindByName("Blend")

	shared := make([]byte, d.SharedSize)
	require.NoError(t, PutLiteral(KindInt32, shared[0:], cty.NumberIntVal(10)))
	require.NoError(t, PutLiteral(KindFloat32, shared[4:], cty.NumberFloatVal(0.25)))

	latent := make([]byte, LatentHandleSize)
	nodeInstance := make([]byte, 8)
	b := Binding{Descriptor: d, Node: handle.NewNode(0), Shared: shared, LatentTable: latent, NodeInstance: nodeInstance}

	LatentHandle{Program: NoProgram}.Encode(latent)
	v, ok := b.Value("b")
	require.True(t, ok)
	assert.Equal(t, float32(0.25), v, "inline latent reads the literal")

	LatentHandle{Program: 0, ValueOffset: 4}.Encode(latent)
	require.NoError(t, PutLiteral(KindFloat32, nodeInstance[4:], cty.NumberFloatVal(0.75)))
	v, _ = b.Value("b")
	assert.Equal(t, float32(0.75), v, "wired latent reads the evaluated value")

	_, ok = b.Value("missing")
	assert.False(t, ok)

	var out struct {
		A int32   `trait:"a"`
		B float32 `trait:"b"`
	}
	require.NoError(t, DecodeInto(d, shared, &out))
	assert.Equal(t, int32(10), out.A)
	assert.Equal(t, float32(0.25), out.B)
}
