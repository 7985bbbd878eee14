package trait

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/specialistvlad/traitgraph/internal/handle"
	"github.com/zclconf/go-cty/cty"
)

// FieldKind is the encoded type of a shared-data property.
type FieldKind uint8

const (
	KindBool FieldKind = iota + 1
	KindInt32
	KindUint32
	KindInt64
	KindFloat32
	KindFloat64
	KindNodeHandle
	KindTraitHandle
	KindObject
)

var kindNames = map[FieldKind]string{
	KindBool:        "bool",
	KindInt32:       "int32",
	KindUint32:      "uint32",
	KindInt64:       "int64",
	KindFloat32:     "float32",
	KindFloat64:     "float64",
	KindNodeHandle:  "node",
	KindTraitHandle: "trait",
	KindObject:      "object",
}

func (k FieldKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseFieldKind maps a kind name back to its FieldKind.
func ParseFieldKind(name string) (FieldKind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// Size returns the number of bytes a value of this kind occupies.
func (k FieldKind) Size() uint32 {
	switch k {
	case KindBool:
		return 1
	case KindInt32, KindUint32, KindFloat32, KindNodeHandle, KindTraitHandle, KindObject:
		return 4
	case KindInt64, KindFloat64:
		return 8
	default:
		return 0
	}
}

// Align returns the natural alignment of the kind.
func (k FieldKind) Align() uint32 { return k.Size() }

// IsReference reports whether values of this kind point at other data
// rather than holding a literal.
func (k FieldKind) IsReference() bool {
	return k == KindNodeHandle || k == KindTraitHandle || k == KindObject
}

// Field is one property stored in a trait's shared data.
type Field struct {
	Name   string
	Kind   FieldKind
	Offset uint32
	// Latent fields may be wired to an evaluation program instead of holding
	// only their literal value.
	Latent bool
}

// AlignUp rounds v up to the next multiple of align, which must be a power
// of two.
func AlignUp(v, align uint32) uint32 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

// LayoutFields assigns natural-alignment offsets to fields in order and
// returns the resulting size and alignment of the block.
func LayoutFields(fields []Field) ([]Field, uint32, uint32) {
	out := make([]Field, len(fields))
	var size uint32
	align := uint32(1)
	for i, f := range fields {
		a := f.Kind.Align()
		size = AlignUp(size, a)
		f.Offset = size
		size += f.Kind.Size()
		if a > align {
			align = a
		}
		out[i] = f
	}
	return out, AlignUp(size, align), align
}

// ErrValueKind is returned when a value cannot be stored in a field.
var ErrValueKind = errors.New("value does not match field kind")

// PutLiteral encodes a literal cty value into dst according to kind.
// Reference kinds cannot be written from literals.
func PutLiteral(kind FieldKind, dst []byte, v cty.Value) error {
	if !v.IsKnown() || v.IsNull() {
		return fmt.Errorf("%w: %s needs a known, non-null value", ErrValueKind, kind)
	}
	switch kind {
	case KindBool:
		if !v.Type().Equals(cty.Bool) {
			return fmt.Errorf("%w: %s got %s", ErrValueKind, kind, v.Type().FriendlyName())
		}
		dst[0] = 0
		if v.True() {
			dst[0] = 1
		}
		return nil
	case KindInt32, KindUint32, KindInt64, KindFloat32, KindFloat64:
		if !v.Type().Equals(cty.Number) {
			return fmt.Errorf("%w: %s got %s", ErrValueKind, kind, v.Type().FriendlyName())
		}
		return putNumber(kind, dst, v.AsBigFloat())
	default:
		return fmt.Errorf("%w: %s cannot hold a literal", ErrValueKind, kind)
	}
}

func putNumber(kind FieldKind, dst []byte, f *big.Float) error {
	switch kind {
	case KindInt32, KindUint32, KindInt64:
		if !f.IsInt() {
			return fmt.Errorf("%w: %s needs a whole number, got %s", ErrValueKind, kind, f.Text('g', 10))
		}
		i, acc := f.Int64()
		if acc != big.Exact {
			return fmt.Errorf("%w: %s overflows int64", ErrValueKind, f.Text('g', 20))
		}
		switch kind {
		case KindInt32:
			if i < math.MinInt32 || i > math.MaxInt32 {
				return fmt.Errorf("%w: %d overflows int32", ErrValueKind, i)
			}
			binary.LittleEndian.PutUint32(dst, uint32(int32(i)))
		case KindUint32:
			if i < 0 || i > math.MaxUint32 {
				return fmt.Errorf("%w: %d overflows uint32", ErrValueKind, i)
			}
			binary.LittleEndian.PutUint32(dst, uint32(i))
		default:
			binary.LittleEndian.PutUint64(dst, uint64(i))
		}
	case KindFloat32:
		v, _ := f.Float32()
		if math.IsInf(float64(v), 0) && !f.IsInf() {
			return fmt.Errorf("%w: %s overflows float32", ErrValueKind, f.Text('g', 10))
		}
		binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
	case KindFloat64:
		v, _ := f.Float64()
		if math.IsInf(v, 0) && !f.IsInf() {
			return fmt.Errorf("%w: %s overflows float64", ErrValueKind, f.Text('g', 10))
		}
		binary.LittleEndian.PutUint64(dst, math.Float64bits(v))
	}
	return nil
}

// PutUint32 stores a raw 32-bit value, used for handles and object indices.
func PutUint32(dst []byte, v uint32) {
	binary.LittleEndian.PutUint32(dst, v)
}

// Decode reads a value of kind from src into its Go representation.
func Decode(kind FieldKind, src []byte) any {
	switch kind {
	case KindBool:
		return src[0] != 0
	case KindInt32:
		return int32(binary.LittleEndian.Uint32(src))
	case KindUint32, KindObject:
		return binary.LittleEndian.Uint32(src)
	case KindInt64:
		return int64(binary.LittleEndian.Uint64(src))
	case KindFloat32:
		return math.Float32frombits(binary.LittleEndian.Uint32(src))
	case KindFloat64:
		return math.Float64frombits(binary.LittleEndian.Uint64(src))
	case KindNodeHandle:
		return handle.Node(binary.LittleEndian.Uint32(src))
	case KindTraitHandle:
		return handle.Trait(binary.LittleEndian.Uint32(src))
	default:
		return nil
	}
}

// ToCty converts a decoded literal back into a cty value. Reference kinds
// convert to their raw numeric encoding.
func ToCty(kind FieldKind, src []byte) cty.Value {
	switch v := Decode(kind, src).(type) {
	case bool:
		return cty.BoolVal(v)
	case int32:
		return cty.NumberIntVal(int64(v))
	case uint32:
		return cty.NumberUIntVal(uint64(v))
	case int64:
		return cty.NumberIntVal(v)
	case float32:
		return cty.NumberFloatVal(float64(v))
	case float64:
		return cty.NumberFloatVal(v)
	case handle.Node:
		return cty.NumberUIntVal(uint64(v))
	case handle.Trait:
		return cty.NumberUIntVal(uint64(v))
	default:
		return cty.NullVal(cty.DynamicPseudoType)
	}
}
