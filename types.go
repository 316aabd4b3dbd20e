package columnar

import "github.com/silostack/columnar/internal/wire"

// ElementType identifies the fixed numeric element kind backing a typed
// scalar column or a typed subarray's shared buffer.
type ElementType = wire.ElementType

// Element type constants, re-exported from the wire package so callers
// never need to import it directly.
const (
	I8  = wire.I8
	U8  = wire.U8
	U8C = wire.U8C
	I16 = wire.I16
	U16 = wire.U16
	I32 = wire.I32
	U32 = wire.U32
	F32 = wire.F32
	F64 = wire.F64
	EID = wire.EID
)

// SerializerVersion is the binary wire format version produced and required by
// this module.
const SerializerVersion = wire.SerializerVersion

// Sentinel byte values used by the faux-value wire encoding.
const (
	NullFlag           = wire.NullFlag
	UndefinedFlag      = wire.UndefinedFlag
	ConcreteValueMarker = wire.ConcreteValueMarker
)

// SparseSetAbsentU16 is the wire sentinel for an absent sparse slot.
const SparseSetAbsentU16 = wire.SparseSetAbsentU16

// PropertyKind distinguishes the four storage shapes a component property can
// take.
type PropertyKind uint8

const (
	// KindTag marks a schema with no properties at all: membership lives
	// solely in the entity bitmask, no column exists.
	KindTag PropertyKind = iota
	KindScalar
	KindSubarray
	KindFaux
)

func (k PropertyKind) String() string {
	switch k {
	case KindTag:
		return "tag"
	case KindScalar:
		return "scalar"
	case KindSubarray:
		return "subarray"
	case KindFaux:
		return "faux"
	default:
		return "unknown"
	}
}

// FauxKind further describes a faux (object/string/nullable) property so the
// serializer knows which recursive encoding to apply.
type FauxKind uint8

const (
	FauxObject FauxKind = iota
	FauxString
	FauxNumber
	FauxBoolean
	FauxArray
	FauxNullable
)
