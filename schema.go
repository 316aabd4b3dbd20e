package columnar

// Validator is the pluggable validation boundary: any JSON-schema-style
// library, or a code-generated validator, can satisfy this contract. The
// core never inspects how validation is performed, only its verdict.
type Validator interface {
	Validate(overrides map[string]any) (ok bool, errs []error)
}

// noopValidator accepts everything; the zero-value Schema.Validator.
type noopValidator struct{}

func (noopValidator) Validate(map[string]any) (bool, []error) { return true, nil }

// PropertyDescriptor describes one column of a component schema.
type PropertyDescriptor struct {
	Name     string
	Kind     PropertyKind
	Element  ElementType // meaningful for KindScalar / KindSubarray
	Length   int         // subarray element count, KindSubarray only
	FauxKind FauxKind    // meaningful for KindFaux
	Default  any         // scalar: float64; subarray: []float64; faux: any
	// FauxProperties lists the shallow-simple sub-properties of a
	// KindFaux/FauxObject property whose sub-values are themselves all primitive
	// so the serializer can recurse per-property in key order instead of falling
	// back to the complex JSON buffer.
	FauxProperties []PropertyDescriptor
}

// Schema is a component's globally-unique type name, its ordered property list,
// and its validator. Schemas are registered through ComponentBuilder and become
// immutable once the first World is created.
type Schema struct {
	Type       string
	Index      int // stable once the registry is frozen
	Properties []PropertyDescriptor
	Validator  Validator

	// Generation and Bitflag locate this component's membership bit within the
	// shared mask.EntityMasks scheme, assigned once at registry freeze so every
	// world lays out masks identically.
	Generation uint32
	Bitflag    uint32

	frozen bool
}

// IsTag reports whether the schema has no properties, i.e. membership is
// encoded solely in the entity bitmask with no backing column at all.
func (s *Schema) IsTag() bool {
	return len(s.Properties) == 0
}

// ComponentBuilder is the declarative construction surface used in place of
// the host language's decorator/metadata syntax:
// `NewSchema("Position").Field("x", F64, 0).Field("y", F64, 0).Build()`.
type ComponentBuilder struct {
	schema *Schema
}

// NewSchema starts building a component schema named typeName.
func NewSchema(typeName string) *ComponentBuilder {
	return &ComponentBuilder{schema: &Schema{Type: typeName, Validator: noopValidator{}}}
}

// Field adds a typed scalar property.
func (b *ComponentBuilder) Field(name string, elem ElementType, def float64) *ComponentBuilder {
	b.schema.Properties = append(b.schema.Properties, PropertyDescriptor{
		Name: name, Kind: KindScalar, Element: elem, Default: def,
	})
	return b
}

// SubArray adds a fixed-length typed subarray property; def, if non-nil,
// must have length elements.
func (b *ComponentBuilder) SubArray(name string, elem ElementType, length int, def []float64) *ComponentBuilder {
	if def == nil {
		def = make([]float64, length)
	}
	b.schema.Properties = append(b.schema.Properties, PropertyDescriptor{
		Name: name, Kind: KindSubarray, Element: elem, Length: length, Default: append([]float64(nil), def...),
	})
	return b
}

// Faux adds an eid-keyed property for values the columnar layout cannot
// express directly (objects, strings, nullable values, arrays).
func (b *ComponentBuilder) Faux(name string, kind FauxKind, def any) *ComponentBuilder {
	b.schema.Properties = append(b.schema.Properties, PropertyDescriptor{
		Name: name, Kind: KindFaux, FauxKind: kind, Default: def,
	})
	return b
}

// FauxObject adds a shallow-simple faux object property: one whose named
// sub-properties are all primitive, so the serializer can recurse
// per-property instead of spilling to the complex JSON buffer.
func (b *ComponentBuilder) FauxObject(name string, props []PropertyDescriptor, def any) *ComponentBuilder {
	b.schema.Properties = append(b.schema.Properties, PropertyDescriptor{
		Name: name, Kind: KindFaux, FauxKind: FauxObject, Default: def, FauxProperties: props,
	})
	return b
}

// WithValidator attaches a validator; the default accepts everything.
func (b *ComponentBuilder) WithValidator(v Validator) *ComponentBuilder {
	b.schema.Validator = v
	return b
}

// Build registers the schema with the process-wide registry and returns
// it. Build panics with DefineAfterFreezeError if a new type name is
// registered after the first World has been created; there is no
// error-returning variant.
func (b *ComponentBuilder) Build() *Schema {
	if err := globalRegistry.register(b.schema); err != nil {
		panic(err)
	}
	return b.schema
}
