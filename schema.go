package drilldown

// FieldKind classifies a field of an entity type.
type FieldKind int

const (
	KindNone   FieldKind = iota // field does not exist
	KindScalar                  // plain value field
	KindToOne                   // foreign-key / one-to-one relation
	KindToMany                  // reverse or many-to-many relation
)

// IsRelation reports whether the kind is a relationship field.
func (k FieldKind) IsRelation() bool {
	return k == KindToOne || k == KindToMany
}

type fieldDef struct {
	kind    FieldKind
	related *EntityType
}

// EntityType is a named schema: an ordered mapping from field name to field
// descriptor. Entity types are registered explicitly at startup and never
// mutated at request time, so they are safe for unsynchronized concurrent
// reads.
type EntityType struct {
	name       string
	fields     map[string]fieldDef
	fieldOrder []string // field names in registration order
}

// NewEntity creates a new empty entity type with the given name.
// Every entity is expected to carry an "id" identifier field; register it
// like any other scalar.
func NewEntity(name string) *EntityType {
	return &EntityType{
		name:   name,
		fields: make(map[string]fieldDef),
	}
}

// Name returns the entity type's name.
func (e *EntityType) Name() string {
	return e.name
}

// Scalar registers one or more plain value fields.
func (e *EntityType) Scalar(names ...string) {
	for _, name := range names {
		e.register(name, fieldDef{kind: KindScalar})
	}
}

// ToOne registers a to-one relationship field pointing at target.
func (e *EntityType) ToOne(name string, target *EntityType) {
	e.register(name, fieldDef{kind: KindToOne, related: target})
}

// ToMany registers a to-many relationship field pointing at target.
func (e *EntityType) ToMany(name string, target *EntityType) {
	e.register(name, fieldDef{kind: KindToMany, related: target})
}

func (e *EntityType) register(name string, def fieldDef) {
	if _, exists := e.fields[name]; !exists {
		e.fieldOrder = append(e.fieldOrder, name)
	}
	e.fields[name] = def
}

// FieldExists reports whether the named field is registered on the entity.
func (e *EntityType) FieldExists(name string) bool {
	_, ok := e.fields[name]
	return ok
}

// FieldKind returns the kind of the named field, or KindNone if unregistered.
func (e *EntityType) FieldKind(name string) FieldKind {
	return e.fields[name].kind
}

// RelatedType returns the target entity type of a relationship field,
// or nil if the field is not a relation.
func (e *EntityType) RelatedType(name string) *EntityType {
	return e.fields[name].related
}

// FieldNames returns all field names in registration order.
func (e *EntityType) FieldNames() []string {
	out := make([]string, len(e.fieldOrder))
	copy(out, e.fieldOrder)
	return out
}
