package authz

// Structural predicates composed into access policies. They carry no
// authorization logic of their own and evaluate to false on any missing or
// unknown attribute, never panicking on bad input.

// AttributeIs reports whether the record's named attribute equals want.
func AttributeIs(rec Model, attr string, want any) bool {
	if rec == nil {
		return false
	}
	got, ok := rec.Attribute(attr)
	if !ok {
		return false
	}
	return attrEqual(got, want)
}

// BelongsTo reports whether the record's ownerAttr field references userID.
// A zero userID never owns anything.
func BelongsTo(rec Model, userID int64, ownerAttr string) bool {
	if rec == nil || userID == 0 {
		return false
	}
	got, ok := rec.Attribute(ownerAttr)
	if !ok {
		return false
	}
	return attrEqual(got, userID)
}

// BelongsToActor reports whether the record's ownerAttr field references the
// scoped actor.
func BelongsToActor(rec Model, scope Scope, ownerAttr string) bool {
	if scope == nil {
		return false
	}
	return BelongsTo(rec, scope.ActorID(), ownerAttr)
}

// FieldsMatch reports whether attrA of a equals attrB of b. Guards against
// cross-tenant reference leakage, e.g. a purchase request and its mess
// sharing the same mess id.
func FieldsMatch(a Model, attrA string, b Model, attrB string) bool {
	if a == nil || b == nil {
		return false
	}
	va, ok := a.Attribute(attrA)
	if !ok {
		return false
	}
	vb, ok := b.Attribute(attrB)
	if !ok {
		return false
	}
	return attrEqual(va, vb)
}

// SameTenant reports whether the record belongs to the scoped mess.
func SameTenant(rec Model, scope Scope) bool {
	if rec == nil || scope == nil {
		return false
	}
	return rec.TenantID() == scope.MessID()
}

// attrEqual compares attribute values, normalising integer widths so model
// implementations may expose int, int32 or int64 interchangeably.
func attrEqual(a, b any) bool {
	if ai, ok := asInt64(a); ok {
		bi, ok := asInt64(b)
		return ok && ai == bi
	}
	return a == b
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}
