package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttributeIs(t *testing.T) {
	rec := testRecord{messID: 3, ownerID: 7}
	assert.True(t, AttributeIs(rec, "mess_id", int64(3)))
	assert.True(t, AttributeIs(rec, "mess_id", 3)) // int widths normalise
	assert.False(t, AttributeIs(rec, "mess_id", int64(4)))
	assert.False(t, AttributeIs(rec, "unknown", int64(3)))
	assert.False(t, AttributeIs(nil, "mess_id", int64(3)))
}

func TestBelongsTo(t *testing.T) {
	rec := testRecord{messID: 1, ownerID: 7}
	assert.True(t, BelongsTo(rec, 7, "user_id"))
	assert.False(t, BelongsTo(rec, 8, "user_id"))
	assert.False(t, BelongsTo(rec, 0, "user_id"), "zero user never owns anything")
	assert.False(t, BelongsTo(rec, 7, "missing_attr"))
}

func TestBelongsToActor(t *testing.T) {
	rec := testRecord{messID: 1, ownerID: 7}
	assert.True(t, BelongsToActor(rec, testScope{actorID: 7, messID: 1}, "user_id"))
	assert.False(t, BelongsToActor(rec, testScope{actorID: 8, messID: 1}, "user_id"))
	assert.False(t, BelongsToActor(rec, nil, "user_id"))
}

func TestFieldsMatch(t *testing.T) {
	a := testRecord{messID: 1, ownerID: 7}
	b := testRecord{messID: 1, ownerID: 9}
	assert.True(t, FieldsMatch(a, "mess_id", b, "mess_id"))
	assert.False(t, FieldsMatch(a, "user_id", b, "user_id"))
	assert.False(t, FieldsMatch(a, "mess_id", nil, "mess_id"))
	assert.False(t, FieldsMatch(a, "nope", b, "mess_id"))
}

func TestSameTenant(t *testing.T) {
	rec := testRecord{messID: 4}
	assert.True(t, SameTenant(rec, testScope{messID: 4}))
	assert.False(t, SameTenant(rec, testScope{messID: 5}))
	assert.False(t, SameTenant(nil, testScope{messID: 4}))
	assert.False(t, SameTenant(rec, nil))
}
