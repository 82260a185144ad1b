package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", d.String())

	// RFC 3339 timestamps are accepted and truncated to the date.
	d, err = ParseDate("2024-03-01T15:04:05Z")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", d.String())

	for _, bad := range []string{"", "yesterday", "2024-13-40", "01/03/2024"} {
		_, err := ParseDate(bad)
		assert.ErrorIs(t, err, ErrValidation, "input %q", bad)
	}
}

func TestDateBefore(t *testing.T) {
	a, _ := ParseDate("2024-01-05")
	b, _ := ParseDate("2024-02-01")
	c, _ := ParseDate("2025-01-01")
	assert.True(t, a.Before(b))
	assert.True(t, b.Before(c))
	assert.False(t, b.Before(a))
	assert.False(t, a.Before(a))
}

func TestDateJSON(t *testing.T) {
	d, _ := ParseDate("2024-03-01")
	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-01"`, string(raw))

	var back Date
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, d, back)

	assert.Error(t, json.Unmarshal([]byte(`"not a date"`), &back))
}

func TestTaskPayloadFallsBackToCreator(t *testing.T) {
	task := &Task{ID: 7, Text: "milk", CreatorName: "alice"}
	p := task.Payload()
	assert.Equal(t, "alice", p.CreatedBy)
	assert.Equal(t, "alice", p.LastModifiedBy)

	task.LastEditorName = "bob"
	p = task.Payload()
	assert.Equal(t, "alice", p.CreatedBy)
	assert.Equal(t, "bob", p.LastModifiedBy)
}

func TestTaskPayloadWire(t *testing.T) {
	due, _ := ParseDate("2024-03-01")
	task := &Task{ID: 7, Text: "milk", Done: true, Due: &due, CreatorName: "alice"}
	raw, err := json.Marshal(task.Payload())
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(raw, &wire))
	assert.Equal(t, float64(7), wire["id"])
	assert.Equal(t, "milk", wire["text"])
	assert.Equal(t, true, wire["done"])
	assert.Equal(t, "2024-03-01", wire["due_date"])
	assert.Equal(t, "alice", wire["created_by"])
	assert.Equal(t, "alice", wire["last_modified_by"])

	// Undated tasks serialize due_date as null, not a zero date.
	raw, err = json.Marshal((&Task{ID: 8, Text: "x", CreatorName: "a"}).Payload())
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &wire))
	assert.Nil(t, wire["due_date"])
}
