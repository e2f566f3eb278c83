package store

import (
	"database/sql"
	"testing"
)

func TestNullFloat(t *testing.T) {
	if v := nullFloat(sql.NullFloat64{}); v != nil {
		t.Fatalf("invalid -> nil expected, got %v", *v)
	}
	v := nullFloat(sql.NullFloat64{Float64: 12.5, Valid: true})
	if v == nil || *v != 12.5 {
		t.Fatalf("valid -> 12.5 expected, got %v", v)
	}
}

func TestNullJSON(t *testing.T) {
	if v := nullJSON(sql.NullString{}); v != nil {
		t.Fatalf("null -> nil expected")
	}
	if v := nullJSON(sql.NullString{String: "", Valid: true}); v != nil {
		t.Fatalf("empty -> nil expected")
	}
	if v := nullJSON(sql.NullString{String: `{"type":"Point","coordinates":[1,2]}`, Valid: true}); len(v) == 0 {
		t.Fatalf("non-empty -> raw json expected")
	}
}
