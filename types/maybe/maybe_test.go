package maybe

import (
	"encoding/json"
	"testing"
)

func TestMaybeJSON(t *testing.T) {
	type doc struct {
		A Maybe[float64] `json:"a"`
		B Maybe[float64] `json:"b"`
	}

	b, err := json.Marshal(doc{A: Some(1.5)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"a":1.5,"b":null}` {
		t.Errorf("expected null for None, got %s", b)
	}

	var d doc
	if err := json.Unmarshal(b, &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !d.A.IsValid() || d.A.Value() != 1.5 {
		t.Errorf("expected Some(1.5), got %+v", d.A)
	}
	if d.B.IsValid() {
		t.Errorf("expected None, got %+v", d.B)
	}
}

func TestMap(t *testing.T) {
	double := func(v int) int { return v * 2 }
	if got := Map(Some(2), double); got.Value() != 4 {
		t.Errorf("expected 4, got %d", got.Value())
	}
	if got := Map(None[int](), double); got.IsValid() {
		t.Errorf("expected None, got %+v", got)
	}
}
