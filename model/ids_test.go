package model

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestAreaIndex_Bijection(t *testing.T) {
	ai := NewAreaIndex()
	codes := []AreaCode{"E0001", "E0002", "E0003"}
	for i, code := range codes {
		idx, err := ai.Add(code)
		if err != nil {
			t.Fatalf("Add(%q): %v", code, err)
		}
		if idx != int32(i) {
			t.Fatalf("Add(%q) = %d, want dense %d", code, idx, i)
		}
	}
	ai.Freeze()

	for i, code := range codes {
		idx, ok := ai.IndexOf(code)
		if !ok || idx != int32(i) {
			t.Fatalf("IndexOf(%q) = (%d, %v)", code, idx, ok)
		}
		if got := ai.Code(int32(i)); got != code {
			t.Fatalf("Code(%d) = %q, want %q", i, got, code)
		}
	}
	if ai.Len() != 3 {
		t.Fatalf("Len = %d", ai.Len())
	}
}

func TestAreaIndex_DuplicateAdd(t *testing.T) {
	ai := NewAreaIndex()
	if _, err := ai.Add("E0001"); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if _, err := ai.Add("E0001"); !errors.Is(err, ErrAreaExists) {
		t.Fatalf("duplicate Add err = %v, want ErrAreaExists", err)
	}
}

func TestAreaIndex_FrozenRejectsAdd(t *testing.T) {
	ai := NewAreaIndex()
	ai.Freeze()
	if _, err := ai.Add("E0001"); !errors.Is(err, ErrIndexFrozen) {
		t.Fatalf("Add after Freeze err = %v, want ErrIndexFrozen", err)
	}
}

func TestBuildingID_IsZero(t *testing.T) {
	var zero BuildingID
	if !zero.IsZero() {
		t.Fatalf("zero value should be zero")
	}
	id := BuildingID{UID: uuid.New()}
	if id.IsZero() {
		t.Fatalf("id with UID should not be zero")
	}
}
