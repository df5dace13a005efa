package kvdoc

import (
	"errors"
	"testing"
)

func TestMakeKey(t *testing.T) {
	deepEqual(t, MakeKey("entity", "001"), "entity001")
}

func TestValidateID(t *testing.T) {
	valid := []string{"0", "001", "abc", "Z9", "y", "9zz"}
	for _, id := range valid {
		if err := ValidateID(id); err != nil {
			t.Errorf("ValidateID(%q) = %v, wanted nil", id, err)
		}
	}
	invalid := []string{"", "z1", "zz", "a-b", "_x", "a b", "é"}
	for _, id := range invalid {
		err := ValidateID(id)
		if !errors.Is(err, ErrInvalidKey) {
			t.Errorf("ValidateID(%q) = %v, wanted ErrInvalidKey", id, err)
		}
	}
}

func TestValidatedIDsSortWithinPlannedRange(t *testing.T) {
	start, end, err := PlanRange(NewSelector("entity"))
	ensure(err)
	for _, id := range []string{"0", "9", "A", "Zzzz", "a", "y99"} {
		ensure(ValidateID(id))
		key := MakeKey("entity", id)
		if key < start || key >= end {
			t.Errorf("key %q outside [%q, %q)", key, start, end)
		}
	}
}

func TestValidateDocType(t *testing.T) {
	if err := ValidateDocType("entity"); err != nil {
		t.Fatalf("ValidateDocType(entity) = %v, wanted nil", err)
	}
	for _, dt := range []string{"", "entity1", "doc-type"} {
		if err := ValidateDocType(dt); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("ValidateDocType(%q) = %v, wanted ErrInvalidKey", dt, err)
		}
	}
}

func TestValidateStorageKey(t *testing.T) {
	if err := validateStorageKey("entity001"); err != nil {
		t.Fatalf("validateStorageKey = %v, wanted nil", err)
	}
	for _, key := range []string{"", "a\x00b"} {
		if err := validateStorageKey(key); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("validateStorageKey(%q) = %v, wanted ErrInvalidKey", key, err)
		}
	}
}
