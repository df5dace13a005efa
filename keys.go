package kvdoc

import (
	"strings"
)

// Scan bounds bracketing every identifier of a docType. See PlanRange.
const (
	idLowerBound = "0"
	idUpperBound = "z"
)

// MakeKey builds the storage key of a record: its docType immediately
// followed by its natural identifier.
func MakeKey(docType, id string) string {
	return docType + id
}

// ValidateDocType checks that docType is a non-empty run of ASCII letters.
// It does not check docTypes against each other: keys of "entityType" fall
// inside the scan range of "entity". See PlanRange.
func ValidateDocType(docType string) error {
	if docType == "" {
		return invalidKeyErrf(docType, "empty docType")
	}
	for i := 0; i < len(docType); i++ {
		if !isASCIILetter(docType[i]) {
			return invalidKeyErrf(docType, "docType must consist of ASCII letters")
		}
	}
	return nil
}

// ValidateID checks that id is a non-empty ASCII alphanumeric string whose
// first character falls within the planner's bounds, so that every key of
// a docType sorts inside [docType+"0", docType+"z").
func ValidateID(id string) error {
	if id == "" {
		return invalidKeyErrf(id, "empty identifier")
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if !isASCIILetter(c) && !isASCIIDigit(c) {
			return invalidKeyErrf(id, "identifier must be alphanumeric")
		}
	}
	if id[:1] < idLowerBound || id[:1] >= idUpperBound {
		return invalidKeyErrf(id, "identifier must not start with %q", id[:1])
	}
	return nil
}

func validateStorageKey(key string) error {
	if key == "" {
		return invalidKeyErrf(key, "empty key")
	}
	if strings.IndexByte(key, 0) >= 0 {
		return invalidKeyErrf(key, "key contains NUL")
	}
	return nil
}

func isASCIILetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isASCIIDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
