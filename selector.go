package kvdoc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strconv"
)

// DocTypeField is the record field and selector field naming a record's
// logical type.
const DocTypeField = "docType"

// Selector maps field names to expected scalar values. It always carries
// DocTypeField; every other field is an equality constraint.
type Selector map[string]any

// NewSelector returns a selector for docType with the given equality
// constraints (field, value pairs).
func NewSelector(docType string, fieldsAndValues ...any) Selector {
	if len(fieldsAndValues)%2 != 0 {
		panic("NewSelector: odd number of field/value arguments")
	}
	sel := Selector{DocTypeField: docType}
	for i := 0; i < len(fieldsAndValues); i += 2 {
		sel[fieldsAndValues[i].(string)] = fieldsAndValues[i+1]
	}
	return sel
}

// ParseQuery parses the query wire format,
// {"selector": {"docType": "<type>", ...equalityFields}}.
func ParseQuery(data []byte) (Selector, error) {
	var q struct {
		Selector Selector `json:"selector"`
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrMissingDocType
	}
	if err := UnmarshalJSON(data, &q); err != nil {
		return nil, fmt.Errorf("kvdoc: invalid query: %w", err)
	}
	if _, ok := q.Selector.DocType(); !ok {
		return nil, ErrMissingDocType
	}
	return q.Selector, nil
}

// DocType returns the selector's docType. It returns false if the field is
// missing, empty or not a string.
func (sel Selector) DocType() (string, bool) {
	s, ok := sel[DocTypeField].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Predicates returns the names of the equality constraints other than
// docType, sorted.
func (sel Selector) Predicates() []string {
	var fields []string
	for f := range sel {
		if f != DocTypeField {
			fields = append(fields, f)
		}
	}
	slices.Sort(fields)
	return fields
}

// Matches reports whether record satisfies every non-docType constraint.
// A selector without constraints matches any record, including nil.
func (sel Selector) Matches(record map[string]any) bool {
	for f, want := range sel {
		if f == DocTypeField {
			continue
		}
		got, found := record[f]
		if !found || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	if an, ok := toFloat(a); ok {
		bn, ok := toFloat(b)
		return ok && an == bn
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case json.Number:
		f, err := strconv.ParseFloat(string(v), 64)
		return f, err == nil
	case float64:
		return v, true
	case float32:
		return float64(v), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	default:
		return 0, false
	}
}

// UnmarshalJSON decodes data into v, keeping numbers as json.Number.
func UnmarshalJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
