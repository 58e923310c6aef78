// Package codec converts student records between their wire representation
// and types.Student.
//
// The service is not strict about numbers: depending on who wrote a record,
// "age" (and occasionally "id") may arrive as a JSON number or as a numeric
// string. Decode accepts both and always produces integers. Encode goes the
// other way and coerces the textual age typed by an operator into the integer
// the service expects.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/aanand-mishra/students-sync/internal/types"
)

// InvalidAge is what Encode sends when the age input is not a base-10
// integer. The service rejects it through its own validation (age > 0);
// the client does not block the request locally.
const InvalidAge = 0

// validate is safe for concurrent use and caches struct metadata, so a
// single package-level instance is shared.
var validate = validator.New()

// DecodeError reports a success body that could not be turned into a Student.
type DecodeError struct {
	Field  string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("decode student: %s", e.Reason)
	}
	return fmt.Sprintf("decode student: field %q %s", e.Field, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Payload is the request body for POST and PUT. Keys are capitalised the way
// the browser frontend sends them.
type Payload struct {
	Name  string `json:"Name"`
	Age   int    `json:"Age"`
	Email string `json:"Email"`
}

// parseInteger accepts a JSON number or a JSON string holding a base-10
// integer that fits in bitSize bits. Fractions and exponents are rejected.
func parseInteger(data []byte, bitSize int) (int64, error) {
	text := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return 0, err
		}
	}

	v, err := strconv.ParseInt(strings.TrimSpace(text), 10, bitSize)
	if errors.Is(err, strconv.ErrRange) {
		return 0, err
	}
	if err != nil {
		return 0, errors.New("not a base-10 integer: " + strconv.Quote(text))
	}
	return v, nil
}

// wireStudent uses pointers so an absent key can be told apart from a zero.
// Numeric fields stay raw until each one is parsed individually, which lets
// a DecodeError name the offending field.
type wireStudent struct {
	ID    json.RawMessage `json:"id"`
	Name  *string         `json:"name"`
	Age   json.RawMessage `json:"age"`
	Email *string         `json:"email"`
}

// Decode parses one student record.
func Decode(data []byte) (types.Student, error) {
	var w wireStudent
	if err := json.Unmarshal(data, &w); err != nil {
		return types.Student{}, &DecodeError{Reason: "malformed body", Err: err}
	}
	return fromWire(w)
}

// DecodeList parses the body of GET /students. A JSON null decodes to an
// empty, non-nil slice.
func DecodeList(data []byte) ([]types.Student, error) {
	var wires []wireStudent
	if err := json.Unmarshal(data, &wires); err != nil {
		return nil, &DecodeError{Reason: "malformed list body", Err: err}
	}

	students := make([]types.Student, 0, len(wires))
	for i, w := range wires {
		s, err := fromWire(w)
		if err != nil {
			return nil, fmt.Errorf("codec.DecodeList: item %d: %w", i, err)
		}
		students = append(students, s)
	}
	return students, nil
}

// DecodeSummary extracts the "summary" field of GET /students/{id}/summary.
// Any other keys in the body are ignored.
func DecodeSummary(data []byte) (string, error) {
	var body struct {
		Summary *string `json:"summary"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return "", &DecodeError{Reason: "malformed summary body", Err: err}
	}
	if body.Summary == nil {
		return "", &DecodeError{Field: "summary", Reason: "is missing"}
	}
	return *body.Summary, nil
}

// Encode builds the request body for create and update. It never fails.
func Encode(f types.StudentFields) Payload {
	return Payload{
		Name:  f.Name,
		Age:   CoerceAge(f.Age),
		Email: f.Email,
	}
}

// CoerceAge parses age input as a base-10 integer, returning InvalidAge for
// anything else.
func CoerceAge(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return InvalidAge
	}
	return v
}

func fromWire(w wireStudent) (types.Student, error) {
	id, err := parseNumber("id", w.ID, 64)
	if err != nil {
		return types.Student{}, err
	}
	age, err := parseNumber("age", w.Age, strconv.IntSize)
	if err != nil {
		return types.Student{}, err
	}
	if w.Name == nil {
		return types.Student{}, &DecodeError{Field: "name", Reason: "is missing"}
	}
	if w.Email == nil {
		return types.Student{}, &DecodeError{Field: "email", Reason: "is missing"}
	}
	if err := validate.Var(*w.Name, "required"); err != nil {
		return types.Student{}, &DecodeError{Field: "name", Reason: "is empty", Err: err}
	}

	return types.Student{
		ID:    id,
		Name:  *w.Name,
		Email: *w.Email,
		Age:   int(age),
	}, nil
}

func parseNumber(field string, raw json.RawMessage, bitSize int) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, &DecodeError{Field: field, Reason: "is missing"}
	}
	v, err := parseInteger(raw, bitSize)
	if errors.Is(err, strconv.ErrRange) {
		return 0, &DecodeError{Field: field, Reason: "is out of range", Err: err}
	}
	if err != nil {
		return 0, &DecodeError{Field: field, Reason: "is not an integer", Err: err}
	}
	return v, nil
}
