package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Kind is the name of a record schema. Each kind is stored in the collection of the same name.
type Kind string

const (
	KindUser           Kind = "user"
	KindProduct        Kind = "product"
	KindJob            Kind = "job"
	KindContactMessage Kind = "contactmessage"
)

// Collection returns the storage collection (table) name for the kind.
func (k Kind) Collection() string {
	return string(k)
}

// Record is a validatable record kind.
type Record interface {
	Kind() Kind
	// Defaults resets the record to its schema defaults before decoding.
	Defaults()
}

type registryEntry struct {
	kind  Kind
	title string
	new   func() Record
}

var registry = []registryEntry{
	{kind: KindUser, title: "User", new: func() Record { return &User{} }},
	{kind: KindProduct, title: "Product", new: func() Record { return &Product{} }},
	{kind: KindJob, title: "Job", new: func() Record { return &Job{} }},
	{kind: KindContactMessage, title: "ContactMessage", new: func() Record { return &ContactMessage{} }},
}

// Kinds lists every registered record kind.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(registry))
	for _, e := range registry {
		kinds = append(kinds, e.kind)
	}
	return kinds
}

// New returns an empty record of the given kind with defaults applied.
func New(kind Kind) (Record, error) {
	for _, e := range registry {
		if e.kind == kind {
			rec := e.new()
			rec.Defaults()
			return rec, nil
		}
	}
	return nil, fmt.Errorf("unknown record kind %q", kind)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	return v
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// FieldError describes one rejected field, shaped like the API's 422 detail entries.
type FieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, strings.Join(f.Loc, ".")+": "+f.Msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Decode resets rec to its defaults, decodes raw JSON into it and validates the result.
// Any failure is returned as an INVALID_INPUT DomainError wrapping a *ValidationError.
func Decode(raw []byte, rec Record) error {
	rec.Defaults()
	if err := json.Unmarshal(raw, rec); err != nil {
		return InvalidInput("invalid request body", decodeError(err))
	}
	if err := Validate(rec); err != nil {
		return InvalidInput("invalid request body", err)
	}
	return nil
}

// Validate checks a decoded record against its field constraints.
func Validate(rec Record) error {
	err := validate.Struct(rec)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Fields: []FieldError{{Loc: []string{"body"}, Msg: err.Error(), Type: "value_error"}}}
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, fieldError(fe))
	}
	return out
}

func fieldError(fe validator.FieldError) FieldError {
	loc := []string{"body", fe.Field()}
	switch fe.Tag() {
	case "required":
		return FieldError{Loc: loc, Msg: "Field required", Type: "missing"}
	case "email":
		return FieldError{Loc: loc, Msg: "value is not a valid email address", Type: "value_error"}
	case "oneof":
		return FieldError{Loc: loc, Msg: "Input should be " + quoteChoices(strings.Fields(fe.Param())), Type: "literal_error"}
	case "gte":
		return FieldError{Loc: loc, Msg: "Input should be greater than or equal to " + fe.Param(), Type: "greater_than_equal"}
	case "lte":
		return FieldError{Loc: loc, Msg: "Input should be less than or equal to " + fe.Param(), Type: "less_than_equal"}
	case "max":
		return FieldError{Loc: loc, Msg: "String should have at most " + fe.Param() + " characters", Type: "string_too_long"}
	default:
		return FieldError{Loc: loc, Msg: fe.Error(), Type: "value_error"}
	}
}

func quoteChoices(choices []string) string {
	quoted := make([]string, len(choices))
	for i, c := range choices {
		quoted[i] = "'" + c + "'"
	}
	if len(quoted) < 2 {
		return strings.Join(quoted, "")
	}
	return strings.Join(quoted[:len(quoted)-1], ", ") + " or " + quoted[len(quoted)-1]
}

func decodeError(err error) *ValidationError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		loc := []string{"body"}
		if typeErr.Field != "" {
			loc = append(loc, strings.Split(typeErr.Field, ".")...)
		}
		name := typeName(typeErr.Type)
		return &ValidationError{Fields: []FieldError{{
			Loc:  loc,
			Msg:  "Input should be a valid " + name,
			Type: strings.ReplaceAll(name, " ", "_") + "_type",
		}}}
	}
	return &ValidationError{Fields: []FieldError{{
		Loc:  []string{"body"},
		Msg:  "JSON decode error: " + err.Error(),
		Type: "json_invalid",
	}}}
}

func typeName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Struct, reflect.Map:
		return "dictionary"
	case reflect.Slice, reflect.Array:
		return "list"
	default:
		return t.String()
	}
}
