package domain

import (
	"reflect"
	"strconv"
	"strings"
)

// FieldSchema describes one field of a record kind.
type FieldSchema struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Nullable    bool     `json:"nullable"`
	Default     any      `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Format      string   `json:"format,omitempty"`
	Minimum     *float64 `json:"minimum,omitempty"`
	Maximum     *float64 `json:"maximum,omitempty"`
	MaxLength   *int     `json:"max_length,omitempty"`
	Description string   `json:"description,omitempty"`
}

// KindSchema describes a record kind and the collection it is stored in.
type KindSchema struct {
	Name       string        `json:"name"`
	Collection string        `json:"collection"`
	Fields     []FieldSchema `json:"fields"`
}

// Describe returns the schema of every registered kind, in registry order.
func Describe() []KindSchema {
	out := make([]KindSchema, 0, len(registry))
	for _, e := range registry {
		rec := e.new()
		rec.Defaults()
		out = append(out, KindSchema{
			Name:       e.title,
			Collection: e.kind.Collection(),
			Fields:     describeFields(rec),
		})
	}
	return out
}

func describeFields(rec Record) []FieldSchema {
	v := reflect.ValueOf(rec).Elem()
	t := v.Type()

	fields := make([]FieldSchema, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		name := jsonName(sf)
		if name == "" || !sf.IsExported() {
			continue
		}
		fs := FieldSchema{
			Name:        name,
			Type:        typeName(sf.Type),
			Nullable:    sf.Type.Kind() == reflect.Pointer,
			Description: sf.Tag.Get("desc"),
		}
		applyRules(&fs, sf.Tag.Get("validate"))
		fs.Default = defaultValue(v.Field(i))
		fields = append(fields, fs)
	}
	return fields
}

func applyRules(fs *FieldSchema, tag string) {
	if tag == "" {
		return
	}
	for _, rule := range strings.Split(tag, ",") {
		name, param, _ := strings.Cut(rule, "=")
		switch name {
		case "required":
			fs.Required = true
		case "email":
			fs.Format = "email"
		case "oneof":
			fs.Enum = strings.Fields(param)
		case "gte":
			if f, err := strconv.ParseFloat(param, 64); err == nil {
				fs.Minimum = &f
			}
		case "lte":
			if f, err := strconv.ParseFloat(param, 64); err == nil {
				fs.Maximum = &f
			}
		case "max":
			if n, err := strconv.Atoi(param); err == nil {
				fs.MaxLength = &n
			}
		}
	}
}

func defaultValue(fv reflect.Value) any {
	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			return nil
		}
		return fv.Elem().Interface()
	}
	if fv.IsZero() {
		return nil
	}
	return fv.Interface()
}
