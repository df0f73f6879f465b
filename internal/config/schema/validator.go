package schema

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Validator validates configuration against a schema.
type Validator struct {
	schema *Schema

	// Options
	strictMode bool // Fail on unknown top-level properties
	maxErrors  int  // Maximum errors to collect (0 = unlimited)
}

// NewValidator creates a validator for the given schema.
func NewValidator(schema *Schema) *Validator {
	return &Validator{
		schema:    schema,
		maxErrors: 100,
	}
}

// WithStrictMode enables strict mode (unknown properties are errors).
func (v *Validator) WithStrictMode(strict bool) *Validator {
	v.strictMode = strict
	return v
}

// WithMaxErrors sets the maximum number of errors to collect.
func (v *Validator) WithMaxErrors(max int) *Validator {
	v.maxErrors = max
	return v
}

// Schema returns the schema the validator checks against.
func (v *Validator) Schema() *Schema {
	return v.schema
}

// Validate checks a global settings table: every required option present and
// non-null, every known option of the right type and within its constraints.
// Language override blocks are not inspected here; see ValidateOverrides.
func (v *Validator) Validate(data map[string]any) error {
	if v.schema == nil {
		return nil
	}

	errs := &ValidationErrors{}
	v.validateValue("", data, v.schema, errs)
	return errs.AsError()
}

// ValidatePath validates a single top-level option value.
func (v *Validator) ValidatePath(path string, value any) error {
	if v.schema == nil {
		return nil
	}

	errs := &ValidationErrors{}
	propSchema := v.schema.GetProperty(path)
	if propSchema == nil {
		if v.strictMode {
			errs.unknown(path, value)
		}
		return errs.AsError()
	}

	v.validateValue(path, value, propSchema, errs)
	return errs.AsError()
}

// ValidateOverrides checks the known keys of every language override block
// against the root option schemas. Unknown keys are language extras and are
// never reported. Errors carry their full codeintel_config path and the
// language of the block.
func (v *Validator) ValidateOverrides(overrides map[string]any) error {
	if v.schema == nil {
		return nil
	}

	errs := &ValidationErrors{}
	languages := make([]string, 0, len(overrides))
	for lang := range overrides {
		languages = append(languages, lang)
	}
	sort.Strings(languages)

	for _, lang := range languages {
		from := errs.Len()
		base := joinPath(OverridesKey, lang)
		block, ok := overrides[lang].(map[string]any)
		if !ok {
			errs.wrongType(base, TypeNameObject, overrides[lang])
			errs.tagLanguage(from, lang)
			continue
		}
		keys := make([]string, 0, len(block))
		for key := range block {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			prop := v.schema.GetProperty(key)
			if prop == nil || prop.LanguageOverrides {
				continue
			}
			v.validateValue(joinPath(base, key), block[key], prop, errs)
		}
		errs.tagLanguage(from, lang)
	}
	return errs.AsError()
}

// validateValue validates a value against a schema.
func (v *Validator) validateValue(path string, value any, schema *Schema, errs *ValidationErrors) {
	if schema == nil || (v.maxErrors > 0 && errs.Len() >= v.maxErrors) {
		return
	}

	if len(schema.Enum) > 0 {
		v.validateEnum(path, value, schema.Enum, errs)
	}

	if !schema.Type.IsEmpty() {
		v.validateType(path, value, schema, errs)
	}
}

// validateType validates the value against the expected type(s).
func (v *Validator) validateType(path string, value any, schema *Schema, errs *ValidationErrors) {
	if value == nil {
		if !schema.Type.Is(TypeNameNull) {
			errs.wrongType(path, schema.Type.String(), value)
		}
		return
	}

	for _, typ := range schema.Type.Types {
		if !matchesType(value, typ) {
			continue
		}
		switch typ {
		case TypeNameNumber, TypeNameInteger:
			v.validateNumber(path, value, schema, errs)
		case TypeNameArray:
			v.validateArray(path, value, schema, errs)
		case TypeNameObject:
			v.validateObject(path, value, schema, errs)
		}
		return
	}

	errs.wrongType(path, schema.Type.String(), value)
}

// matchesType checks if a value matches a JSON Schema type.
func matchesType(value any, typ string) bool {
	switch typ {
	case TypeNameString:
		_, ok := value.(string)
		return ok
	case TypeNameNumber:
		return isNumber(value)
	case TypeNameInteger:
		return isInteger(value)
	case TypeNameBoolean:
		_, ok := value.(bool)
		return ok
	case TypeNameArray:
		return toSlice(value) != nil
	case TypeNameObject:
		_, ok := value.(map[string]any)
		return ok
	case TypeNameNull:
		return value == nil
	default:
		return false
	}
}

// validateNumber validates numeric constraints.
func (v *Validator) validateNumber(path string, value any, schema *Schema, errs *ValidationErrors) {
	f := toFloat64(value)

	if schema.Minimum != nil && f < *schema.Minimum {
		errs.outOfRange(path, value, schema.Minimum, schema.Maximum)
		return
	}
	if schema.Maximum != nil && f > *schema.Maximum {
		errs.outOfRange(path, value, schema.Minimum, schema.Maximum)
	}
}

// validateArray validates array constraints.
func (v *Validator) validateArray(path string, value any, schema *Schema, errs *ValidationErrors) {
	arr := toSlice(value)

	if schema.UniqueItems {
		seen := make(map[string]bool)
		for i, item := range arr {
			keyBytes, err := json.Marshal(item)
			key := string(keyBytes)
			if err != nil {
				key = fmt.Sprintf("%v", item)
			}
			if seen[key] {
				errs.add(path, item, "%v is listed twice (index %d)", item, i)
				break
			}
			seen[key] = true
		}
	}

	if schema.Items != nil {
		for i, item := range arr {
			v.validateValue(fmt.Sprintf("%s[%d]", path, i), item, schema.Items, errs)
		}
	}
}

// validateObject validates object constraints.
func (v *Validator) validateObject(path string, value any, schema *Schema, errs *ValidationErrors) {
	obj := value.(map[string]any)

	if schema.LanguageOverrides {
		return
	}

	for _, req := range schema.Required {
		if _, exists := obj[req]; !exists {
			errs.missing(joinPath(path, req))
		}
	}

	names := make([]string, 0, len(obj))
	for name := range obj {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		propPath := joinPath(path, name)
		propValue := obj[name]

		switch propSchema, ok := schema.Properties[name]; {
		case ok:
			v.validateValue(propPath, propValue, propSchema, errs)
		case schema.Values != nil:
			v.validateValue(propPath, propValue, schema.Values, errs)
		case v.strictMode && path == "" && !schema.AllowsAdditionalProperties():
			errs.unknown(propPath, propValue)
		}
	}
}

// validateEnum checks if value is in the allowed enum values.
func (v *Validator) validateEnum(path string, value any, allowed []any, errs *ValidationErrors) {
	for _, a := range allowed {
		if valuesEqual(value, a) {
			return
		}
	}
	errs.notAllowed(path, value, allowed)
}

// Helper functions

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	default:
		return false
	}
}

func isInteger(v any) bool {
	switch val := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return float32(int32(val)) == val
	case float64:
		return float64(int64(val)) == val
	default:
		return false
	}
}

func toFloat64(v any) float64 {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int8:
		return float64(val)
	case int16:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint:
		return float64(val)
	case uint8:
		return float64(val)
	case uint16:
		return float64(val)
	case uint32:
		return float64(val)
	case uint64:
		return float64(val)
	case float32:
		return float64(val)
	case float64:
		return val
	default:
		return 0
	}
}

func toSlice(v any) []any {
	switch val := v.(type) {
	case []any:
		return val
	case []string:
		result := make([]any, len(val))
		for i, s := range val {
			result[i] = s
		}
		return result
	default:
		return nil
	}
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if isNumber(a) && isNumber(b) {
		return toFloat64(a) == toFloat64(b)
	}
	return a == b
}

func joinPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}
