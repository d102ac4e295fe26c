package conformance

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// SystemTypeMapping maps FHIRPath system types to FHIR primitive types.
// StructureDefinitions use them for the value of primitive elements and for
// Element.id and Extension.url.
var SystemTypeMapping = map[string]string{
	"http://hl7.org/fhirpath/System.String":   "string",
	"http://hl7.org/fhirpath/System.Boolean":  "boolean",
	"http://hl7.org/fhirpath/System.Integer":  "integer",
	"http://hl7.org/fhirpath/System.Decimal":  "decimal",
	"http://hl7.org/fhirpath/System.DateTime": "dateTime",
	"http://hl7.org/fhirpath/System.Time":     "time",
	"http://hl7.org/fhirpath/System.Date":     "date",
	"System.String":                           "string",
	"System.Boolean":                          "boolean",
	"System.Integer":                          "integer",
	"System.Decimal":                          "decimal",
	"System.DateTime":                         "dateTime",
	"System.Time":                             "time",
	"System.Date":                             "date",
}

// NormalizeSystemType converts a FHIRPath system type to a FHIR primitive
// type. Other names are returned unchanged.
func NormalizeSystemType(typeCode string) string {
	if normalized, ok := SystemTypeMapping[typeCode]; ok {
		return normalized
	}
	return typeCode
}

// PrimitiveTypes lists the FHIR primitive type codes across R4, R4B and R5.
var PrimitiveTypes = map[string]bool{
	"boolean":      true,
	"integer":      true,
	"integer64":    true,
	"string":       true,
	"decimal":      true,
	"uri":          true,
	"url":          true,
	"canonical":    true,
	"base64Binary": true,
	"instant":      true,
	"date":         true,
	"dateTime":     true,
	"time":         true,
	"code":         true,
	"oid":          true,
	"id":           true,
	"markdown":     true,
	"unsignedInt":  true,
	"positiveInt":  true,
	"uuid":         true,
	"xhtml":        true,
}

// IsPrimitiveType reports whether typeCode is a FHIR primitive.
func IsPrimitiveType(typeCode string) bool {
	return PrimitiveTypes[NormalizeSystemType(typeCode)]
}

// jsonKind describes the JSON type of a decoded value.
func jsonKind(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number, float64, float32, int, int32, int64, decimal.Decimal:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "unknown"
	}
}

// primitiveKind returns the JSON kind a primitive is written as.
func primitiveKind(typeCode string) string {
	switch typeCode {
	case "boolean":
		return "boolean"
	case "integer", "unsignedInt", "positiveInt", "decimal":
		return "number"
	default:
		// integer64 is a string in JSON, like every textual primitive
		return "string"
	}
}

// toDecimal converts a JSON number to a decimal without going through float64
// when the value was decoded with UseNumber.
func toDecimal(value any) (decimal.Decimal, bool) {
	switch n := value.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case decimal.Decimal:
		return n, true
	case float64:
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt32(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case string:
		d, err := decimal.NewFromString(n)
		return d, err == nil
	}
	return decimal.Decimal{}, false
}

var (
	minInt32 = decimal.NewFromInt(-2147483648)
	maxInt32 = decimal.NewFromInt(2147483647)
)

// primitiveProblem returns a description of what is wrong with a value of
// the right JSON kind, or "" when the value is acceptable.
func primitiveProblem(value any, typeCode string) string {
	switch typeCode {
	case "integer", "unsignedInt", "positiveInt", "integer64":
		d, ok := toDecimal(value)
		if !ok {
			return "is not a number"
		}
		if !d.IsInteger() {
			return "is not an integer"
		}
		if typeCode != "integer64" && (d.LessThan(minInt32) || d.GreaterThan(maxInt32)) {
			return "is outside the 32-bit integer range"
		}
		if typeCode == "positiveInt" && !d.IsPositive() {
			return "must be greater than zero"
		}
		if typeCode == "unsignedInt" && d.IsNegative() {
			return "must not be negative"
		}
	case "boolean", "decimal":
	default:
		if s, _ := value.(string); s == "" {
			return "must not be empty"
		}
	}
	return ""
}

// hasUpperAt reports whether s has an upper-case letter at byte offset i.
func hasUpperAt(s string, i int) bool {
	return i < len(s) && strings.ToUpper(s[i:i+1]) == s[i:i+1] && strings.ToLower(s[i:i+1]) != s[i:i+1]
}
