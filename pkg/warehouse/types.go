package warehouse

import (
	"encoding/json"
	"fmt"
)

// GenericTextType is the normalized name for text-like columns and the
// degradation target for unparseable type descriptors.
const GenericTextType = "TEXT"

// GenericFloatType is the normalized name for floating-point columns.
const GenericFloatType = "FLOAT"

// typeDescriptor is the warehouse's native column type descriptor, a
// JSON document carried in bulk column listings.
type typeDescriptor struct {
	Type      string `json:"type"`
	Precision int    `json:"precision"`
	Scale     int    `json:"scale"`
	Length    int    `json:"length"`
}

// NormalizeType converts a native type descriptor into a human-readable
// type string. Fixed-point numerics become NUMBER(precision,scale),
// text becomes the generic text type, floating point the generic float
// type; every other tag passes through unchanged. Malformed descriptors
// degrade to the generic text type rather than failing.
func NormalizeType(raw string) string {
	var td typeDescriptor
	if err := json.Unmarshal([]byte(raw), &td); err != nil || td.Type == "" {
		return GenericTextType
	}

	switch td.Type {
	case "FIXED":
		return fmt.Sprintf("NUMBER(%d,%d)", td.Precision, td.Scale)
	case "TEXT":
		return GenericTextType
	case "REAL":
		return GenericFloatType
	default:
		// Dates, booleans, timestamps, binary, semi-structured variants.
		return td.Type
	}
}
