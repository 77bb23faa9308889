package enums

import "fmt"

// ReferenceType labels what triggered a stock movement.
type ReferenceType string

const (
	ReferenceTypeReceipt    ReferenceType = "receipt"
	ReferenceTypeSale       ReferenceType = "sale"
	ReferenceTypeAdjustment ReferenceType = "adjustment"
	ReferenceTypeReturn     ReferenceType = "return"
	ReferenceTypeManual     ReferenceType = "manual"
)

var validReferenceTypes = []ReferenceType{
	ReferenceTypeReceipt,
	ReferenceTypeSale,
	ReferenceTypeAdjustment,
	ReferenceTypeReturn,
	ReferenceTypeManual,
}

// IsValid reports whether the value matches the canonical reference enum.
func (r ReferenceType) IsValid() bool {
	for _, candidate := range validReferenceTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseReferenceType converts raw input into ReferenceType.
func ParseReferenceType(value string) (ReferenceType, error) {
	for _, candidate := range validReferenceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reference type %q", value)
}

func (r ReferenceType) String() string {
	return string(r)
}
