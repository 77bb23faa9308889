package enums

import "fmt"

// StockStatus is the derived availability classification for a product. It is
// computed from current quantity vs. the configured minimum and never stored.
type StockStatus string

const (
	StockStatusOut StockStatus = "OUT_OF_STOCK"
	StockStatusLow StockStatus = "LOW_STOCK"
	StockStatusIn  StockStatus = "IN_STOCK"
)

var validStockStatuses = []StockStatus{
	StockStatusOut,
	StockStatusLow,
	StockStatusIn,
}

// IsValid reports whether the value matches a known status.
func (s StockStatus) IsValid() bool {
	for _, candidate := range validStockStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStockStatus converts raw input into StockStatus.
func ParseStockStatus(value string) (StockStatus, error) {
	for _, candidate := range validStockStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock status %q", value)
}

func (s StockStatus) String() string {
	return string(s)
}
