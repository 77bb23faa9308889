package enums

import "fmt"

// TransactionType maps to the transaction_type_enum enum in Postgres.
type TransactionType string

const (
	TransactionTypeStockIn    TransactionType = "stock_in"
	TransactionTypeStockOut   TransactionType = "stock_out"
	TransactionTypeAdjustment TransactionType = "adjustment"
	TransactionTypeReturn     TransactionType = "return"
)

var validTransactionTypes = []TransactionType{
	TransactionTypeStockIn,
	TransactionTypeStockOut,
	TransactionTypeAdjustment,
	TransactionTypeReturn,
}

// IsValid reports whether the value matches the canonical transaction enum.
func (t TransactionType) IsValid() bool {
	for _, candidate := range validTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionType converts raw input into TransactionType.
func ParseTransactionType(value string) (TransactionType, error) {
	for _, candidate := range validTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}

func (t TransactionType) String() string {
	return string(t)
}
