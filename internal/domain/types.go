package domain

import "github.com/shopspring/decimal"

type Direction string

const (
	DirectionAdd      Direction = "add"
	DirectionSubtract Direction = "sub"
)

// Product is one warehouse entry keyed by its lowercase name.
type Product struct {
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
}

// Snapshot is the whole persisted ledger state. Stores read and write it wholesale.
type Snapshot struct {
	Balance   decimal.Decimal
	Warehouse map[string]Product
	History   []string
}

// Clone returns a deep copy so callers can hand it to a store without sharing maps.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Balance:   s.Balance,
		Warehouse: make(map[string]Product, len(s.Warehouse)),
		History:   make([]string, len(s.History)),
	}
	for name, p := range s.Warehouse {
		out.Warehouse[name] = p
	}
	copy(out.History, s.History)
	return out
}

type Result struct {
	Message string `json:"message"`
	OK      bool   `json:"success"`
}

func Ok(msg string) Result   { return Result{Message: msg, OK: true} }
func Fail(msg string) Result { return Result{Message: msg, OK: false} }
