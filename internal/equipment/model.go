package equipment

import (
	"errors"
	"fmt"
)

type Item struct {
	ID        string `json:"equipmentId"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Total     int    `json:"totalQuantity"`
	Available int    `json:"available"`
	Active    bool   `json:"active"`
}

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateCode = errors.New("code already exists")
	ErrInvalidStock  = errors.New("total must be >= 1 and available within [0, total]")
)

// InsufficientStockError reports a reserve that would drive availability
// negative. It never mutates state.
type InsufficientStockError struct {
	EquipmentID string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("equipment %s: requested %d, only %d available",
		e.EquipmentID, e.Requested, e.Available)
}
