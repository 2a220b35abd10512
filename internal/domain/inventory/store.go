package inventory

import "github.com/clinic/pharmacy/internal/domain/shared"

// Store identifies one of the two physical stock locations
type Store string

const (
	// StoreWholesale is the bulk store (magasin gros) that receives supplier deliveries
	StoreWholesale Store = "wholesale"
	// StoreRetail is the dispensing store (magasin détail) facing patients
	StoreRetail Store = "retail"
)

// AllStores returns the stores in reporting order
func AllStores() []Store {
	return []Store{StoreWholesale, StoreRetail}
}

// String returns the string representation of Store
func (s Store) String() string {
	return string(s)
}

// IsValid returns true if the store is known
func (s Store) IsValid() bool {
	return s == StoreWholesale || s == StoreRetail
}

// ParseStore converts a raw value into a Store
func ParseStore(raw string) (Store, error) {
	s := Store(raw)
	if !s.IsValid() {
		return "", shared.NewValidationError("unknown store %q", raw)
	}
	return s, nil
}
