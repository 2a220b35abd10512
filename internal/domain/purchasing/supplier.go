package purchasing

import (
	"net/mail"
	"strings"

	"github.com/clinic/pharmacy/internal/domain/shared"
)

const AggregateTypeSupplier = "Supplier"

const (
	maxSupplierNameLength = 200
	maxPhoneLength        = 50
)

// Supplier is a vendor orders are placed with
type Supplier struct {
	shared.BaseAggregateRoot
	Name    string
	Phone   string
	Email   string
	Address string
	Notes   string
}

// SupplierContact holds the editable supplier fields
type SupplierContact struct {
	Name    string
	Phone   string
	Email   string
	Address string
	Notes   string
}

// NewSupplier creates a supplier
func NewSupplier(contact SupplierContact) (*Supplier, error) {
	s := &Supplier{BaseAggregateRoot: shared.NewBaseAggregateRoot()}
	if err := s.apply(contact); err != nil {
		return nil, err
	}
	return s, nil
}

// Update replaces the supplier's contact details
func (s *Supplier) Update(contact SupplierContact) error {
	if err := s.apply(contact); err != nil {
		return err
	}
	s.IncrementVersion()
	return nil
}

func (s *Supplier) apply(c SupplierContact) error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return shared.NewValidationError("supplier name cannot be empty")
	}
	if len(name) > maxSupplierNameLength {
		return shared.NewValidationError("supplier name cannot exceed %d characters", maxSupplierNameLength)
	}
	phone := strings.TrimSpace(c.Phone)
	if len(phone) > maxPhoneLength {
		return shared.NewValidationError("phone cannot exceed %d characters", maxPhoneLength)
	}
	email := strings.TrimSpace(c.Email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return shared.NewValidationError("invalid email address: %s", email)
		}
	}

	s.Name = name
	s.Phone = phone
	s.Email = email
	s.Address = strings.TrimSpace(c.Address)
	s.Notes = strings.TrimSpace(c.Notes)
	return nil
}
