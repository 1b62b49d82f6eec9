package model

import "fmt"

// Vendor identifies the invoice issuer. Name is the only required field;
// everything else is best-effort and may be absent.
type Vendor struct {
	Name       FieldValue[string] `json:"name"`
	Address    FieldValue[string] `json:"address"`
	TaxID      FieldValue[string] `json:"tax_id"`
	Phone      FieldValue[string] `json:"phone"`
	Email      FieldValue[string] `json:"email"`
	LayoutHash string             `json:"layout_hash"`
}

// NewVendor enforces that Name is present and non-empty.
func NewVendor(name, address, taxID, phone, email FieldValue[string], layoutHash string) (Vendor, error) {
	if !name.Present() || *name.Value == "" {
		return Vendor{}, SchemaError{Path: "/vendor/name", Reason: "vendor name is required and must be non-empty"}
	}
	return Vendor{
		Name:       name,
		Address:    address,
		TaxID:      taxID,
		Phone:      phone,
		Email:      email,
		LayoutHash: layoutHash,
	}, nil
}

// SchemaError is returned when constructing a typed record fails because a
// required field is missing or invalid.
type SchemaError struct {
	Path   string
	Reason string
}

func (e SchemaError) Error() string {
	return fmt.Sprintf("schema error at %s: %s", e.Path, e.Reason)
}
