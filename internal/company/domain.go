package company

import "time"

// Profile is the single company profile row. The numbering prefixes it
// carries are handed to the document sequencer explicitly; nothing
// reads them as ambient state.
type Profile struct {
	Name             string    `json:"name"`
	GSTIN            string    `json:"gstin,omitempty"`
	Address          string    `json:"address,omitempty"`
	Phone            string    `json:"phone,omitempty"`
	Email            string    `json:"email,omitempty"`
	InvoicePrefix    string    `json:"invoice_prefix"`
	DyeingBillPrefix string    `json:"dyeing_bill_prefix"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// DefaultProfile seeds the profile before the first update.
func DefaultProfile() Profile {
	return Profile{
		Name:             "My Business",
		InvoicePrefix:    "INV",
		DyeingBillPrefix: "DYE",
	}
}

// UpdateProfileInput carries partial profile updates.
type UpdateProfileInput struct {
	Name             *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	GSTIN            *string `json:"gstin,omitempty"`
	Address          *string `json:"address,omitempty" validate:"omitempty,max=500"`
	Phone            *string `json:"phone,omitempty" validate:"omitempty,max=20"`
	Email            *string `json:"email,omitempty" validate:"omitempty,email"`
	InvoicePrefix    *string `json:"invoice_prefix,omitempty" validate:"omitempty,min=1,max=10,alphanum"`
	DyeingBillPrefix *string `json:"dyeing_bill_prefix,omitempty" validate:"omitempty,min=1,max=10,alphanum"`
}
