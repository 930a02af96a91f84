package customers

// ListCustomersRequest selects one of the customer lookups. The first
// non-empty criterion wins, in field order.
type ListCustomersRequest struct {
	Search           string `json:"search,omitempty"`
	Pincode          string `json:"pincode,omitempty" validate:"omitempty,numeric"`
	Phone            string `json:"phone,omitempty"`
	Email            string `json:"email,omitempty" validate:"omitempty,email"`
	BirthdayMonth    int    `json:"birthdayMonth,omitempty" validate:"omitempty,min=1,max=12"`
	AnniversaryMonth int    `json:"anniversaryMonth,omitempty" validate:"omitempty,min=1,max=12"`
}
