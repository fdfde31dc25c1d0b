package organization

import "time"

// Organization is a tenant. Its id scopes every permission set and seat.
type Organization struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	OwnerUserID string    `json:"ownerUserId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type CreateOrganizationRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

// Onboarding is the result of creating a tenant.
type Onboarding struct {
	Organization      *Organization `json:"organization"`
	AccountOwnerSetID string        `json:"accountOwnerSetId"`
	OwnerSeatID       string        `json:"ownerSeatId"`
}
