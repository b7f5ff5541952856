package domain

import (
	"time"

	"github.com/google/uuid"
)

// ListingKind classifies what an owner is offering.
type ListingKind string

const (
	ListingJob        ListingKind = "job"
	ListingInternship ListingKind = "internship"
	ListingProduct    ListingKind = "product"
)

// Valid reports whether the kind is one of the known listing kinds.
func (k ListingKind) Valid() bool {
	switch k {
	case ListingJob, ListingInternship, ListingProduct:
		return true
	}
	return false
}

// Listing is a job, internship, or product posted by an owner.
type Listing struct {
	ID           uuid.UUID   `json:"id"`
	OwnerID      uuid.UUID   `json:"owner_id"`
	Kind         ListingKind `json:"kind"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	Compensation string      `json:"compensation,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Application is a student's application to a listing. One application per
// student per listing.
type Application struct {
	ID        uuid.UUID `json:"id"`
	ListingID uuid.UUID `json:"listing_id"`
	StudentID uuid.UUID `json:"student_id"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
