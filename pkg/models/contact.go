package models

import (
	"time"
)

// LinkPrecedence marks a contact as the root of its cluster or a member of one
type LinkPrecedence string

const (
	LinkPrecedencePrimary   LinkPrecedence = "primary"
	LinkPrecedenceSecondary LinkPrecedence = "secondary"
)

// Contact is one stored identity record
type Contact struct {
	ID             int64          `json:"id" db:"id"`
	PhoneNumber    *string        `json:"phoneNumber" db:"phone_number"`
	Email          *string        `json:"email" db:"email"`
	LinkedID       *int64         `json:"linkedId" db:"linked_id"`
	LinkPrecedence LinkPrecedence `json:"linkPrecedence" db:"link_precedence"`
	CreatedAt      time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time      `json:"updatedAt" db:"updated_at"`
	DeletedAt      *time.Time     `json:"deletedAt,omitempty" db:"deleted_at"`
}

// IsPrimary reports whether the contact roots its own cluster
func (c Contact) IsPrimary() bool {
	return c.LinkPrecedence == LinkPrecedencePrimary
}

// RootID is the id of the cluster root the contact belongs to, or nil for a
// secondary whose link was lost.
func (c Contact) RootID() *int64 {
	if c.IsPrimary() {
		id := c.ID
		return &id
	}
	return c.LinkedID
}

// NewContact is the insert shape; the store assigns id and timestamps
type NewContact struct {
	Email          *string
	PhoneNumber    *string
	LinkedID       *int64
	LinkPrecedence LinkPrecedence
}

// ConsolidatedContact is the canonical view of one cluster.
// The primary id keeps the spelling existing consumers of /identify depend on.
type ConsolidatedContact struct {
	PrimaryContactID    int64    `json:"primaryContatctId"`
	Emails              []string `json:"emails"`
	PhoneNumbers        []string `json:"phoneNumbers"`
	SecondaryContactIDs []int64  `json:"secondaryContactIds"`
}
