package domain

import "time"

type ContactStatus string

const (
	ContactPending  ContactStatus = "pending"
	ContactAccepted ContactStatus = "accepted"
	ContactBlocked  ContactStatus = "blocked"
)

type ContactAction string

const (
	ContactAccept  ContactAction = "accept"
	ContactDecline ContactAction = "decline"
)

// Contact is one direction of a relationship: UserID lists ContactID.
// The pair (UserID, ContactID) is unique in the store.
type Contact struct {
	UserID    string        `json:"userId"`
	ContactID string        `json:"contactId"`
	Status    ContactStatus `json:"status"`
	AddedAt   time.Time     `json:"addedAt"`
}
