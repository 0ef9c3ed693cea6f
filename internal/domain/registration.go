package domain

import (
	"fmt"
	"time"
)

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
	RequestStatusDeleted  RequestStatus = "deleted"
)

// RegistrationRequest is the ledger row kept for every Telegram identity that
// ever talked to the bot. ExternalID is unique across the table.
type RegistrationRequest struct {
	ID            int64         `json:"id"`
	ExternalID    int64         `json:"external_id"`
	Handle        *string       `json:"handle,omitempty"`
	DisplayName   *string       `json:"display_name,omitempty"`
	Status        RequestStatus `json:"status"`
	ProxyUsername *string       `json:"proxy_username,omitempty"`
	Secret        *string       `json:"-"` // kept after deletion for re-issue from the card view
	CreatedAt     time.Time     `json:"created_at"`
	ResolvedAt    *time.Time    `json:"resolved_at,omitempty"`
}

// Label returns the most human-friendly name known for the request.
func (r *RegistrationRequest) Label() string {
	if r.DisplayName != nil && *r.DisplayName != "" {
		return *r.DisplayName
	}
	if r.Handle != nil && *r.Handle != "" {
		return "@" + *r.Handle
	}
	if r.ProxyUsername != nil && *r.ProxyUsername != "" {
		return *r.ProxyUsername
	}
	return ProxyUsername(r.ExternalID)
}

// ProxyUsername maps an external identity to its proxy credential name.
func ProxyUsername(externalID int64) string {
	return fmt.Sprintf("tg_%d", externalID)
}

type RegisterOutcome int

const (
	RegisterNewPending RegisterOutcome = iota
	RegisterAlreadyPending
	RegisterApproved
	RegisterRejected
	RegisterRevoked
)

func (o RegisterOutcome) String() string {
	switch o {
	case RegisterNewPending:
		return "new_pending"
	case RegisterAlreadyPending:
		return "already_pending"
	case RegisterApproved:
		return "approved"
	case RegisterRejected:
		return "rejected"
	case RegisterRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// RegisterResult is what RegisterOrGet reports. Secret is set only for
// RegisterApproved, Request only for RegisterNewPending.
type RegisterResult struct {
	Outcome RegisterOutcome
	Request *RegistrationRequest
	Secret  string
}

type AdminStats struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
	Deleted  int64 `json:"deleted"`
}
