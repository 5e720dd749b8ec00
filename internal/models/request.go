package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RequestKind string

const (
	RequestKindPermission RequestKind = "PERMISSION"
	RequestKindAbsence    RequestKind = "ABSENCE"
)

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "PENDING"
	RequestStatusApproved RequestStatus = "APPROVED"
	RequestStatusRejected RequestStatus = "REJECTED"
)

// Allowed request types per kind.
var requestTypes = map[RequestKind][]string{
	RequestKindPermission: {"EARLY_PICKUP", "LATE_DROPOFF", "PICKUP_BY_GUARDIAN", "NO_RETURN_TRIP"},
	RequestKindAbsence:    {"SICK", "FAMILY", "TRAVEL", "OTHER"},
}

func (k RequestKind) Valid() bool {
	_, ok := requestTypes[k]
	return ok
}

// AllowsType reports whether t is a request type of kind k.
func (k RequestKind) AllowsType(t string) bool {
	for _, allowed := range requestTypes[k] {
		if allowed == t {
			return true
		}
	}
	return false
}

// Request is a parent-initiated permission or absence request for one
// student on one date. For a given (student, kind, type, date) at most one
// request that is not REJECTED may exist.
type Request struct {
	ID         uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	Kind       RequestKind   `gorm:"type:varchar(16);not null;index:idx_request_slot,priority:2" json:"kind"`
	StudentID  uuid.UUID     `gorm:"type:uuid;not null;index:idx_request_slot,priority:1" json:"studentId"`
	ParentID   uuid.UUID     `gorm:"type:uuid;not null;index" json:"parentId"`
	Type       string        `gorm:"type:varchar(32);not null;index:idx_request_slot,priority:3" json:"type"`
	Date       string        `gorm:"type:varchar(10);not null;index:idx_request_slot,priority:4" json:"date"`
	Reason     string        `json:"reason,omitempty"`
	Status     RequestStatus `gorm:"type:varchar(16);not null" json:"status"`
	ReviewerID *uuid.UUID    `gorm:"type:uuid" json:"reviewerId,omitempty"`
	DecidedAt  *time.Time    `json:"decidedAt,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

func (r *Request) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
