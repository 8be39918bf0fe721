package models

import (
	"time"

	"gorm.io/datatypes"
)

type DeliveryState = string

const (
	DeliveryStatePending  = DeliveryState("pending")
	DeliveryStateInFlight = DeliveryState("in_flight")
	DeliveryStateDead     = DeliveryState("dead")
)

// SyncPayload is what the external sync worker ships to the remote endpoint
// for every accepted vote.
type SyncPayload struct {
	VoteID             uint      `json:"vote_id"`
	QuestionID         uint      `json:"question_id"`
	OptionID           uint      `json:"option_id"`
	UserID             string    `json:"user_id"`
	Timestamp          time.Time `json:"timestamp"`
	QuestionIdentifier string    `json:"question_identifier"`
	OptionIdentifier   string    `json:"option_identifier"`
}

// SyncDelivery is one queued at-least-once delivery of a SyncPayload.
// State machine: pending -> in_flight -> (acked: row removed) or back to
// pending with a later next_attempt_at, until attempts runs out and the row
// lands in dead for operator inspection.
type SyncDelivery struct {
	BaseModel

	MessageID     string                          `json:"message_id" gorm:"uniqueIndex;size:64"`
	Payload       datatypes.JSONType[SyncPayload] `json:"payload"`
	State         DeliveryState                   `json:"state" gorm:"index:idx_deliveries_claimable;size:16"`
	Attempts      int                             `json:"attempts"`
	NextAttemptAt time.Time                       `json:"next_attempt_at" gorm:"index:idx_deliveries_claimable"`
	ClaimedAt     *time.Time                      `json:"claimed_at"`
	LastError     string                          `json:"last_error"`
}
