package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventStatus string

const (
	EventStatusPending   EventStatus = "pending"
	EventStatusPublished EventStatus = "published"
	EventStatusFailed    EventStatus = "failed"
)

type EventType string

const EventTypeTransactionRecorded EventType = "transaction.recorded"

// TransactionEvent is an outbox row written in the same database transaction
// as the ledger append it describes.
type TransactionEvent struct {
	ID            uuid.UUID
	TransactionID int64
	AccountID     int64
	EventType     EventType
	Payload       json.RawMessage
	Status        EventStatus
	Attempts      int
	LastAttempt   *time.Time
	CreatedAt     time.Time
	PublishedAt   *time.Time
}
