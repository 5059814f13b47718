// Package batches implements the batch lifecycle shared by the address
// validation and recognition pipelines: creation, idempotent (re)processing
// under per-batch row locks, and ordered result projection.
package batches

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/ripkitten-co/addressd/normalize"
)

// Status is the batch lifecycle state. Transitions are monotone along the
// defined edges: queued -> processing -> completed, queued/processing ->
// failed, and completed/failed -> queued again via Requeue.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is one of the four lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Batch is one stored batch row. RawPayload holds the request payload exactly
// as submitted; it stays opaque until processing time so schema drift between
// write and processing cannot fail a read.
type Batch struct {
	ID         uuid.UUID
	Status     Status
	CreatedAt  time.Time
	RawPayload []byte
}

// BatchSummary is the caller-facing view of a batch with its item count.
type BatchSummary struct {
	ID        uuid.UUID       `json:"id"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	ItemCount int             `json:"items_count"`
	Payload   json.RawMessage `json:"request_payload,omitempty"`
}

// Item is one address record's persisted outcome within a batch.
type Item struct {
	ID        uuid.UUID
	BatchID   uuid.UUID
	Status    string
	Data      ItemData
	CreatedAt time.Time
}

// ItemData is the JSONB blob stored per item. Validation items fill
// MatchedAddress and Messages; recognition items fill RecognizedAddress.
type ItemData struct {
	OriginalAddress   normalize.Record    `json:"original_address,omitempty"`
	MatchedAddress    normalize.Record    `json:"matched_address,omitempty"`
	RecognizedAddress normalize.Record    `json:"recognized_address,omitempty"`
	Messages          []normalize.Message `json:"messages,omitempty"`
}

// ValidationResult is one validated address in a batch response.
type ValidationResult struct {
	Status          string              `json:"status"`
	OriginalAddress normalize.Record    `json:"original_address"`
	MatchedAddress  normalize.Record    `json:"matched_address"`
	Messages        []normalize.Message `json:"messages"`
}

// RecognitionResult is one recognized address in a batch response.
type RecognitionResult struct {
	Status            string           `json:"status"`
	OriginalAddress   normalize.Record `json:"original_address"`
	RecognizedAddress normalize.Record `json:"recognized_address"`
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// ListOptions page through batch summaries. A zero Status means no filter.
type ListOptions struct {
	Limit  int
	Offset int
	Status Status
}

func (o ListOptions) normalized() ListOptions {
	if o.Limit < 1 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
