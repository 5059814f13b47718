package batches

import "github.com/ripkitten-co/addressd/normalize"

// Pipeline is the strategy that distinguishes the two batch flavors. The
// lifecycle state machine is identical for both; only the tables, the
// per-record transform, and the projected result shape differ.
type Pipeline[R any] interface {
	Name() string
	BatchTable() string
	ItemTable() string
	// JobName is the queue message name a worker routes back to Process.
	JobName() string
	// Run transforms one raw record into an item's status and stored blob.
	Run(original normalize.Record) (status string, data ItemData)
	// Project maps a stored item back to the caller-facing result shape.
	Project(status string, data ItemData) R
}

// ValidationPipeline normalizes addresses and derives validation messages.
type ValidationPipeline struct{}

func (ValidationPipeline) Name() string       { return "validation" }
func (ValidationPipeline) BatchTable() string { return "address_validation_batches" }
func (ValidationPipeline) ItemTable() string  { return "address_validation_items" }
func (ValidationPipeline) JobName() string    { return "validate_addresses_batch" }

func (ValidationPipeline) Run(original normalize.Record) (string, ItemData) {
	status, msgs := normalize.Validate(original)
	return status, ItemData{
		OriginalAddress: originalView(original),
		MatchedAddress:  normalize.Apply(original),
		Messages:        msgs,
	}
}

func (ValidationPipeline) Project(status string, data ItemData) ValidationResult {
	return ValidationResult{
		Status:          status,
		OriginalAddress: emptyIfNil(data.OriginalAddress),
		MatchedAddress:  emptyIfNil(data.MatchedAddress),
		Messages:        emptyIfNilMsgs(data.Messages),
	}
}

// RecognitionPipeline applies the same normalization without deriving
// messages; results surface the transform as a recognized address.
type RecognitionPipeline struct{}

func (RecognitionPipeline) Name() string       { return "recognition" }
func (RecognitionPipeline) BatchTable() string { return "address_recognition_batches" }
func (RecognitionPipeline) ItemTable() string  { return "address_recognition_items" }
func (RecognitionPipeline) JobName() string    { return "recognize_addresses_batch" }

func (RecognitionPipeline) Run(original normalize.Record) (string, ItemData) {
	return "completed", ItemData{
		OriginalAddress:   originalView(original),
		RecognizedAddress: normalize.Apply(original),
	}
}

func (RecognitionPipeline) Project(_ string, data ItemData) RecognitionResult {
	return RecognitionResult{
		Status:            "recognized",
		OriginalAddress:   emptyIfNil(data.OriginalAddress),
		RecognizedAddress: emptyIfNil(data.RecognizedAddress),
	}
}

// originalView copies the raw record, clamping only the residential indicator
// so stored originals always carry a member of the closed set.
func originalView(r normalize.Record) normalize.Record {
	out := make(normalize.Record, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	out[normalize.FieldResidentialIndicator] = normalize.Indicator(r[normalize.FieldResidentialIndicator])
	return out
}
