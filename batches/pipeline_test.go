package batches

import (
	"testing"

	"github.com/ripkitten-co/addressd/normalize"
)

func TestValidationPipeline_Run(t *testing.T) {
	original := normalize.Record{
		"address_line1":  "1 Main St",
		"city_locality":  "anytown",
		"state_province": "ca",
		"country_code":   "us",
		"postal_code":    nil,
	}

	status, data := ValidationPipeline{}.Run(original)

	if status != "verified" {
		t.Errorf("status: got %q, want %q", status, "verified")
	}
	if got := data.MatchedAddress["country_code"]; got != "US" {
		t.Errorf("matched country_code: got %v, want US", got)
	}
	if got := data.MatchedAddress["city_locality"]; got != "ANYTOWN" {
		t.Errorf("matched city_locality: got %v, want ANYTOWN", got)
	}
	if got := data.OriginalAddress["address_line1"]; got != "1 Main St" {
		t.Errorf("original address_line1 changed: got %v", got)
	}
	if got := data.OriginalAddress[normalize.FieldResidentialIndicator]; got != "unknown" {
		t.Errorf("original residential indicator: got %v, want unknown", got)
	}

	if len(data.Messages) != 1 {
		t.Fatalf("messages: got %d, want 1", len(data.Messages))
	}
	if data.Messages[0].Code != "missing_postal_code" || data.Messages[0].Level != "warning" {
		t.Errorf("got message %+v", data.Messages[0])
	}
}

func TestValidationPipeline_NonUSNoPostalWarning(t *testing.T) {
	original := normalize.Record{
		"address_line1":  "1 Main St",
		"city_locality":  "anytown",
		"state_province": "on",
		"country_code":   "ca",
	}

	_, data := ValidationPipeline{}.Run(original)
	if len(data.Messages) != 0 {
		t.Errorf("messages: got %v, want none", data.Messages)
	}
}

func TestRecognitionPipeline_Run(t *testing.T) {
	original := normalize.Record{
		"address_line1": "1 Main St",
		"email":         "Bob@Example.COM",
	}

	status, data := RecognitionPipeline{}.Run(original)

	if status != "completed" {
		t.Errorf("status: got %q, want %q", status, "completed")
	}
	if got := data.RecognizedAddress["address_line1"]; got != "1 MAIN ST" {
		t.Errorf("recognized address_line1: got %v", got)
	}
	if got := data.RecognizedAddress["email"]; got != "bob@example.com" {
		t.Errorf("recognized email: got %v", got)
	}
	if data.MatchedAddress != nil {
		t.Errorf("recognition items must not carry a matched address, got %v", data.MatchedAddress)
	}
	if data.Messages != nil {
		t.Errorf("recognition items must not carry messages, got %v", data.Messages)
	}
}

func TestProject_DefaultsMissingStructures(t *testing.T) {
	// historic items may miss nested blobs entirely; readers still get a
	// stable shape
	vr := ValidationPipeline{}.Project("verified", ItemData{})
	if vr.OriginalAddress == nil || vr.MatchedAddress == nil {
		t.Errorf("nil address in %+v", vr)
	}
	if vr.Messages == nil {
		t.Error("nil messages")
	}

	rr := RecognitionPipeline{}.Project("completed", ItemData{})
	if rr.OriginalAddress == nil || rr.RecognizedAddress == nil {
		t.Errorf("nil address in %+v", rr)
	}
	if rr.Status != "recognized" {
		t.Errorf("status: got %q, want recognized", rr.Status)
	}
}
