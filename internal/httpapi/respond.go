package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/ripkitten-co/addressd/normalize"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, map[string]string{"detail": detail})
}

func decodeRecords(body io.Reader) ([]normalize.Record, error) {
	var recs []normalize.Record
	if err := json.NewDecoder(body).Decode(&recs); err != nil {
		return nil, fmt.Errorf("body must be a JSON array of address objects")
	}
	return recs, nil
}

// requiredAddressFields are checked at the edge for the validation pipeline;
// the core deliberately accepts any record shape.
var requiredAddressFields = []string{"address_line1", "city_locality", "state_province"}

func validateAddressRecords(recs []normalize.Record) error {
	if len(recs) == 0 {
		return fmt.Errorf("at least one address is required")
	}
	for i, rec := range recs {
		for _, field := range requiredAddressFields {
			s, _ := rec[field].(string)
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("address %d: %s is required", i, field)
			}
		}
		cc, _ := rec[normalize.FieldCountryCode].(string)
		if len(strings.TrimSpace(cc)) != 2 {
			return fmt.Errorf("address %d: country_code must be 2 characters", i)
		}
	}
	return nil
}
