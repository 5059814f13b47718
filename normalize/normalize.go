// Package normalize implements the deterministic address transform shared by
// the validation and recognition pipelines. It is pure: no I/O, no errors for
// business conditions. Rule violations surface as messages, not errors.
package normalize

import "strings"

// Record is one address record. Records are kept as open maps rather than a
// fixed struct: payloads are stored verbatim at submission time and may be
// processed much later by a newer build, so unknown fields must round-trip
// untouched.
type Record map[string]any

// Well-known field names with normalization rules of their own.
const (
	FieldCountryCode          = "country_code"
	FieldEmail                = "email"
	FieldPostalCode           = "postal_code"
	FieldResidentialIndicator = "address_residential_indicator"
)

// Residential indicator closed set. Anything else normalizes to unknown.
const (
	IndicatorUnknown = "unknown"
	IndicatorYes     = "yes"
	IndicatorNo      = "no"
)

// Apply returns a normalized copy of r. String fields are trimmed, then:
// country_code uppercased, email lowercased, the residential indicator
// clamped to {unknown, yes, no}, every other string uppercased. Non-string
// values pass through unchanged. The residential indicator key is always
// present in the result. Apply is idempotent.
func Apply(r Record) Record {
	out := make(Record, len(r)+1)

	for key, value := range r {
		if key == FieldResidentialIndicator {
			out[key] = Indicator(value)
			continue
		}

		s, ok := value.(string)
		if !ok {
			out[key] = value
			continue
		}

		s = strings.TrimSpace(s)
		switch key {
		case FieldCountryCode:
			out[key] = strings.ToUpper(s)
		case FieldEmail:
			out[key] = strings.ToLower(s)
		default:
			out[key] = strings.ToUpper(s)
		}
	}

	if _, ok := out[FieldResidentialIndicator]; !ok {
		out[FieldResidentialIndicator] = IndicatorUnknown
	}

	return out
}

// Indicator maps any raw residential-indicator value onto the closed set.
// Case and whitespace variants of the three members pass through lowercased;
// everything else, including nil and non-strings, becomes unknown.
func Indicator(v any) string {
	s, ok := v.(string)
	if !ok {
		return IndicatorUnknown
	}
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case IndicatorUnknown, IndicatorYes, IndicatorNo:
		return s
	}
	return IndicatorUnknown
}

// CountryCode returns the trimmed, uppercased country code of r, or "" when
// absent or not a string.
func CountryCode(r Record) string {
	s, _ := r[FieldCountryCode].(string)
	return strings.ToUpper(strings.TrimSpace(s))
}

// PostalCodeEmpty reports whether r carries no usable postal code. Postal
// codes may arrive as strings or numbers; only nil and blank strings count
// as empty.
func PostalCodeEmpty(r Record) bool {
	switch v := r[FieldPostalCode].(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	default:
		return false
	}
}
