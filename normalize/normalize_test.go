package normalize

import (
	"reflect"
	"testing"
)

func TestApply_FieldRules(t *testing.T) {
	tests := []struct {
		name string
		in   Record
		want Record
	}{
		{
			name: "free text uppercased and trimmed",
			in:   Record{"address_line1": "  1 Main St ", "city_locality": "anytown"},
			want: Record{
				"address_line1":           "1 MAIN ST",
				"city_locality":           "ANYTOWN",
				FieldResidentialIndicator: "unknown",
			},
		},
		{
			name: "country code uppercased",
			in:   Record{FieldCountryCode: " us "},
			want: Record{FieldCountryCode: "US", FieldResidentialIndicator: "unknown"},
		},
		{
			name: "email lowercased",
			in:   Record{FieldEmail: " Bob@Example.COM "},
			want: Record{FieldEmail: "bob@example.com", FieldResidentialIndicator: "unknown"},
		},
		{
			name: "non-string passes through",
			in:   Record{FieldPostalCode: float64(90210), "lat": 1.5},
			want: Record{
				FieldPostalCode:           float64(90210),
				"lat":                     1.5,
				FieldResidentialIndicator: "unknown",
			},
		},
		{
			name: "nil value passes through",
			in:   Record{FieldPostalCode: nil},
			want: Record{FieldPostalCode: nil, FieldResidentialIndicator: "unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIndicator_ClosedSet(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "yes", in: "yes", want: "yes"},
		{name: "no", in: "no", want: "no"},
		{name: "unknown", in: "unknown", want: "unknown"},
		{name: "case variant", in: " YES ", want: "yes"},
		{name: "mixed case", in: "No", want: "no"},
		{name: "out of set", in: "maybe", want: "unknown"},
		{name: "empty string", in: "", want: "unknown"},
		{name: "nil", in: nil, want: "unknown"},
		{name: "non-string", in: 7, want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Indicator(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestApply_Idempotent(t *testing.T) {
	records := []Record{
		{"address_line1": " 1 Main St ", "city_locality": "anytown", FieldCountryCode: "us"},
		{FieldEmail: "Bob@Example.com", FieldResidentialIndicator: "YES"},
		{FieldPostalCode: float64(12345)},
		{},
	}

	for _, r := range records {
		once := Apply(r)
		twice := Apply(once)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("not idempotent: %v -> %v -> %v", r, once, twice)
		}
	}
}

func TestValidate_MissingPostalCode(t *testing.T) {
	tests := []struct {
		name     string
		in       Record
		wantMsgs int
	}{
		{name: "US without postal code", in: Record{FieldCountryCode: "US"}, wantMsgs: 1},
		{name: "lowercase us without postal code", in: Record{FieldCountryCode: "us"}, wantMsgs: 1},
		{name: "US with blank postal code", in: Record{FieldCountryCode: "US", FieldPostalCode: "  "}, wantMsgs: 1},
		{name: "US with postal code", in: Record{FieldCountryCode: "US", FieldPostalCode: "90210"}, wantMsgs: 0},
		{name: "US with numeric postal code", in: Record{FieldCountryCode: "US", FieldPostalCode: float64(90210)}, wantMsgs: 0},
		{name: "non-US without postal code", in: Record{FieldCountryCode: "ca"}, wantMsgs: 0},
		{name: "no country", in: Record{}, wantMsgs: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msgs := Validate(tt.in)
			if status != StatusVerified {
				t.Errorf("status: got %q, want %q", status, StatusVerified)
			}
			if len(msgs) != tt.wantMsgs {
				t.Fatalf("messages: got %d, want %d", len(msgs), tt.wantMsgs)
			}
			if tt.wantMsgs == 1 {
				m := msgs[0]
				if m.Code != "missing_postal_code" || m.Level != LevelWarning {
					t.Errorf("got message %+v", m)
				}
			}
		})
	}
}

func BenchmarkApply(b *testing.B) {
	r := Record{
		"name":                    "Bob Smith",
		"address_line1":           " 1 Main St ",
		"city_locality":           "anytown",
		"state_province":          "ca",
		FieldCountryCode:          "us",
		FieldEmail:                "Bob@Example.com",
		FieldResidentialIndicator: "YES",
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Apply(r)
	}
}
