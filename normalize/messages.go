package normalize

// Message is one advisory attached to a validated address. Levels follow the
// usual info/warning/error ladder; nothing in the current rules emits above
// warning.
type Message struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Level   string `json:"level"`
}

const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// StatusVerified is the validation outcome for every address in the current
// rule set; there is no failure path in the deterministic validator.
const StatusVerified = "verified"

// Validate derives the validation status and message list for one raw record.
// US addresses without a postal code get a missing_postal_code warning.
func Validate(r Record) (string, []Message) {
	var msgs []Message

	if CountryCode(r) == "US" && PostalCodeEmpty(r) {
		msgs = append(msgs, Message{
			Code:    "missing_postal_code",
			Message: "postal_code is recommended for US",
			Level:   LevelWarning,
		})
	}

	return StatusVerified, msgs
}
