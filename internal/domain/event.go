package domain

// Commands accepted from the chat transport.
const (
	CommandStart   = "start"
	CommandBalance = "balance"
	CommandLookup  = "lookup"
)

// Outcome is the user-facing result class of a request.
type Outcome string

const (
	OutcomeSuccess             Outcome = "success"
	OutcomeInsufficientBalance Outcome = "insufficientBalance"
	OutcomeRateLimited         Outcome = "rateLimited"
	OutcomeInvalidNumber       Outcome = "invalidNumber"
	OutcomeServiceUnavailable  Outcome = "serviceUnavailable"
)

// Event is an already-parsed inbound request delivered by the transport collaborator.
type Event struct {
	EventID     string `json:"event_id,omitempty"`
	UserID      string `json:"user_id" validate:"required,max=128"`
	Command     string `json:"command" validate:"required"`
	Argument    string `json:"argument,omitempty" validate:"max=64"`
	TimestampMs int64  `json:"timestamp_ms,omitempty" validate:"gte=0"`
}

// LookupData is the normalized lookup payload returned to the transport.
type LookupData struct {
	InternationalNumber string `json:"international_number"`
	LocalNumber         string `json:"local_number"`
	CountryName         string `json:"country_name"`
	CountryCode         string `json:"country_code"`
	CarrierLabel        string `json:"carrier_label"`
	LineType            string `json:"line_type"`
	LocationLabel       string `json:"location_label"`
	IsValid             bool   `json:"is_valid"`
}

// Response is the structured result handed back to the transport for rendering.
type Response struct {
	Outcome          Outcome  `json:"outcome"`
	Data             any      `json:"data,omitempty"`
	BalanceRemaining int64    `json:"balance_remaining"`
	Account          *Account `json:"account,omitempty"`
}
