package models

// MessageTemplate is a reusable outbound text with {{name}} and {{course}} placeholders.
type MessageTemplate struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Body string `json:"body"`
}

// ComposedMessage is a template resolved for one recipient.
type ComposedMessage struct {
	LeadID      string `json:"lead_id"`
	StudentName string `json:"student_name"`
	PhoneNumber string `json:"phone_number"`
	Body        string `json:"body"`
}

// DispatchResult summarises a bulk send request.
type DispatchResult struct {
	Queued  int      `json:"queued"`
	Skipped []string `json:"skipped,omitempty"`
}
