package model

import (
	"strings"
	"time"
)

// Address is an email participant.
type Address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Domain returns the lowercased part after '@', or "" for malformed addresses.
func (a Address) Domain() string {
	at := strings.LastIndex(a.Email, "@")
	if at < 0 || at == len(a.Email)-1 {
		return ""
	}
	return strings.ToLower(a.Email[at+1:])
}

// String formats the address as `Name <email>` when a name is present.
func (a Address) String() string {
	if a.Name == "" {
		return a.Email
	}
	return a.Name + " <" + a.Email + ">"
}

// Linkage records the CRM records a message was attached to.
type Linkage struct {
	OrganizationID string   `json:"organization_id,omitempty"`
	DealID         string   `json:"deal_id,omitempty"`
	NoteID         string   `json:"note_id,omitempty"`
	TaskIDs        []string `json:"task_ids,omitempty"`
}

// InboundMessage is one received email. It is created unprocessed by the
// mail source and flipped to processed exactly once by the pipeline.
type InboundMessage struct {
	ID              string          `json:"id"`
	ProviderID      string          `json:"provider_id,omitempty"`
	ThreadID        string          `json:"thread_id,omitempty"`
	From            Address         `json:"from"`
	To              []string        `json:"to"`
	Subject         string          `json:"subject"`
	TextBody        string          `json:"text_body,omitempty"`
	HTMLBody        string          `json:"html_body,omitempty"`
	ReceivedAt      time.Time       `json:"received_at"`
	Processed       bool            `json:"processed"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty"`
	Linkage         Linkage         `json:"linkage"`
	Extracted       *ExtractedData  `json:"extracted,omitempty"`
	Classification  *Classification `json:"classification,omitempty"`
	RoutingMethod   RoutingMethod   `json:"routing_method,omitempty"`
	Confidence      float64         `json:"routing_confidence"`
	RoutingAttempts int             `json:"routing_attempts"`
	Audit           AuditTrail      `json:"audit,omitempty"`
}

// Analysis is the derived data persisted on a message whether or not it was
// routed.
type Analysis struct {
	Extracted      ExtractedData  `json:"extracted"`
	Classification Classification `json:"classification"`
	Method         RoutingMethod  `json:"routing_method,omitempty"`
	Confidence     float64        `json:"routing_confidence"`
}

// Completion is the final write for a message: analysis, linkage and the
// processed flag together.
type Completion struct {
	Analysis
	Linkage Linkage `json:"linkage"`
}
