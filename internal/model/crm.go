package model

import "time"

// RoutingMethod names the strategy that resolved a message to an organization.
type RoutingMethod string

const (
	RoutingPattern  RoutingMethod = "pattern"
	RoutingMetadata RoutingMethod = "metadata"
	RoutingContext  RoutingMethod = "context"
)

// Fixed confidences per strategy.
const (
	ConfidencePattern       = 0.9
	ConfidencePatternNoDeal = 0.7
	ConfidenceMetadata      = 0.6
	ConfidenceContext       = 0.4
	ConfidenceNone          = 0.0
)

// Provenance records how an auto-created record came to exist.
type Provenance struct {
	RoutingMethod     RoutingMethod `json:"routing_method,omitempty"`
	RoutingConfidence float64       `json:"routing_confidence,omitempty"`
	SourceMessageID   string        `json:"source_message_id,omitempty"`
}

// Organization is a named counterparty (an account).
type Organization struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Email        string      `json:"email,omitempty"`
	Status       string      `json:"status"`
	CreatedBy    string      `json:"created_by"`
	Provenance   *Provenance `json:"provenance,omitempty"`
	SalesforceID string      `json:"salesforce_id,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Deal is an opportunity scoped to exactly one organization.
type Deal struct {
	ID                string      `json:"id"`
	OrganizationID    string      `json:"organization_id"`
	Name              string      `json:"name"`
	Stage             string      `json:"stage"`
	Owner             string      `json:"owner"`
	Amount            *float64    `json:"amount,omitempty"`
	ExpectedCloseDate *time.Time  `json:"expected_close_date,omitempty"`
	Provenance        *Provenance `json:"provenance,omitempty"`
	SalesforceID      string      `json:"salesforce_id,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
}

// Note is the rendered copy of an email attached to a deal.
type Note struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	DealID         string    `json:"deal_id"`
	MessageID      string    `json:"message_id"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	HTML           string    `json:"html,omitempty"`
	Sender         Address   `json:"sender"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
}

// TaskStatus is the lifecycle state of a follow-up task.
type TaskStatus string

const (
	TaskOpen TaskStatus = "open"
	TaskDone TaskStatus = "done"
)

// Task is a follow-up derived from an action item.
type Task struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	DealID         string     `json:"deal_id"`
	MessageID      string     `json:"message_id"`
	Title          string     `json:"title"`
	Status         TaskStatus `json:"status"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	AssignedTo     string     `json:"assigned_to"`
	CreatedAt      time.Time  `json:"created_at"`
}
