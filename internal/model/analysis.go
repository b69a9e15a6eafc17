package model

import "time"

// Contacts are identifiers found in a message body.
type Contacts struct {
	Emails []string `json:"emails"`
	Phones []string `json:"phones"`
	Names  []string `json:"names"`
}

// ExtractedData is regenerated on every processing attempt and embedded in
// the message record.
type ExtractedData struct {
	Dates       []time.Time `json:"dates"`
	Amounts     []float64   `json:"amounts"`
	ActionItems []string    `json:"action_items"`
	Contacts    Contacts    `json:"contacts"`
}

// MaxAmount returns the largest amount, or false when none were found.
func (d ExtractedData) MaxAmount() (float64, bool) {
	if len(d.Amounts) == 0 {
		return 0, false
	}
	best := d.Amounts[0]
	for _, a := range d.Amounts[1:] {
		if a > best {
			best = a
		}
	}
	return best, true
}

// Sentiment of a message.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Urgency tier of a message.
type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

// Category is the topical class of a message.
type Category string

const (
	CategoryInquiry   Category = "Inquiry"
	CategoryProposal  Category = "Proposal"
	CategoryFollowUp  Category = "Follow-up"
	CategoryComplaint Category = "Complaint"
	CategorySupport   Category = "Support"
	CategoryMeeting   Category = "Meeting"
	CategoryOrder     Category = "Order"
	CategoryThankYou  Category = "Thank You"
	CategoryGeneral   Category = "General"
)

// Classification is the keyword-derived label set for a message.
type Classification struct {
	Sentiment Sentiment `json:"sentiment"`
	Urgency   Urgency   `json:"urgency"`
	Category  Category  `json:"category"`
}
