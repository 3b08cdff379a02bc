package model

import "time"

// ReviewEntry is the audit record of a reviewer decision on a document.
type ReviewEntry struct {
	ID        string    `json:"id"`
	Folio     string    `json:"folio"`
	Decision  Review    `json:"decision"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Revision  int       `json:"revision"`
	Reviewer  string    `json:"reviewer,omitempty"`
}

// Decision is one item of a review submission.
type Decision struct {
	ID       string `json:"id"`
	Decision Review `json:"decision"`
	Reason   string `json:"reason,omitempty"`
}

// Draft is a reviewer comment that has not been submitted yet.
type Draft struct {
	ID        string    `json:"id"`
	Folio     string    `json:"folio"`
	Reason    string    `json:"reason"`
	UpdatedAt time.Time `json:"updatedAt"`
}
