// Package webhook provides signed job-completion webhook events and an HTTP
// sender for delivering them.
package webhook

import "time"

// Event types delivered to callback URLs.
const (
	TypeJobCompleted = "job-server.job.completed"
)

// Event is the JSON body POSTed to a callback URL.
type Event struct {
	Type   string         `json:"type"`
	Source string         `json:"source"`
	JobKey string         `json:"jobKey"`
	ID     string         `json:"id"`
	Time   time.Time      `json:"time"`
	Data   map[string]any `json:"data"`
}

// New creates a new Event with the current timestamp.
func New(eventType, source, jobKey, id string, data map[string]any) *Event {
	return &Event{
		Type:   eventType,
		Source: source,
		JobKey: jobKey,
		ID:     id,
		Time:   time.Now().UTC(),
		Data:   data,
	}
}
