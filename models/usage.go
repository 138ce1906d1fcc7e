package models

import "time"

// UsageEvent records that the user opened content on a streaming service.
// Timestamp is assigned by the store at write time, never by the client.
type UsageEvent struct {
	ServiceID string    `json:"serviceId"`
	Timestamp time.Time `json:"timestamp"`
}
