package model

import "time"

// UsageEvent records one completed chat request. Published fire-and-forget
// after the response is delivered; aggregated out of band by the usage worker.
type UsageEvent struct {
	UserID   uint      `json:"user_id"`
	Username string    `json:"username"`
	Streamed bool      `json:"streamed"`
	At       time.Time `json:"at"`
}
