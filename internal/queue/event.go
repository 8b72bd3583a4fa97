// Package queue carries outbound email jobs over the message broker.
package queue

import "time"

// EmailEvent is published whenever the dashboard needs to send an email.
// It holds everything the consumer needs to render the message without
// touching the database.
type EmailEvent struct {
    Kind      string            `json:"kind"`
    To        string            `json:"to"`
    Name      string            `json:"name,omitempty"`
    Data      map[string]string `json:"data,omitempty"`
    CreatedAt time.Time         `json:"created_at"`
}
