// Package queue defines message payloads exchanged over the message broker
// and the consumer that turns them into the audit log.
package queue

import "os"

// AuthEventsQueue is the durable queue security events are published to.
const AuthEventsQueue = "auth.events"

// AuthEvent is published on sign-up, login, logout, password change and
// refresh token reuse. It never carries credentials or token material.
type AuthEvent struct {
	Type       string `json:"type"`
	UserID     string `json:"user_id"`
	UserName   string `json:"user_name,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// BrokerURL returns RABBITMQ_URL, falling back to AMQP_URL. Empty means
// auditing is disabled.
func BrokerURL() string {
	if url := os.Getenv("RABBITMQ_URL"); url != "" {
		return url
	}
	return os.Getenv("AMQP_URL")
}
