// Package events publishes booking and car lifecycle notifications.
//
// Publishing happens after the write has committed, so a failure is logged and
// never surfaces to the caller.
package events

import (
	"context"
)

const (
	BookingCreated  = "booking.created"
	BookingUpdated  = "booking.updated"
	BookingCanceled = "booking.canceled"
	CarCreated      = "car.created"
	CarDeleted      = "car.deleted"
)

const (
	Source        = "roadquest"
	SchemaVersion = "1"
)

type Publisher interface {
	Publish(ctx context.Context, eventType, key string, payload any)
	Close() error
}

// NopPublisher drops every event. Used when no Kafka brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, any) {}

func (NopPublisher) Close() error { return nil }
