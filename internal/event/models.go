// Package event holds the append-only beacon event log. Events are persisted
// exactly as received; retention and deletion are operational concerns outside
// this service.
package event

import "time"

// Event is one immutable ingested transport message record.
type Event struct {
	ID         int64
	Topic      string
	Payload    string
	QoS        int
	DeviceID   string
	ReceivedAt time.Time
}
