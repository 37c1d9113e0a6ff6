package domain

import "time"

// UnknownEvent wraps an event read back from the Spine whose type tag
// this build does not recognise. Replay must surface these rather than
// dropping them silently, so a Spine schema upgrade that outpaces a
// Projection deploy never loses history.
type UnknownEvent struct {
	eventBase
	Tag     string
	Payload []byte
}

func (u UnknownEvent) EventType() string { return u.Tag }

// NewUnknownEvent wraps a raw, unrecognised event payload. accountID and
// timestamp are read from the envelope that all Spine rows carry
// regardless of event type, so they are always available even when the
// payload itself cannot be decoded into a known variant.
func NewUnknownEvent(accountID string, timestamp time.Time, tag string, payload []byte) *UnknownEvent {
	return &UnknownEvent{
		eventBase: eventBase{AccountID: accountID, Timestamp: timestamp},
		Tag:       tag,
		Payload:   payload,
	}
}
