// Package audit maintains the append-only trail of nisab record lifecycle
// events. Events are never updated or deleted; sensitive notes are encrypted
// before they reach a store.
package audit

import (
	"time"

	id "mizan/pkg/domain"
)

// Action identifies a lifecycle event on a nisab year record.
type Action string

const (
	ActionRecordCreated        Action = "record_created"
	ActionNisabAchieved        Action = "nisab_achieved"
	ActionHawlInterrupted      Action = "hawl_interrupted"
	ActionFinalized            Action = "finalized"
	ActionFinalizedAfterUnlock Action = "finalized_after_unlock"
	ActionUnlocked             Action = "unlocked"
)

// Actions lists every known action, for filter validation.
func Actions() []Action {
	return []Action{
		ActionRecordCreated, ActionNisabAchieved, ActionHawlInterrupted,
		ActionFinalized, ActionFinalizedAfterUnlock, ActionUnlocked,
	}
}

// Valid reports whether the action is one of the known lifecycle actions.
func (a Action) Valid() bool {
	for _, known := range Actions() {
		if a == known {
			return true
		}
	}
	return false
}

// FieldChange captures one snapshot figure before and after a transition.
// Values are decimal strings.
type FieldChange struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

// Event is one entry in a record's audit trail.
type Event struct {
	ID       id.EventID
	RecordID id.RecordID
	UserID   id.UserID
	// Sequence is assigned by the store, strictly increasing per record. It
	// makes the append order explicit even when timestamps collide.
	Sequence  int64
	Action    Action
	Timestamp time.Time
	// DeviceName is the human-readable device descriptor of the client that
	// triggered the event, e.g. "Chrome 120 on Linux".
	DeviceName string
	RequestID  string
	// EncryptedNote holds the cipher token for the unlock reason or premature
	// finalization note. Empty for events without a note.
	EncryptedNote string
	// Payload is a JSON document of per-field before/after changes captured at
	// finalization. Empty for events without figure changes.
	Payload string
}

// Filter narrows a trail listing. Zero values match everything.
type Filter struct {
	Actions []Action
	From    time.Time
	To      time.Time
}

// Matches applies the filter to an event.
func (f Filter) Matches(e Event) bool {
	if len(f.Actions) > 0 {
		found := false
		for _, a := range f.Actions {
			if e.Action == a {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}
	return true
}
