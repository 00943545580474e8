package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"mizan/internal/crypto"
	id "mizan/pkg/domain"
	dErrors "mizan/pkg/domain-errors"
	"mizan/pkg/requestcontext"
)

// Entry is the domain-facing input for appending to a record's trail.
type Entry struct {
	RecordID id.RecordID
	UserID   id.UserID
	Action   Action
	// Note is the plaintext unlock reason or premature finalization note. It
	// is encrypted before persistence and never logged.
	Note string
	// Changes carries per-field before/after figures for finalization events.
	Changes map[string]FieldChange
}

// TrailEvent is a decrypted event as served to the record's owner.
type TrailEvent struct {
	ID         id.EventID `json:"id"`
	Sequence   int64      `json:"sequence"`
	Action     Action     `json:"action"`
	Timestamp  time.Time  `json:"timestamp"`
	DeviceName string     `json:"deviceName,omitempty"`
	Note       string     `json:"note,omitempty"`
	// Changes lists the snapshot figures a finalization moved, before and
	// after.
	Changes map[string]FieldChange `json:"changes,omitempty"`
}

// Recorder appends lifecycle events to the trail. Appends are synchronous so
// they participate in the caller's transaction; streaming to external sinks is
// handed to an async outbox channel.
type Recorder struct {
	store  Store
	cipher crypto.Cipher
	outbox chan<- Event
	logger *slog.Logger
}

// NewRecorder constructs a Recorder. outbox may be nil when no streaming sink
// is configured.
func NewRecorder(store Store, cipher crypto.Cipher, outbox chan<- Event, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:  store,
		cipher: cipher,
		outbox: outbox,
		logger: logger,
	}
}

// Record appends one event. The note, if any, is encrypted first.
func (r *Recorder) Record(ctx context.Context, entry Entry) error {
	if !entry.Action.Valid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown audit action %q", entry.Action)
	}

	event := Event{
		ID:         id.NewEventID(),
		RecordID:   entry.RecordID,
		UserID:     entry.UserID,
		Action:     entry.Action,
		Timestamp:  requestcontext.Now(ctx),
		DeviceName: requestcontext.DeviceName(ctx),
		RequestID:  requestcontext.RequestID(ctx),
	}
	if entry.Note != "" {
		token, err := r.cipher.EncryptString(entry.Note)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "encrypt audit note")
		}
		event.EncryptedNote = token
	}
	if len(entry.Changes) > 0 {
		raw, err := json.Marshal(entry.Changes)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "marshal audit payload")
		}
		event.Payload = string(raw)
	}

	if err := r.store.Append(ctx, &event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "append audit event")
	}

	if r.outbox != nil {
		select {
		case r.outbox <- event:
		default:
			// A full outbox never blocks the transition; the durable trail is
			// already written.
			r.logger.WarnContext(ctx, "audit outbox full, streaming event dropped",
				"record_id", event.RecordID,
				"action", event.Action,
			)
		}
	}
	return nil
}

// Trail returns the record's events in append order, decrypted and filtered.
func (r *Recorder) Trail(ctx context.Context, userID id.UserID, recordID id.RecordID, filter Filter) ([]TrailEvent, error) {
	for _, a := range filter.Actions {
		if !a.Valid() {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown audit action %q", a)
		}
	}

	events, err := r.store.ListByRecord(ctx, userID, recordID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list audit events")
	}

	out := make([]TrailEvent, 0, len(events))
	for _, e := range events {
		if !filter.Matches(e) {
			continue
		}
		t := TrailEvent{
			ID:         e.ID,
			Sequence:   e.Sequence,
			Action:     e.Action,
			Timestamp:  e.Timestamp,
			DeviceName: e.DeviceName,
		}
		if e.EncryptedNote != "" {
			note, err := r.cipher.DecryptString(e.EncryptedNote)
			if err != nil {
				// One unreadable note must not hide the rest of the trail; the
				// entry is served without it.
				r.logger.WarnContext(ctx, "audit note unreadable, entry served without it",
					"record_id", e.RecordID,
					"sequence", e.Sequence,
					"error", err,
				)
			} else {
				t.Note = note
			}
		}
		if e.Payload != "" {
			if err := json.Unmarshal([]byte(e.Payload), &t.Changes); err != nil {
				r.logger.WarnContext(ctx, "audit payload unreadable, entry served without it",
					"record_id", e.RecordID,
					"sequence", e.Sequence,
					"error", err,
				)
				t.Changes = nil
			}
		}
		out = append(out, t)
	}
	return out, nil
}

// Count returns the number of events on the record's trail.
func (r *Recorder) Count(ctx context.Context, userID id.UserID, recordID id.RecordID) (int64, error) {
	return r.store.CountByRecord(ctx, userID, recordID)
}
