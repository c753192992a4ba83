// Package feed serves a session's event log to polling and streaming
// clients from a resumable cursor.
package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/fastprodman/tablestakes/internal/apperr"
	"github.com/fastprodman/tablestakes/internal/repos/events"
	"github.com/fastprodman/tablestakes/internal/services/sessions"
)

const (
	TypeSnapshot = "snapshot"
	TypeEnded    = "ended"

	defaultPollInterval = 500 * time.Millisecond
	defaultIdleBudget   = 2 * time.Minute
)

type Sessions interface {
	Get(ctx context.Context, id, token string) (sessions.View, error)
}

type Events interface {
	ListSince(ctx context.Context, sessionID string, since int64) ([]events.Event, error)
}

type Config struct {
	PollInterval time.Duration
	IdleBudget   time.Duration
}

// Envelope is one frame of a stream.
type Envelope struct {
	Seq  int64  `json:"seq"`
	Type string `json:"type"`
	Data any    `json:"data"`
}

type Feed struct {
	sessions Sessions
	events   Events
	poll     time.Duration
	idle     time.Duration
}

func New(s Sessions, e Events, cfg Config) *Feed {
	f := &Feed{
		sessions: s,
		events:   e,
		poll:     cfg.PollInterval,
		idle:     cfg.IdleBudget,
	}

	if f.poll <= 0 {
		f.poll = defaultPollInterval
	}

	if f.idle <= 0 {
		f.idle = defaultIdleBudget
	}

	return f
}

// Snapshot returns the full view a client (re)establishes its cursor from.
func (f *Feed) Snapshot(ctx context.Context, id, token string) (sessions.View, error) {
	view, err := f.sessions.Get(ctx, id, token)
	if err != nil {
		return sessions.View{}, fmt.Errorf("snapshot: %w", err)
	}

	return view, nil
}

// Since returns the events after seq since, once the caller may read the
// session.
func (f *Feed) Since(ctx context.Context, id, token string, since int64) ([]events.Event, error) {
	_, err := f.sessions.Get(ctx, id, token)
	if err != nil {
		return nil, fmt.Errorf("authorize read: %w", err)
	}

	evs, err := f.events.ListSince(ctx, id, since)
	if err != nil {
		return nil, fmt.Errorf("list since %d: %w", since, err)
	}

	return evs, nil
}

// Stream emits a snapshot, then every event after the cursor as it is
// appended. A negative since starts from the snapshot's seq. Stream
// returns nil when the session is gone (after an ended frame), when no
// event arrived within the idle budget, or when ctx is done. It never
// mutates state.
func (f *Feed) Stream(ctx context.Context, id, token string, since int64, emit func(Envelope) error) error {
	view, err := f.Snapshot(ctx, id, token)
	if err != nil {
		return err
	}

	err = emit(Envelope{Seq: view.Seq, Type: TypeSnapshot, Data: view})
	if err != nil {
		return err
	}

	cursor := since
	if cursor < 0 {
		cursor = view.Seq
	}

	ticker := time.NewTicker(f.poll)
	defer ticker.Stop()

	lastActivity := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		evs, err := f.events.ListSince(ctx, id, cursor)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("poll events: %w", err)
		}

		for _, ev := range evs {
			err = emit(Envelope{Seq: ev.Seq, Type: ev.Type, Data: ev.Data})
			if err != nil {
				return err
			}

			cursor = ev.Seq
		}

		if len(evs) > 0 {
			lastActivity = time.Now()
			continue
		}

		gone, err := f.gone(ctx, id, token)
		if err != nil {
			return err
		}

		if gone {
			return emit(Envelope{Seq: cursor, Type: TypeEnded})
		}

		if time.Since(lastActivity) >= f.idle {
			return nil
		}
	}
}

func (f *Feed) gone(ctx context.Context, id, token string) (bool, error) {
	_, err := f.sessions.Get(ctx, id, token)
	if err == nil {
		return false, nil
	}

	if apperr.CodeOf(err) == apperr.CodeNotFound {
		return true, nil
	}

	if ctx.Err() != nil {
		return false, nil
	}

	return false, fmt.Errorf("check session: %w", err)
}
