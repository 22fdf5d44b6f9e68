package events

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Aincrad-Flux/TWIN/internal/logger"
)

const maxLoggedText = 200

// RegisterDefaults installs handlers for the known event types that only log
// the identifying fields of each event. Integrations replace them through Register.
func RegisterDefaults(d *Dispatcher, log zerolog.Logger) {
	d.Register(IssueCreated, func(_ context.Context, ev Event) error {
		e, ok := ev.(IssueCreatedEvent)
		if !ok {
			return unexpected(IssueCreated, ev)
		}
		log.Info().
			Str("event_type", string(IssueCreated)).
			Str("issue_key", e.Issue.Key).
			Str("summary", logger.Truncate(logger.Sanitize(e.Issue.Fields.Summary), maxLoggedText)).
			Msg("issue created")
		return nil
	})

	d.Register(IssueUpdated, func(_ context.Context, ev Event) error {
		e, ok := ev.(IssueUpdatedEvent)
		if !ok {
			return unexpected(IssueUpdated, ev)
		}
		entry := log.Info().
			Str("event_type", string(IssueUpdated)).
			Str("issue_key", e.Issue.Key)
		if len(e.Changelog) > 0 {
			entry = entry.RawJSON("changelog", e.Changelog)
		}
		entry.Msg("issue updated")
		return nil
	})

	d.Register(CommentCreated, func(_ context.Context, ev Event) error {
		e, ok := ev.(CommentCreatedEvent)
		if !ok {
			return unexpected(CommentCreated, ev)
		}
		log.Info().
			Str("event_type", string(CommentCreated)).
			Str("issue_key", e.Issue.Key).
			Str("comment_id", e.Comment.ID).
			Str("comment", logger.Truncate(logger.Sanitize(e.Comment.Body), maxLoggedText)).
			Msg("comment created")
		return nil
	})
}

func unexpected(t EventType, ev Event) error {
	return fmt.Errorf("handler for %s received %T", t, ev)
}
