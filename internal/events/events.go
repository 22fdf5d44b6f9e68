// Package events routes authenticated Jira webhook payloads to handlers keyed by event type.
package events

import (
	"encoding/json"
	"strings"

	"github.com/Aincrad-Flux/TWIN/internal/model"
)

// EventType is the normalised webhookEvent value, without Jira's "jira:" namespace.
type EventType string

const (
	IssueCreated   EventType = "issue_created"
	IssueUpdated   EventType = "issue_updated"
	CommentCreated EventType = "comment_created"
)

const vendorNamespace = "jira:"

// Normalize maps "jira:issue_created" and "issue_created" to the same EventType.
func Normalize(webhookEvent string) EventType {
	return EventType(strings.TrimPrefix(strings.TrimSpace(webhookEvent), vendorNamespace))
}

// Event is one of the payload variants below. The set is closed: only this
// package can add variants.
type Event interface {
	Type() EventType
	isEvent()
}

type IssueCreatedEvent struct {
	Issue model.JiraIssue
	User  *model.JiraUser
}

type IssueUpdatedEvent struct {
	Issue     model.JiraIssue
	User      *model.JiraUser
	Changelog json.RawMessage
}

type CommentCreatedEvent struct {
	Issue   model.JiraIssue
	Comment model.JiraComment
}

func (IssueCreatedEvent) Type() EventType   { return IssueCreated }
func (IssueUpdatedEvent) Type() EventType   { return IssueUpdated }
func (CommentCreatedEvent) Type() EventType { return CommentCreated }

// OtherEvent is delivered to a handler registered for a type that has no
// dedicated variant, such as issue_deleted. Payload is the full decoded body.
type OtherEvent struct {
	Name    EventType
	Payload *model.JiraPayload
}

func (e OtherEvent) Type() EventType { return e.Name }

func (IssueCreatedEvent) isEvent()   {}
func (IssueUpdatedEvent) isEvent()   {}
func (CommentCreatedEvent) isEvent() {}
func (OtherEvent) isEvent()          {}

// decoders builds the variant for each known type. Missing sub-objects decode
// to zero values; handlers decide whether that matters.
var decoders = map[EventType]func(p *model.JiraPayload) Event{
	IssueCreated: func(p *model.JiraPayload) Event {
		return IssueCreatedEvent{Issue: issueOf(p), User: p.User}
	},
	IssueUpdated: func(p *model.JiraPayload) Event {
		return IssueUpdatedEvent{Issue: issueOf(p), User: p.User, Changelog: p.Changelog}
	},
	CommentCreated: func(p *model.JiraPayload) Event {
		ev := CommentCreatedEvent{Issue: issueOf(p)}
		if p.Comment != nil {
			ev.Comment = *p.Comment
		}
		return ev
	},
}

func issueOf(p *model.JiraPayload) model.JiraIssue {
	if p.Issue == nil {
		return model.JiraIssue{}
	}
	return *p.Issue
}

// Decode returns the dedicated variant for t, or ok=false when t has none.
func Decode(t EventType, p *model.JiraPayload) (ev Event, ok bool) {
	dec, ok := decoders[t]
	if !ok || p == nil {
		return nil, false
	}
	return dec(p), true
}
