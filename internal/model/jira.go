package model

import "encoding/json"

// JiraPayload is the subset of a Jira webhook body the service routes on and logs.
// Fields Jira sends beyond these are ignored.
type JiraPayload struct {
	WebhookEvent string          `json:"webhookEvent"`
	Timestamp    int64           `json:"timestamp,omitempty"`
	User         *JiraUser       `json:"user,omitempty"`
	Issue        *JiraIssue      `json:"issue,omitempty"`
	Changelog    json.RawMessage `json:"changelog,omitempty"`
	Comment      *JiraComment    `json:"comment,omitempty"`
}

type JiraUser struct {
	AccountID   string `json:"accountId,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

type JiraIssue struct {
	ID     string          `json:"id"`
	Key    string          `json:"key"`
	Self   string          `json:"self,omitempty"`
	Fields JiraIssueFields `json:"fields"`
}

type JiraIssueFields struct {
	Summary   string    `json:"summary"`
	IssueType *JiraName `json:"issuetype,omitempty"`
	Status    *JiraName `json:"status,omitempty"`
	Priority  *JiraName `json:"priority,omitempty"`
	Project   *JiraName `json:"project,omitempty"`
}

// JiraName covers the {id, name} objects Jira nests inside issue fields.
type JiraName struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type JiraComment struct {
	ID     string    `json:"id"`
	Body   string    `json:"body"`
	Author *JiraUser `json:"author,omitempty"`
}
