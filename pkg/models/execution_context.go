package models

import (
	"maps"
	"slices"
)

// ExecutionContext carries one inbound event through a traversal.
type ExecutionContext struct {
	ID             string         `json:"id"`
	BotID          string         `json:"bot_id"`
	WorkflowID     string         `json:"workflow_id,omitempty"`
	EventType      EventType      `json:"event_type"`
	Text           string         `json:"text,omitempty"`
	CallbackData   string         `json:"callback_data,omitempty"`
	MessageID      int64          `json:"message_id,omitempty"`
	ExternalChatID int64          `json:"external_chat_id"`
	User           *RemoteUser    `json:"user,omitempty"`
	Conversation   *Conversation  `json:"conversation,omitempty"`
	Variables      map[string]any `json:"variables,omitempty"`
}

// ChatID returns the local conversation id, or "" when unresolved.
func (c *ExecutionContext) ChatID() string {
	if c.Conversation == nil {
		return ""
	}

	return c.Conversation.ID
}

// Fork returns a copy that can be mutated by one traversal without affecting others.
func (c *ExecutionContext) Fork(workflowID string) *ExecutionContext {
	forked := *c
	forked.WorkflowID = workflowID
	forked.Variables = maps.Clone(c.Variables)

	if c.User != nil {
		user := *c.User
		forked.User = &user
	}

	if c.Conversation != nil {
		conversation := *c.Conversation
		conversation.CategoryIDs = slices.Clone(c.Conversation.CategoryIDs)
		forked.Conversation = &conversation
	}

	if forked.Variables == nil {
		forked.Variables = make(map[string]any)
	}

	return &forked
}

// TemplateData exposes the context to text templates.
func (c *ExecutionContext) TemplateData() map[string]any {
	data := map[string]any{
		"bot_id":        c.BotID,
		"workflow_id":   c.WorkflowID,
		"event_type":    string(c.EventType),
		"text":          c.Text,
		"callback_data": c.CallbackData,
		"variables":     c.Variables,
		"vars":          c.Variables,
	}

	if c.User != nil {
		data["user"] = map[string]any{
			"id":            c.User.ID,
			"external_id":   c.User.ExternalID,
			"first_name":    c.User.FirstName,
			"last_name":     c.User.LastName,
			"username":      c.User.Username,
			"language_code": c.User.LanguageCode,
			"start_param":   c.User.StartParam,
			"display_name":  c.User.DisplayName(),
		}
	}

	if c.Conversation != nil {
		data["conversation"] = map[string]any{
			"id":               c.Conversation.ID,
			"external_chat_id": c.Conversation.ExternalChatID,
			"kind":             string(c.Conversation.Kind),
			"title":            c.Conversation.Title,
		}
	}

	return data
}
