// Package validate checks the shape of inbound push payloads before they
// reach the store. Malformed payloads are reported as *ValidationError so
// callers can log and drop them; nothing here panics or mutates state.
package validate

import (
	"encoding/json"
	"fmt"

	"github.com/brunodmt/tether/internal/state"
	"github.com/google/uuid"
)

// ValidationError describes a malformed inbound payload. It is never
// fatal: the policy everywhere is log and drop.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid payload: field %q: %s", e.Field, e.Detail)
}

func invalid(field, detail string) *ValidationError {
	return &ValidationError{Field: field, Detail: detail}
}

type wireUser struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

type wireMessage struct {
	ID        string   `json:"id"`
	ChannelID string   `json:"channelId"`
	Sender    wireUser `json:"sender"`
	Content   string   `json:"content"`
	CreatedAt int64    `json:"createdAt"`
	UpdatedAt int64    `json:"updatedAt"`
}

type wireJoined struct {
	ChannelID string `json:"channelId"`
}

// Message decodes and checks a push "chat message" payload.
func Message(raw []byte) (state.Message, error) {
	var w wireMessage
	if err := json.Unmarshal(raw, &w); err != nil {
		return state.Message{}, invalid("", err.Error())
	}
	if err := ID("id", w.ID); err != nil {
		return state.Message{}, err
	}
	if err := ID("channelId", w.ChannelID); err != nil {
		return state.Message{}, err
	}
	if w.Sender.ID == "" {
		return state.Message{}, invalid("sender.id", "missing")
	}
	if w.Sender.Username == "" {
		return state.Message{}, invalid("sender.username", "missing")
	}
	if w.Content == "" {
		return state.Message{}, invalid("content", "missing")
	}
	if w.CreatedAt <= 0 {
		return state.Message{}, invalid("createdAt", "missing or not a positive timestamp")
	}
	return state.Message{
		ID:        w.ID,
		ChannelID: w.ChannelID,
		Sender: state.User{
			ID:          w.Sender.ID,
			Username:    w.Sender.Username,
			DisplayName: w.Sender.DisplayName,
		},
		Content:   w.Content,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}, nil
}

// JoinedRoom decodes and checks a push "joined a new room" payload,
// returning the channel id.
func JoinedRoom(raw []byte) (string, error) {
	var w wireJoined
	if err := json.Unmarshal(raw, &w); err != nil {
		return "", invalid("", err.Error())
	}
	if err := ID("channelId", w.ChannelID); err != nil {
		return "", err
	}
	return w.ChannelID, nil
}

// ID checks that value is a well-formed identifier (a UUID).
func ID(field, value string) error {
	if value == "" {
		return invalid(field, "missing")
	}
	if _, err := uuid.Parse(value); err != nil {
		return invalid(field, "not a well-formed id")
	}
	return nil
}
