// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

package models

import (
	"time"
)

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
	ChatRoleSystem    ChatRole = "system"
)

// ChatMessage is one message in an assistant conversation.
//
// Messages sent by the user are shown optimistically under a client-side
// temporary ID until the backend assigns the canonical one.
type ChatMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Role           ChatRole  `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Conversation summarizes a chat thread.
type Conversation struct {
	ID            string     `json:"id"`
	Title         string     `json:"title,omitempty"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
	UnreadCount   int        `json:"unreadCount"`
}
