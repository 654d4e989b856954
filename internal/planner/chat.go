// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

package planner

import (
	"context"
	"fmt"
	"sort"

	"github.com/tomtom215/tempo/internal/models"
)

// Conversation returns the messages held for conversationID, oldest first.
// Messages still waiting for the backend are included under temporary ids.
func (p *Planner) Conversation(conversationID string) []models.ChatMessage {
	var msgs []models.ChatMessage
	for _, m := range p.Messages.List() {
		if m.ConversationID == conversationID {
			msgs = append(msgs, m)
		}
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs
}

// LoadConversation fetches the history of conversationID into the message
// store.
func (p *Planner) LoadConversation(ctx context.Context, conversationID string) error {
	if p.isClosed() {
		return ErrClosed
	}
	msgs, err := p.backend.ListChatMessages(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("load conversation %s: %w", conversationID, err)
	}
	for _, m := range msgs {
		p.Messages.Reconcile(m.ID, m)
	}
	return nil
}
