package learning

import (
	"context"
	"fmt"
	"strings"

	"responder_server/core/domain"
	"responder_server/core/port/out"
	"responder_server/pkg/logger"
)

// ContextAnalyzer derives the conversation context of a thread before the
// generator replies into it.
type ContextAnalyzer struct {
	mail out.MailProvider
	log  *logger.Logger
}

func NewContextAnalyzer(mail out.MailProvider) *ContextAnalyzer {
	return &ContextAnalyzer{
		mail: mail,
		log:  logger.WithField("component", "context_analyzer"),
	}
}

// ConversationContext fetches the full thread and computes stage, sentiment
// progression, key topics and the style of the owner's last reply.
func (a *ContextAnalyzer) ConversationContext(ctx context.Context, account, threadID string) (*domain.ConversationContext, error) {
	thread, err := a.mail.GetThread(ctx, account, threadID)
	if err != nil {
		return nil, fmt.Errorf("fetch thread %s: %w", threadID, err)
	}
	if len(thread) == 0 {
		return nil, nil
	}
	return BuildConversationContext(account, threadID, thread), nil
}

// BuildConversationContext is the pure analysis over an ordered thread.
func BuildConversationContext(account, threadID string, thread []domain.RawMessage) *domain.ConversationContext {
	sentiments := make([]float64, 0, len(thread))
	var allText strings.Builder
	for _, msg := range thread {
		sentiments = append(sentiments, SentimentPolarity(msg.BodyText))
		allText.WriteString(msg.BodyText)
		allText.WriteByte(' ')
	}

	var lastOwnerStyle *domain.ResponseStyle
	for i := len(thread) - 1; i >= 0; i-- {
		if sentByOwner(thread[i], account) {
			style := AnalyzeStyle(thread[i].BodyText)
			lastOwnerStyle = &style
			break
		}
	}

	return &domain.ConversationContext{
		ThreadID:       threadID,
		Account:        account,
		MessageCount:   len(thread),
		Stage:          domain.StageForCount(len(thread)),
		Sentiments:     sentiments,
		KeyTopics:      ExtractKeywords(allText.String(), maxQueryKeywords),
		LastOwnerStyle: lastOwnerStyle,
	}
}

// sentByOwner reports whether the message was sent by the monitored account
// rather than the correspondent.
func sentByOwner(msg domain.RawMessage, account string) bool {
	return strings.EqualFold(strings.TrimSpace(msg.From), strings.TrimSpace(account))
}
