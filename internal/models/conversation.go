package models

import "time"

// ConversationTurn records one exchange with the chatbot. Turns are immutable
// after creation and are listed per account in creation order.
type ConversationTurn struct {
	ID                     int64     `json:"id"`
	AccountID              int64     `json:"account_id"`
	Message                string    `json:"message"`
	Response               string    `json:"response"`
	SuggestedTopics        []string  `json:"suggested_topics"`
	IsCyberSecurityRelated bool      `json:"is_cybersecurity_related"`
	CreatedAt              time.Time `json:"created_at"`
}
