package chat

import (
	"sort"
	"strings"
	"time"
)

// GroupMessage is one entry in an organization's shared conversation.
type GroupMessage struct {
	Sequence     int64     `gorm:"column:sequence;primaryKey;autoIncrement" json:"-"`
	MessageID    string    `gorm:"column:message_id;size:64;not null;uniqueIndex" json:"id"`
	Organization string    `gorm:"column:organization;size:64;not null;index:idx_chat_group_org_created,priority:1" json:"organization"`
	SenderID     string    `gorm:"column:sender_id;size:64;not null" json:"senderId"`
	SenderEmail  string    `gorm:"column:sender_email;size:320;not null" json:"senderEmail"`
	SenderName   string    `gorm:"column:sender_name;size:320" json:"senderName"`
	Content      string    `gorm:"column:content;type:text;not null" json:"content"`
	CreatedAt    time.Time `gorm:"column:created_at;not null;index:idx_chat_group_org_created,priority:2" json:"createdAt"`
}

// TableName exposes the table backing group messages.
func (GroupMessage) TableName() string {
	return "chat_group_messages"
}

// DirectMessage is one entry in a two-participant conversation.
type DirectMessage struct {
	Sequence        int64     `gorm:"column:sequence;primaryKey;autoIncrement" json:"-"`
	MessageID       string    `gorm:"column:message_id;size:64;not null;uniqueIndex" json:"id"`
	ConversationKey string    `gorm:"column:conversation_key;size:140;not null;index:idx_chat_direct_key_created,priority:1" json:"conversationKey"`
	SenderID        string    `gorm:"column:sender_id;size:64;not null" json:"senderId"`
	RecipientID     string    `gorm:"column:recipient_id;size:64;not null" json:"recipientId"`
	Text            string    `gorm:"column:text;type:text;not null" json:"text"`
	CreatedAt       time.Time `gorm:"column:created_at;not null;index:idx_chat_direct_key_created,priority:2" json:"timestamp"`
}

// TableName exposes the table backing direct messages.
func (DirectMessage) TableName() string {
	return "chat_direct_messages"
}

// ConversationKey derives the key shared by both participants of a direct conversation.
// The result does not depend on argument order.
func ConversationKey(first, second string) string {
	pair := []string{strings.TrimSpace(first), strings.TrimSpace(second)}
	sort.Strings(pair)
	return pair[0] + "_" + pair[1]
}
