package model

import (
	"time"

	"gorm.io/datatypes"
)

// 对话消息角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// 会话状态；状态只能从 active 单向迁移到 ended。
const (
	SessionActive = "active"
	SessionEnded  = "ended"
)

// ChatMessage 代表会话记录中的单条对话消息。
type ChatMessage struct {
	Role      string    `json:"role"` // "user" 或 "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatSession 对应于数据库中的 'chat_sessions' 表，持久化一次建议对话。
// 内存中的 AI 会话句柄与这份持久化记录是分离的：进程重启后句柄丢失，
// 记录仍可查询，但不能继续对话。
type ChatSession struct {
	ID     string `gorm:"type:varchar(36);primaryKey" json:"sessionId"`
	UserID uint   `gorm:"index;not null" json:"userId"`
	// RecordID 弱引用关联的日常记录；自由对话模式下为 NULL。
	RecordID *uint `json:"recordId,omitempty"`

	// ConversationMode 为 true 表示保存前的自由对话模式，false 表示保存后的结构化对话模式。
	ConversationMode bool `json:"conversationMode"`

	// Messages 是只追加的完整对话记录，创建时即包含 AI 的开场提问。
	Messages datatypes.JSONSlice[ChatMessage] `gorm:"type:json" json:"messages"`

	// MessageCount 是 AI 已回复的回合数，用于结束建议的判定。
	MessageCount int `gorm:"not null" json:"messageCount"`

	// FinalAdvice 在会话结束时写入一次。
	FinalAdvice *string `gorm:"type:text" json:"finalAdvice,omitempty"`

	Status    string     `gorm:"type:varchar(16);not null;default:active" json:"status"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (ChatSession) TableName() string {
	return "chat_sessions"
}
