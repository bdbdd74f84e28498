package repository

import (
	"errors"
	"fmt"
	"time"

	"smiling-nurse-go/internal/model"

	"gorm.io/gorm"
)

// ErrSessionEnded 表示会话已经结束，状态不允许再次迁移。
var ErrSessionEnded = errors.New("chat session already ended")

// ChatSessionRepository 接口定义了建议对话会话的持久化操作。
type ChatSessionRepository interface {
	Create(session *model.ChatSession) error
	FindByID(sessionID string) (*model.ChatSession, error)
	// AppendTurn 把一个完整回合（用户消息 + AI 回复）与更新后的回合数
	// 作为一个逻辑单元写入，避免出现只有用户消息没有回复的落库状态。
	AppendTurn(sessionID string, userMsg, assistantMsg model.ChatMessage, messageCount int) error
	// End 写入最终建议并把状态迁移为 ended。
	End(sessionID string, finalAdvice string, endedAt time.Time) error
}

// chatSessionRepository 是 ChatSessionRepository 接口的 GORM 实现。
type chatSessionRepository struct {
	db *gorm.DB
}

// NewChatSessionRepository 创建一个新的 ChatSessionRepository 实例。
func NewChatSessionRepository(db *gorm.DB) ChatSessionRepository {
	return &chatSessionRepository{db: db}
}

// Create 持久化一个新的会话记录。
func (r *chatSessionRepository) Create(session *model.ChatSession) error {
	return r.db.Create(session).Error
}

// FindByID 根据会话 ID 查找会话记录。
func (r *chatSessionRepository) FindByID(sessionID string) (*model.ChatSession, error) {
	var session model.ChatSession
	err := r.db.Where("id = ?", sessionID).First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// AppendTurn 读取-追加-整体写回消息数组与回合数。
// 调用方（ChatService）以会话粒度互斥串行化回合，这里不再额外加锁。
func (r *chatSessionRepository) AppendTurn(sessionID string, userMsg, assistantMsg model.ChatMessage, messageCount int) error {
	var session model.ChatSession
	if err := r.db.Where("id = ?", sessionID).First(&session).Error; err != nil {
		return fmt.Errorf("failed to load session for append: %w", err)
	}
	session.Messages = append(session.Messages, userMsg, assistantMsg)
	return r.db.Model(&model.ChatSession{}).
		Where("id = ?", sessionID).
		Updates(map[string]interface{}{
			"messages":      session.Messages,
			"message_count": messageCount,
		}).Error
}

// End 把会话状态单向迁移为 ended，并写入最终建议与结束时间。
// 已结束的会话不受影响并返回 ErrSessionEnded，并发的第二次 End 不会覆盖建议。
func (r *chatSessionRepository) End(sessionID string, finalAdvice string, endedAt time.Time) error {
	tx := r.db.Model(&model.ChatSession{}).
		Where("id = ? AND status = ?", sessionID, model.SessionActive).
		Updates(map[string]interface{}{
			"final_advice": finalAdvice,
			"status":       model.SessionEnded,
			"ended_at":     endedAt,
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrSessionEnded
	}
	return nil
}
