package repository

import (
	"errors"

	"smiling-nurse-go/internal/model"

	"gorm.io/gorm"
)

// ErrAnalysisExists 表示记录上已经存在 AI 分析文本，不允许覆盖。
var ErrAnalysisExists = errors.New("ai analysis already set on record")

// RecordRepository 接口定义了日常记录的持久化操作。
type RecordRepository interface {
	Create(record *model.DailyRecord) error
	FindByID(recordID uint) (*model.DailyRecord, error)
	FindByUser(userID uint) ([]model.DailyRecord, error)
	// SetAIAnalysis 仅在 ai_analysis 为 NULL 时写入，保证分析文本只回填一次。
	SetAIAnalysis(recordID uint, analysis string) error
}

// recordRepository 是 RecordRepository 接口的 GORM 实现。
type recordRepository struct {
	db *gorm.DB
}

// NewRecordRepository 创建一个新的 RecordRepository 实例。
func NewRecordRepository(db *gorm.DB) RecordRepository {
	return &recordRepository{db: db}
}

// Create 在数据库中创建一条新的日常记录。
func (r *recordRepository) Create(record *model.DailyRecord) error {
	return r.db.Create(record).Error
}

// FindByID 根据记录 ID 查找一条日常记录。
func (r *recordRepository) FindByID(recordID uint) (*model.DailyRecord, error) {
	var record model.DailyRecord
	err := r.db.First(&record, recordID).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByUser 按日期倒序返回用户的全部日常记录。
func (r *recordRepository) FindByUser(userID uint) ([]model.DailyRecord, error) {
	var records []model.DailyRecord
	err := r.db.Where("user_id = ?", userID).Order("date DESC").Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// SetAIAnalysis 以条件更新实现“只写一次”：已有分析文本时不做任何修改。
func (r *recordRepository) SetAIAnalysis(recordID uint, analysis string) error {
	tx := r.db.Model(&model.DailyRecord{}).
		Where("id = ? AND ai_analysis IS NULL", recordID).
		Update("ai_analysis", analysis)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrAnalysisExists
	}
	return nil
}
