package model

import (
	"time"

	"gorm.io/datatypes"
)

// 工作形态
const (
	WorkTypeShift = "shift" // 轮班制
	WorkTypeFixed = "fixed" // 固定班
)

// 轮班时段
const (
	ShiftDay     = "day"
	ShiftEvening = "evening"
	ShiftNight   = "night"
)

// 三餐取值
const (
	MealBreakfast = "breakfast"
	MealLunch     = "lunch"
	MealDinner    = "dinner"
)

// DailyRecord 对应于数据库中的 'daily_records' 表，一次提交生成一条记录。
// 创建后除 AIAnalysis 一次性回填外不再修改。
type DailyRecord struct {
	ID     uint      `gorm:"primaryKey" json:"id"`
	UserID uint      `gorm:"index:idx_user_date;not null" json:"userId"`
	Date   time.Time `gorm:"index:idx_user_date,sort:desc" json:"date"`

	// 当日工作信息；WorkType 为 shift 时 ShiftType 必填
	WorkType  string  `gorm:"type:varchar(16)" json:"workType"`
	ShiftType *string `gorm:"type:varchar(16)" json:"shiftType,omitempty"`

	// 当日身心指标
	StressLevel   int                          `gorm:"not null" json:"stressLevel"` // 1-10
	SleepHours    *float64                     `json:"sleepHours,omitempty"`        // 归一化后的小数小时，未记录为 NULL
	SleepQuality  *int                         `json:"sleepQuality,omitempty"`      // 1-5
	WorkIntensity int                          `gorm:"not null" json:"workIntensity"` // 1-10
	BloodSugar    *float64                     `json:"bloodSugar,omitempty"`
	Steps         *int                         `json:"steps,omitempty"`
	SystolicBP    *int                         `json:"bloodPressureSystolic,omitempty"`
	DiastolicBP   *int                         `json:"bloodPressureDiastolic,omitempty"`
	Meals         datatypes.JSONSlice[string]  `gorm:"type:json" json:"meals"`
	Notes         string                       `gorm:"type:text" json:"notes"`

	// 量表作答：每条记录只携带一份量表提交
	ScaleCode  string                   `gorm:"type:varchar(16);not null" json:"scaleCode"`
	ItemScores datatypes.JSONSlice[int] `gorm:"type:json" json:"itemScores"`
	ScaleTotal int                      `gorm:"not null" json:"scaleTotal"`

	// 19 题量表的因子分；其它量表为 NULL
	WorkOverloadScore   *int `json:"workOverloadScore,omitempty"`
	EmotionalLaborScore *int `json:"emotionalLaborScore,omitempty"`
	PersonalScore       *int `json:"personalCharacteristicsScore,omitempty"`
	OrganizationalScore *int `json:"organizationalCharacteristicsScore,omitempty"`

	// AIAnalysis 由一次性分析回填，写入一次后不再重新生成。
	AIAnalysis *string `gorm:"type:text" json:"aiAnalysis,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (DailyRecord) TableName() string {
	return "daily_records"
}
