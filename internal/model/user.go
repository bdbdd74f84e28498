// Package model 定义了与数据库表对应的 Go 结构体。
package model

import (
	"time"

	"gorm.io/datatypes"
)

// ChronicDisease 记录一项慢性疾病及补充说明。
type ChronicDisease struct {
	Disease string `json:"disease"`
	Detail  string `json:"detail"`
}

// Profile 是用户的个人资料，整体作为 JSON 文档存储。
// 除姓名、年龄、性别外均为可选，护士专属字段允许缺省。
type Profile struct {
	Name   string   `json:"name"`
	Age    int      `json:"age"`
	Gender string   `json:"gender"`
	Height *float64 `json:"height,omitempty"`
	Weight *float64 `json:"weight,omitempty"`
	// Occupation 是职业描述
	Occupation string `json:"occupation,omitempty"`

	// 护士专属信息
	YearsOfExperience *int   `json:"yearsOfExperience,omitempty"` // 几年资历
	Position          string `json:"position,omitempty"`          // 职务（普通护士、护士长等）
	Department        string `json:"department,omitempty"`        // 科室（内科、外科、急诊等）

	ChronicDiseases []ChronicDisease `json:"chronicDiseases,omitempty"`
}

// User 对应于数据库中的 'users' 表。
type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Username string `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	// Password 存储 bcrypt 哈希，绝不以明文落库。
	Password  string                       `gorm:"type:varchar(128);not null" json:"-"`
	Profile   datatypes.JSONType[Profile]  `gorm:"type:json" json:"profile"`
	CreatedAt time.Time                    `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time                    `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (User) TableName() string {
	return "users"
}
