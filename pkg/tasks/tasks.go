// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

import "time"

// RecordCreatedTask 是日常记录落库后发往 Kafka 的统计聚合任务。
type RecordCreatedTask struct {
	UserID        uint      `json:"user_id"`
	RecordID      uint      `json:"record_id"`
	Date          time.Time `json:"date"`
	StressLevel   int       `json:"stress_level"`
	SleepHours    *float64  `json:"sleep_hours,omitempty"`
	WorkIntensity int       `json:"work_intensity"`
	ScaleCode     string    `json:"scale_code"`
	ScaleTotal    int       `json:"scale_total"`
	BandLabel     string    `json:"band_label"`
}
