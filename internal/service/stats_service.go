package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"smiling-nurse-go/pkg/tasks"

	"github.com/go-redis/redis/v8"
)

// statsSnapshotTTL 控制统计快照在 Redis 中的保留时长。
const statsSnapshotTTL = 90 * 24 * time.Hour

// statsAccumulator 是存在 Redis 中的滚动累计值。
type statsAccumulator struct {
	RecordCount    int                `json:"record_count"`
	StressSum      int                `json:"stress_sum"`
	SleepSum       float64            `json:"sleep_sum"`
	SleepCount     int                `json:"sleep_count"`
	IntensitySum   int                `json:"intensity_sum"`
	ScaleTotals    map[string]int     `json:"scale_totals"`
	ScaleCounts    map[string]int     `json:"scale_counts"`
	BandCounts     map[string]int     `json:"band_counts"`
	LastRecordID   uint               `json:"last_record_id"`
	LastRecordDate time.Time          `json:"last_record_date"`
	LastScaleBand  map[string]string  `json:"last_scale_band"`
	LastScaleTotal map[string]int     `json:"last_scale_total"`
}

// StatsSnapshot 是对外暴露的统计快照，包含计算好的平均值。
type StatsSnapshot struct {
	RecordCount      int               `json:"recordCount"`
	AvgStressLevel   float64           `json:"avgStressLevel"`
	AvgSleepHours    *float64          `json:"avgSleepHours"`
	AvgWorkIntensity float64           `json:"avgWorkIntensity"`
	AvgScaleTotals   map[string]float64 `json:"avgScaleTotals"`
	BandCounts       map[string]int    `json:"bandCounts"`
	LastScaleBand    map[string]string `json:"lastScaleBand"`
	LastScaleTotal   map[string]int    `json:"lastScaleTotal"`
	LastRecordDate   time.Time         `json:"lastRecordDate"`
}

// StatsService 维护每个用户的滚动统计快照。
type StatsService interface {
	Process(ctx context.Context, task tasks.RecordCreatedTask) error
	Snapshot(ctx context.Context, userID uint) (*StatsSnapshot, error)
}

type statsService struct {
	rdb *redis.Client
}

// NewStatsService 创建一个新的 StatsService 实例。
func NewStatsService(rdb *redis.Client) StatsService {
	return &statsService{rdb: rdb}
}

func statsKey(userID uint) string {
	return fmt.Sprintf("stats:user:%d", userID)
}

// Process 把一条新记录合并进用户的滚动累计值。
// 重复投递的同一条记录（record_id 不大于已处理的最大值）会被跳过。
func (s *statsService) Process(ctx context.Context, task tasks.RecordCreatedTask) error {
	key := statsKey(task.UserID)

	acc := statsAccumulator{
		ScaleTotals:    map[string]int{},
		ScaleCounts:    map[string]int{},
		BandCounts:     map[string]int{},
		LastScaleBand:  map[string]string{},
		LastScaleTotal: map[string]int{},
	}
	raw, err := s.rdb.Get(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("读取统计累计值失败: %w", err)
	}
	if err == nil {
		if err := json.Unmarshal([]byte(raw), &acc); err != nil {
			return fmt.Errorf("解析统计累计值失败: %w", err)
		}
	}

	// Kafka 至少一次投递下的去重
	if task.RecordID <= acc.LastRecordID {
		return nil
	}

	acc.RecordCount++
	acc.StressSum += task.StressLevel
	acc.IntensitySum += task.WorkIntensity
	if task.SleepHours != nil {
		acc.SleepSum += *task.SleepHours
		acc.SleepCount++
	}
	if acc.ScaleTotals == nil {
		acc.ScaleTotals = map[string]int{}
		acc.ScaleCounts = map[string]int{}
		acc.BandCounts = map[string]int{}
		acc.LastScaleBand = map[string]string{}
		acc.LastScaleTotal = map[string]int{}
	}
	acc.ScaleTotals[task.ScaleCode] += task.ScaleTotal
	acc.ScaleCounts[task.ScaleCode]++
	acc.BandCounts[task.BandLabel]++
	acc.LastRecordID = task.RecordID
	acc.LastRecordDate = task.Date
	acc.LastScaleBand[task.ScaleCode] = task.BandLabel
	acc.LastScaleTotal[task.ScaleCode] = task.ScaleTotal

	out, err := json.Marshal(acc)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, out, statsSnapshotTTL).Err()
}

// Snapshot 返回计算好平均值的统计快照；没有任何记录时返回零值快照。
func (s *statsService) Snapshot(ctx context.Context, userID uint) (*StatsSnapshot, error) {
	raw, err := s.rdb.Get(ctx, statsKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return &StatsSnapshot{
			AvgScaleTotals: map[string]float64{},
			BandCounts:     map[string]int{},
			LastScaleBand:  map[string]string{},
			LastScaleTotal: map[string]int{},
		}, nil
	}
	if err != nil {
		return nil, err
	}

	var acc statsAccumulator
	if err := json.Unmarshal([]byte(raw), &acc); err != nil {
		return nil, err
	}

	snap := &StatsSnapshot{
		RecordCount:    acc.RecordCount,
		AvgScaleTotals: map[string]float64{},
		BandCounts:     acc.BandCounts,
		LastScaleBand:  acc.LastScaleBand,
		LastScaleTotal: acc.LastScaleTotal,
		LastRecordDate: acc.LastRecordDate,
	}
	if snap.BandCounts == nil {
		snap.BandCounts = map[string]int{}
	}
	if snap.LastScaleBand == nil {
		snap.LastScaleBand = map[string]string{}
	}
	if snap.LastScaleTotal == nil {
		snap.LastScaleTotal = map[string]int{}
	}
	if acc.RecordCount > 0 {
		snap.AvgStressLevel = round2(float64(acc.StressSum) / float64(acc.RecordCount))
		snap.AvgWorkIntensity = round2(float64(acc.IntensitySum) / float64(acc.RecordCount))
	}
	if acc.SleepCount > 0 {
		avg := round2(acc.SleepSum / float64(acc.SleepCount))
		snap.AvgSleepHours = &avg
	}
	for code, total := range acc.ScaleTotals {
		if n := acc.ScaleCounts[code]; n > 0 {
			snap.AvgScaleTotals[code] = round2(float64(total) / float64(n))
		}
	}
	return snap, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
