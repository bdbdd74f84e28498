package scale

import (
	"fmt"
	"math"
)

// ValidationKind 标识计分前校验失败的类别。
type ValidationKind string

const (
	// MissingItem 表示缺少某一题的作答。
	MissingItem ValidationKind = "missing_item"
	// OutOfRange 表示某一题的作答超出了量表取值范围。
	OutOfRange ValidationKind = "out_of_range"
)

// ValidationError 表示计分输入校验失败，携带出错的题目编号。
type ValidationError struct {
	Kind ValidationKind
	Item int
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case MissingItem:
		return fmt.Sprintf("第 %d 题未作答", e.Item)
	case OutOfRange:
		return fmt.Sprintf("第 %d 题的作答超出量表取值范围", e.Item)
	}
	return fmt.Sprintf("第 %d 题校验失败", e.Item)
}

// Result 是一次计分的输出：总分、因子分及各自的分级标签。
type Result struct {
	Total     int
	SubScores map[string]int
	BandLabel string
	SubBands  map[string]string
}

// Score 校验原始作答并计算量表得分。
// responses 的键是题目编号（1..ItemCount），值是原始作答。
// 纯函数：不修改输入，相同输入必得相同输出。
func Score(responses map[int]int, def Definition) (*Result, error) {
	// 先校验再计分：任何一题缺失或越界都直接拒绝
	scored := make([]int, def.ItemCount+1)
	for i := 1; i <= def.ItemCount; i++ {
		v, ok := responses[i]
		if !ok {
			return nil, &ValidationError{Kind: MissingItem, Item: i}
		}
		if v < def.Min || v > def.Max {
			return nil, &ValidationError{Kind: OutOfRange, Item: i}
		}
		// 反向计分：变换常数为量表的 Max+Min
		if def.Reversed[i] {
			v = def.Max + def.Min - v
		}
		scored[i] = v
	}

	total := 0
	for i := 1; i <= def.ItemCount; i++ {
		total += scored[i]
	}

	result := &Result{
		Total:     total,
		SubScores: make(map[string]int),
		BandLabel: BandFor(total, def.Bands),
		SubBands:  make(map[string]string),
	}

	for _, sub := range def.SubScales {
		sum := 0
		for i := sub.From; i <= sub.To; i++ {
			sum += scored[i]
		}
		result.SubScores[sub.Name] = sum
		if label := BandFor(sum, sub.Bands); label != "" {
			result.SubBands[sub.Name] = label
		}
	}

	return result, nil
}

// NormalizeSleep 把“小时 + 分钟”归一化为小数小时，保留两位小数。
// 时长为零视为未记录，返回 nil 而不是 0。
func NormalizeSleep(hours, minutes int) *float64 {
	if hours <= 0 && minutes <= 0 {
		return nil
	}
	v := math.Round((float64(hours)+float64(minutes)/60)*100) / 100
	return &v
}
