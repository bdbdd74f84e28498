package scale

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// uniformResponses 生成所有题目都作答同一个值的输入。
func uniformResponses(itemCount, value int) map[int]int {
	responses := make(map[int]int, itemCount)
	for i := 1; i <= itemCount; i++ {
		responses[i] = value
	}
	return responses
}

func TestScorePSS10Reversal(t *testing.T) {
	// 全部答 0：反向题 4/5/7/8 计为 4 分，总分 16
	responses := uniformResponses(10, 0)
	result, err := Score(responses, PSS10)
	require.NoError(t, err)
	assert.Equal(t, 16, result.Total)
	assert.Equal(t, BandModerate, result.BandLabel)

	// 全部答 4：反向题计为 0 分，总分 24
	result, err = Score(uniformResponses(10, 4), PSS10)
	require.NoError(t, err)
	assert.Equal(t, 24, result.Total)

	// 单独检查一道反向题：其余答 0，第 4 题答 3 计为 1，总分 = 3 个反向题 * 4 + 1
	responses = uniformResponses(10, 0)
	responses[4] = 3
	result, err = Score(responses, PSS10)
	require.NoError(t, err)
	assert.Equal(t, 13, result.Total)
	assert.Equal(t, BandLow, result.BandLabel)
}

func TestScorePSS10Bands(t *testing.T) {
	cases := []struct {
		name  string
		total int
		want  string
	}{
		{"最低分", 0, BandLow},
		{"低档上界", 13, BandLow},
		{"中档下界", 14, BandModerate},
		{"中档上界", 26, BandModerate},
		{"高档下界", 27, BandHigh},
		{"最高分", 40, BandHigh},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, BandFor(c.total, PSS10.Bands))
		})
	}
}

func TestScorePHQ9Bands(t *testing.T) {
	cases := []struct {
		total int
		want  string
	}{
		{0, "抑郁症状极轻"},
		{4, "抑郁症状极轻"},
		{5, "轻度抑郁症状"},
		{9, "轻度抑郁症状"},
		{10, "中度抑郁症状"},
		{14, "中度抑郁症状"},
		{15, "中重度抑郁症状"},
		{19, "中重度抑郁症状"},
		{20, "重度抑郁症状"},
		{27, "重度抑郁症状"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, BandFor(c.total, PHQ9.Bands), "total=%d", c.total)
	}
}

func TestScorePHQ9NoReversal(t *testing.T) {
	result, err := Score(uniformResponses(9, 3), PHQ9)
	require.NoError(t, err)
	assert.Equal(t, 27, result.Total)
	assert.Empty(t, result.SubScores)
}

func TestScoreNurse19Factors(t *testing.T) {
	// 全部答 2：因子分 = 题数 * 2，总分 38
	result, err := Score(uniformResponses(19, 2), Nurse19)
	require.NoError(t, err)
	assert.Equal(t, 38, result.Total)
	assert.Equal(t, BandLow, result.BandLabel)
	assert.Equal(t, 18, result.SubScores[FactorWorkOverload])
	assert.Equal(t, 6, result.SubScores[FactorEmotionalLabor])
	assert.Equal(t, 6, result.SubScores[FactorPersonal])
	assert.Equal(t, 8, result.SubScores[FactorOrganizational])
	assert.Equal(t, BandLow, result.SubBands[FactorWorkOverload])

	// 因子分之和恒等于总分
	responses := uniformResponses(19, 1)
	responses[3] = 4
	responses[11] = 3
	responses[17] = 2
	result, err = Score(responses, Nurse19)
	require.NoError(t, err)
	sum := 0
	for _, v := range result.SubScores {
		sum += v
	}
	assert.Equal(t, result.Total, sum)
}

func TestScoreNurse19Extremes(t *testing.T) {
	result, err := Score(uniformResponses(19, 1), Nurse19)
	require.NoError(t, err)
	assert.Equal(t, 19, result.Total)
	assert.Equal(t, BandLow, result.BandLabel)

	result, err = Score(uniformResponses(19, 4), Nurse19)
	require.NoError(t, err)
	assert.Equal(t, 76, result.Total)
	assert.Equal(t, BandHigh, result.BandLabel)
	assert.Equal(t, BandHigh, result.SubBands[FactorEmotionalLabor])
}

func TestScoreValidation(t *testing.T) {
	t.Run("缺题", func(t *testing.T) {
		responses := uniformResponses(10, 1)
		delete(responses, 7)
		_, err := Score(responses, PSS10)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, MissingItem, verr.Kind)
		assert.Equal(t, 7, verr.Item)
	})

	t.Run("越界", func(t *testing.T) {
		responses := uniformResponses(9, 2)
		responses[5] = 4
		_, err := Score(responses, PHQ9)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, OutOfRange, verr.Kind)
		assert.Equal(t, 5, verr.Item)
	})

	t.Run("低于下界", func(t *testing.T) {
		responses := uniformResponses(19, 2)
		responses[1] = 0
		_, err := Score(responses, Nurse19)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, OutOfRange, verr.Kind)
	})
}

func TestScoreDoesNotMutateInput(t *testing.T) {
	responses := uniformResponses(10, 3)
	_, err := Score(responses, PSS10)
	require.NoError(t, err)
	for i := 1; i <= 10; i++ {
		assert.Equal(t, 3, responses[i])
	}
}

func TestByCode(t *testing.T) {
	for _, code := range []string{CodePSS10, CodePHQ9, CodeNurse19} {
		def, ok := ByCode(code)
		require.True(t, ok)
		assert.Equal(t, code, def.Code)
	}
	_, ok := ByCode("GAD7")
	assert.False(t, ok)
}

func TestNormalizeSleep(t *testing.T) {
	cases := []struct {
		name    string
		hours   int
		minutes int
		want    *float64
	}{
		{"零时长视为未记录", 0, 0, nil},
		{"整点", 7, 0, ptr(7.0)},
		{"半小时", 6, 30, ptr(6.5)},
		{"四舍五入到两位", 7, 20, ptr(7.33)},
		{"只有分钟", 0, 45, ptr(0.75)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := NormalizeSleep(c.hours, c.minutes)
			if c.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *c.want, *got, 1e-9)
		})
	}
}

func ptr(v float64) *float64 { return &v }
