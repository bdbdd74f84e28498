// Package scale 实现了心理量表的定义、校验与计分。
package scale

// SubScale 定义了量表中的一个因子（子量表），覆盖题目编号的闭区间 [From, To]。
type SubScale struct {
	Name  string
	From  int
	To    int
	Bands []Band // 因子分的分级，可为空
}

// Band 定义了一个分级区间：得分 <= UpTo 时归入 Label 级别。
// 列表按 UpTo 升序排列，超过所有阈值的得分归入最后一个级别。
type Band struct {
	UpTo  int
	Label string
}

// Definition 定义了一个量表：题目数量、单题取值范围、反向计分题与分级阈值。
// 所有内置量表定义都是只读的，计分过程不会修改它们。
type Definition struct {
	// Code 是量表的标识符，随每条记录一起持久化。
	Code string
	// ItemCount 是必答题目数，题目编号从 1 开始。
	ItemCount int
	// Min/Max 是单题的取值闭区间。
	Min int
	Max int
	// Reversed 标记反向计分题：计分值 = Max + Min - 原始值。
	Reversed map[int]bool
	// SubScales 按题号区间划分因子，区间之间不重叠、无缝隙。
	SubScales []SubScale
	// Bands 是总分的分级阈值。
	Bands []Band
}

// 量表代码
const (
	CodePSS10   = "PSS10"
	CodePHQ9    = "PHQ9"
	CodeNurse19 = "NURSE19"
)

// 分级标签
const (
	BandLow      = "低"
	BandModerate = "中等"
	BandHigh     = "高"
)

// PSS10 是知觉压力量表：10 题，0-4 分，4/5/7/8 为反向计分题，总分 0-40。
var PSS10 = Definition{
	Code:      CodePSS10,
	ItemCount: 10,
	Min:       0,
	Max:       4,
	Reversed:  map[int]bool{4: true, 5: true, 7: true, 8: true},
	Bands: []Band{
		{UpTo: 13, Label: BandLow},
		{UpTo: 26, Label: BandModerate},
		{UpTo: 40, Label: BandHigh},
	},
}

// PHQ9 是患者健康问卷抑郁筛查量表：9 题，0-3 分，总分 0-27，五级分级。
var PHQ9 = Definition{
	Code:      CodePHQ9,
	ItemCount: 9,
	Min:       0,
	Max:       3,
	Bands: []Band{
		{UpTo: 4, Label: "抑郁症状极轻"},
		{UpTo: 9, Label: "轻度抑郁症状"},
		{UpTo: 14, Label: "中度抑郁症状"},
		{UpTo: 19, Label: "中重度抑郁症状"},
		{UpTo: 27, Label: "重度抑郁症状"},
	},
}

// 19 题护士压力量表的因子名称
const (
	FactorWorkOverload   = "workOverload"
	FactorEmotionalLabor = "emotionalLabor"
	FactorPersonal       = "personalCharacteristics"
	FactorOrganizational = "organizationalCharacteristics"
)

// Nurse19 是 19 题护士职业压力量表：1-4 分，总分 19-76，四个因子。
// 总分与因子分的分级阈值取各自取值区间的三等分点。
var Nurse19 = Definition{
	Code:      CodeNurse19,
	ItemCount: 19,
	Min:       1,
	Max:       4,
	SubScales: []SubScale{
		{Name: FactorWorkOverload, From: 1, To: 9, Bands: []Band{
			{UpTo: 18, Label: BandLow}, {UpTo: 27, Label: BandModerate}, {UpTo: 36, Label: BandHigh},
		}},
		{Name: FactorEmotionalLabor, From: 10, To: 12, Bands: []Band{
			{UpTo: 6, Label: BandLow}, {UpTo: 9, Label: BandModerate}, {UpTo: 12, Label: BandHigh},
		}},
		{Name: FactorPersonal, From: 13, To: 15, Bands: []Band{
			{UpTo: 6, Label: BandLow}, {UpTo: 9, Label: BandModerate}, {UpTo: 12, Label: BandHigh},
		}},
		{Name: FactorOrganizational, From: 16, To: 19, Bands: []Band{
			{UpTo: 8, Label: BandLow}, {UpTo: 12, Label: BandModerate}, {UpTo: 16, Label: BandHigh},
		}},
	},
	Bands: []Band{
		{UpTo: 38, Label: BandLow},
		{UpTo: 57, Label: BandModerate},
		{UpTo: 76, Label: BandHigh},
	},
}

// ByCode 根据量表代码返回内置定义。
func ByCode(code string) (Definition, bool) {
	switch code {
	case CodePSS10:
		return PSS10, true
	case CodePHQ9:
		return PHQ9, true
	case CodeNurse19:
		return Nurse19, true
	}
	return Definition{}, false
}

// BandFor 按“阈值上界包含”规则返回 v 所属的分级标签。
// v 超过所有阈值时返回最后一个（最高）标签；bands 为空时返回空串。
func BandFor(v int, bands []Band) string {
	if len(bands) == 0 {
		return ""
	}
	for _, b := range bands {
		if v <= b.UpTo {
			return b.Label
		}
	}
	return bands[len(bands)-1].Label
}
