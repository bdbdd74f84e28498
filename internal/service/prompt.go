package service

import (
	"fmt"
	"strings"

	"smiling-nurse-go/internal/model"
	"smiling-nurse-go/internal/scale"
)

// FormSnapshot 是客户端正在填写、尚未保存的记录表单的部分值。
// 所有字段可选，数值未经校验，只用于给对话提供语境，绝不落库。
type FormSnapshot struct {
	WorkType      *string  `json:"workType,omitempty"`
	ShiftType     *string  `json:"shiftType,omitempty"`
	StressLevel   *int     `json:"stressLevel,omitempty"`
	SleepHours    *int     `json:"sleepHours,omitempty"`
	SleepMinutes  *int     `json:"sleepMinutes,omitempty"`
	SleepQuality  *int     `json:"sleepQuality,omitempty"`
	WorkIntensity *int     `json:"workIntensity,omitempty"`
	Meals         []string `json:"meals,omitempty"`
	Notes         *string  `json:"notes,omitempty"`
}

// Grounding 是会话提示词的数据来源：
// 已保存的单条日常记录、填写中的表单快照，或历史统计快照。
type Grounding struct {
	Record   *model.DailyRecord
	Form     *FormSnapshot
	Snapshot *StatsSnapshot
}

// 结束语指令按会话模式区分。
const (
	closingInstructionFreeForm = "请用 2 到 3 句话做总结性的健康建议，" +
		"肯定用户在对话中提到的积极做法，并提醒用户坚持记录每日健康数据。"
	closingInstructionStructured = "请基于本次填写的问卷结果，用 2 到 3 句话给出针对性的健康建议，" +
		"优先回应得分最高的风险维度。"
)

// scaleNames 把量表代码映射为提示词中使用的中文名称。
var scaleNames = map[string]string{
	"PSS10":   "知觉压力量表(PSS-10)",
	"PHQ9":    "抑郁症筛查量表(PHQ-9)",
	"NURSE19": "护士职业压力量表",
}

// buildSessionPrompt 生成建议对话的系统提示词。
// freeForm 为 true 时是自由倾诉模式，否则是基于问卷结果的结构化模式。
func buildSessionPrompt(profile model.Profile, g Grounding, freeForm bool) string {
	var b strings.Builder

	b.WriteString("你是一位面向临床护士的健康顾问，语气温和、专业、共情。\n")
	b.WriteString("你的回答必须使用中文，每次回复保持在 3 句话以内，并以一个开放式问题结尾。\n\n")

	b.WriteString("## 用户背景\n")
	writeProfileSection(&b, profile)

	if g.Record != nil {
		b.WriteString("\n## 今日记录\n")
		writeRecordSection(&b, g.Record)
	}
	if g.Form != nil {
		b.WriteString("\n## 填写中的记录\n")
		writeFormSection(&b, g.Form)
	}
	if g.Snapshot != nil && g.Snapshot.RecordCount > 0 {
		b.WriteString("\n## 历史统计\n")
		writeSnapshotSection(&b, g.Snapshot)
	}

	b.WriteString("\n## 对话方式\n")
	if freeForm {
		b.WriteString("这是一次自由倾诉。先询问用户今天最想聊的事情，倾听为主，建议为辅。\n")
		b.WriteString("对话预计进行 3 到 5 个回合后自然收尾。\n")
	} else {
		b.WriteString("这是一次基于问卷结果的结构化对话。从得分最值得关注的指标切入提问，")
		b.WriteString("逐步了解背后的具体情境。\n")
		b.WriteString("对话预计进行 5 到 7 个回合后自然收尾。\n")
	}

	return b.String()
}

// buildOpeningQuestion 生成会话的第一条 AI 消息的指令。
func buildOpeningQuestion(freeForm bool) string {
	if freeForm {
		return "请向用户问好，并用一个开放式问题邀请用户聊聊今天的状态。"
	}
	return "请向用户问好，并针对上面记录中最值得关注的一项指标提出第一个问题。"
}

// buildClosingInstruction 返回结束会话时发给模型的收尾指令。
func buildClosingInstruction(freeForm bool) string {
	if freeForm {
		return closingInstructionFreeForm
	}
	return closingInstructionStructured
}

// buildDailyAnalysisPrompt 生成单条记录的健康分析提示词。
func buildDailyAnalysisPrompt(profile model.Profile, record *model.DailyRecord) string {
	var b strings.Builder
	b.WriteString("你是一位面向临床护士的健康顾问。请基于以下当日记录，")
	b.WriteString("用中文输出一段不超过 200 字的健康分析，指出最需要关注的指标并给出一条可执行的建议。\n\n")
	b.WriteString("## 用户背景\n")
	writeProfileSection(&b, profile)
	b.WriteString("\n## 今日记录\n")
	writeRecordSection(&b, record)
	return b.String()
}

// buildStatisticsPrompt 生成跨记录趋势分析的提示词。
func buildStatisticsPrompt(profile model.Profile, records []model.DailyRecord, snap *StatsSnapshot) string {
	var b strings.Builder
	b.WriteString("你是一位面向临床护士的健康顾问。请基于以下历史数据，")
	b.WriteString("用中文输出一段不超过 300 字的趋势分析，指出变化趋势并给出两条改善建议。\n\n")
	b.WriteString("## 用户背景\n")
	writeProfileSection(&b, profile)
	if snap != nil && snap.RecordCount > 0 {
		b.WriteString("\n## 历史统计\n")
		writeSnapshotSection(&b, snap)
	}
	if len(records) > 0 {
		b.WriteString("\n## 最近记录\n")
		limit := len(records)
		if limit > 7 {
			limit = 7
		}
		for _, r := range records[:limit] {
			fmt.Fprintf(&b, "- %s 压力 %d/10，工作强度 %d/10", r.Date.Format("2006-01-02"), r.StressLevel, r.WorkIntensity)
			if r.SleepHours != nil {
				fmt.Fprintf(&b, "，睡眠 %.1f 小时", *r.SleepHours)
			}
			fmt.Fprintf(&b, "，%s 总分 %d\n", scaleName(r.ScaleCode), r.ScaleTotal)
		}
	}
	return b.String()
}

func writeProfileSection(b *strings.Builder, profile model.Profile) {
	fmt.Fprintf(b, "- 姓名: %s，年龄: %d，性别: %s\n", profile.Name, profile.Age, profile.Gender)
	if profile.Department != "" {
		fmt.Fprintf(b, "- 科室: %s\n", profile.Department)
	}
	if profile.YearsOfExperience != nil {
		fmt.Fprintf(b, "- 工龄: %d 年\n", *profile.YearsOfExperience)
	}
	if profile.Position != "" {
		fmt.Fprintf(b, "- 职位: %s\n", profile.Position)
	}
	for _, d := range profile.ChronicDiseases {
		if d.Detail != "" {
			fmt.Fprintf(b, "- 慢性病: %s(%s)\n", d.Disease, d.Detail)
		} else {
			fmt.Fprintf(b, "- 慢性病: %s\n", d.Disease)
		}
	}
}

func writeRecordSection(b *strings.Builder, record *model.DailyRecord) {
	fmt.Fprintf(b, "- 日期: %s\n", record.Date.Format("2006-01-02"))
	if record.WorkType == model.WorkTypeShift && record.ShiftType != nil {
		fmt.Fprintf(b, "- 工作: 轮班(%s)\n", shiftName(*record.ShiftType))
	} else {
		b.WriteString("- 工作: 固定班\n")
	}
	fmt.Fprintf(b, "- 压力等级: %d/10，工作强度: %d/10\n", record.StressLevel, record.WorkIntensity)
	if record.SleepHours != nil {
		fmt.Fprintf(b, "- 睡眠时长: %.1f 小时\n", *record.SleepHours)
	}
	if record.SleepQuality != nil {
		fmt.Fprintf(b, "- 睡眠质量: %d/5\n", *record.SleepQuality)
	}
	if record.BloodSugar != nil {
		fmt.Fprintf(b, "- 血糖: %.1f\n", *record.BloodSugar)
	}
	if record.Steps != nil {
		fmt.Fprintf(b, "- 步数: %d\n", *record.Steps)
	}
	if record.SystolicBP != nil && record.DiastolicBP != nil {
		fmt.Fprintf(b, "- 血压: %d/%d\n", *record.SystolicBP, *record.DiastolicBP)
	}
	fmt.Fprintf(b, "- %s 总分: %d\n", scaleName(record.ScaleCode), record.ScaleTotal)
	if record.WorkOverloadScore != nil {
		fmt.Fprintf(b, "- 工作负荷: %d，情绪劳动: %d，个人因素: %d，组织因素: %d\n",
			*record.WorkOverloadScore, derefInt(record.EmotionalLaborScore),
			derefInt(record.PersonalScore), derefInt(record.OrganizationalScore))
	}
	if record.Notes != "" {
		fmt.Fprintf(b, "- 备注: %s\n", record.Notes)
	}
}

// writeFormSection 渲染填写中的表单值，只输出用户已经填到的字段。
func writeFormSection(b *strings.Builder, f *FormSnapshot) {
	b.WriteString("以下是用户正在填写、尚未保存的记录，数值未经校验，仅作对话语境。\n")
	if f.WorkType != nil && *f.WorkType == model.WorkTypeShift && f.ShiftType != nil {
		fmt.Fprintf(b, "- 工作: 轮班(%s)\n", shiftName(*f.ShiftType))
	} else if f.WorkType != nil && *f.WorkType == model.WorkTypeFixed {
		b.WriteString("- 工作: 固定班\n")
	}
	if f.StressLevel != nil {
		fmt.Fprintf(b, "- 压力等级: %d/10\n", *f.StressLevel)
	}
	if f.SleepHours != nil || f.SleepMinutes != nil {
		if hours := scale.NormalizeSleep(derefInt(f.SleepHours), derefInt(f.SleepMinutes)); hours != nil {
			fmt.Fprintf(b, "- 睡眠时长: %.1f 小时\n", *hours)
		}
	}
	if f.SleepQuality != nil {
		fmt.Fprintf(b, "- 睡眠质量: %d/5\n", *f.SleepQuality)
	}
	if f.WorkIntensity != nil {
		fmt.Fprintf(b, "- 工作强度: %d/10\n", *f.WorkIntensity)
	}
	if len(f.Meals) > 0 {
		fmt.Fprintf(b, "- 已用餐: %s\n", strings.Join(f.Meals, "、"))
	}
	if f.Notes != nil && *f.Notes != "" {
		fmt.Fprintf(b, "- 备注: %s\n", *f.Notes)
	}
}

func writeSnapshotSection(b *strings.Builder, snap *StatsSnapshot) {
	fmt.Fprintf(b, "- 记录天数: %d\n", snap.RecordCount)
	fmt.Fprintf(b, "- 平均压力等级: %.1f/10，平均工作强度: %.1f/10\n", snap.AvgStressLevel, snap.AvgWorkIntensity)
	if snap.AvgSleepHours != nil {
		fmt.Fprintf(b, "- 平均睡眠时长: %.1f 小时\n", *snap.AvgSleepHours)
	}
	for code, avg := range snap.AvgScaleTotals {
		fmt.Fprintf(b, "- %s 平均总分: %.1f", scaleName(code), avg)
		if band, ok := snap.LastScaleBand[code]; ok {
			fmt.Fprintf(b, "，最近一次评级: %s", band)
		}
		b.WriteString("\n")
	}
}

func scaleName(code string) string {
	if name, ok := scaleNames[code]; ok {
		return name
	}
	return code
}

func shiftName(shift string) string {
	switch shift {
	case model.ShiftDay:
		return "白班"
	case model.ShiftEvening:
		return "小夜班"
	case model.ShiftNight:
		return "大夜班"
	default:
		return shift
	}
}

func derefInt(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
