package service

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"time"

	"smiling-nurse-go/internal/model"
	"smiling-nurse-go/internal/repository"
	"smiling-nurse-go/internal/scale"
	"smiling-nurse-go/pkg/kafka"
	"smiling-nurse-go/pkg/log"
	"smiling-nurse-go/pkg/tasks"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrRecordNotFound 表示记录不存在或不属于当前用户。
var ErrRecordNotFound = errors.New("记录不存在")

// SubmitRecordInput 是提交一条日常记录所需的全部输入。
type SubmitRecordInput struct {
	Date          time.Time
	WorkType      string
	ShiftType     *string
	StressLevel   int
	SleepHoursH   int
	SleepMinutes  int
	SleepQuality  *int
	WorkIntensity int
	BloodSugar    *float64
	Steps         *int
	SystolicBP    *int
	DiastolicBP   *int
	Meals         []string
	Notes         string
	ScaleCode     string
	ItemScores    map[int]int
}

// RecordService 接口定义了日常记录相关的业务操作。
type RecordService interface {
	Submit(userID uint, input SubmitRecordInput) (*model.DailyRecord, *scale.Result, error)
	List(userID uint) ([]model.DailyRecord, error)
	Get(userID, recordID uint) (*model.DailyRecord, error)
	// ExportCSV 把用户的全部记录导出为带 UTF-8 BOM 的 CSV 字节流。
	ExportCSV(userID uint) ([]byte, error)
}

// recordService 是 RecordService 接口的实现。
type recordService struct {
	recordRepo repository.RecordRepository
}

// NewRecordService 创建一个新的 RecordService 实例。
func NewRecordService(recordRepo repository.RecordRepository) RecordService {
	return &recordService{recordRepo: recordRepo}
}

// Submit 校验输入、计算量表得分并持久化一条日常记录。
func (s *recordService) Submit(userID uint, input SubmitRecordInput) (*model.DailyRecord, *scale.Result, error) {
	// 1. 校验工作情景
	if err := validateWorkContext(input.WorkType, input.ShiftType); err != nil {
		return nil, nil, err
	}

	// 2. 校验主观指标范围
	if input.StressLevel < 1 || input.StressLevel > 10 {
		return nil, nil, errors.New("压力等级必须在 1 到 10 之间")
	}
	if input.WorkIntensity < 1 || input.WorkIntensity > 10 {
		return nil, nil, errors.New("工作强度必须在 1 到 10 之间")
	}
	if input.SleepQuality != nil && (*input.SleepQuality < 1 || *input.SleepQuality > 5) {
		return nil, nil, errors.New("睡眠质量必须在 1 到 5 之间")
	}

	// 3. 计算量表得分
	def, ok := scale.ByCode(input.ScaleCode)
	if !ok {
		return nil, nil, fmt.Errorf("不支持的量表: %s", input.ScaleCode)
	}
	result, err := scale.Score(input.ItemScores, def)
	if err != nil {
		return nil, nil, err
	}

	// 4. 组装记录
	record := &model.DailyRecord{
		UserID:        userID,
		Date:          input.Date,
		WorkType:      input.WorkType,
		ShiftType:     input.ShiftType,
		StressLevel:   input.StressLevel,
		SleepHours:    scale.NormalizeSleep(input.SleepHoursH, input.SleepMinutes),
		SleepQuality:  input.SleepQuality,
		WorkIntensity: input.WorkIntensity,
		BloodSugar:    input.BloodSugar,
		Steps:         input.Steps,
		SystolicBP:    input.SystolicBP,
		DiastolicBP:   input.DiastolicBP,
		Meals:         datatypes.NewJSONSlice(input.Meals),
		Notes:         input.Notes,
		ScaleCode:     def.Code,
		ItemScores:    datatypes.NewJSONSlice(itemScoresInOrder(input.ItemScores, def.ItemCount)),
		ScaleTotal:    result.Total,
	}
	if def.Code == scale.CodeNurse19 {
		record.WorkOverloadScore = subScore(result, scale.FactorWorkOverload)
		record.EmotionalLaborScore = subScore(result, scale.FactorEmotionalLabor)
		record.PersonalScore = subScore(result, scale.FactorPersonal)
		record.OrganizationalScore = subScore(result, scale.FactorOrganizational)
	}

	if err := s.recordRepo.Create(record); err != nil {
		return nil, nil, err
	}

	// 5. 异步触发统计聚合，失败不影响主流程
	task := tasks.RecordCreatedTask{
		UserID:        userID,
		RecordID:      record.ID,
		Date:          record.Date,
		StressLevel:   record.StressLevel,
		SleepHours:    record.SleepHours,
		WorkIntensity: record.WorkIntensity,
		ScaleCode:     record.ScaleCode,
		ScaleTotal:    record.ScaleTotal,
		BandLabel:     result.BandLabel,
	}
	if err := kafka.ProduceRecordTask(task); err != nil {
		log.Errorf("发送统计任务到 Kafka 失败: recordId=%d, error=%v", record.ID, err)
	}

	return record, result, nil
}

// List 返回用户的全部日常记录，按日期倒序。
func (s *recordService) List(userID uint) ([]model.DailyRecord, error) {
	return s.recordRepo.FindByUser(userID)
}

// Get 返回单条记录，并校验归属。
func (s *recordService) Get(userID, recordID uint) (*model.DailyRecord, error) {
	record, err := s.recordRepo.FindByID(recordID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	if record.UserID != userID {
		return nil, ErrRecordNotFound
	}
	return record, nil
}

// ExportCSV 生成用户记录的 CSV 导出，带 UTF-8 BOM 以便 Excel 正确识别编码。
func (s *recordService) ExportCSV(userID uint) ([]byte, error) {
	records, err := s.recordRepo.FindByUser(userID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write([]byte{0xEF, 0xBB, 0xBF})

	w := csv.NewWriter(&buf)
	header := []string{
		"日期", "工作类型", "班次", "压力等级", "睡眠时长(小时)", "睡眠质量",
		"工作强度", "血糖", "步数", "收缩压", "舒张压", "用餐", "量表", "量表总分", "备注",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, r := range records {
		row := []string{
			r.Date.Format("2006-01-02"),
			r.WorkType,
			derefStr(r.ShiftType),
			strconv.Itoa(r.StressLevel),
			formatFloat(r.SleepHours),
			formatIntPtr(r.SleepQuality),
			strconv.Itoa(r.WorkIntensity),
			formatFloat(r.BloodSugar),
			formatIntPtr(r.Steps),
			formatIntPtr(r.SystolicBP),
			formatIntPtr(r.DiastolicBP),
			joinMeals(r.Meals),
			r.ScaleCode,
			strconv.Itoa(r.ScaleTotal),
			r.Notes,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// validateWorkContext 校验工作类型与班次的组合合法性。
func validateWorkContext(workType string, shiftType *string) error {
	switch workType {
	case model.WorkTypeShift:
		if shiftType == nil {
			return errors.New("轮班制必须指定班次")
		}
		switch *shiftType {
		case model.ShiftDay, model.ShiftEvening, model.ShiftNight:
			return nil
		default:
			return fmt.Errorf("无效的班次: %s", *shiftType)
		}
	case model.WorkTypeFixed:
		if shiftType != nil {
			return errors.New("固定班制不能指定班次")
		}
		return nil
	default:
		return fmt.Errorf("无效的工作类型: %s", workType)
	}
}

// itemScoresInOrder 把按题号索引的得分映射转换为有序切片（题号从 1 开始）。
func itemScoresInOrder(responses map[int]int, itemCount int) []int {
	ordered := make([]int, itemCount)
	for i := 1; i <= itemCount; i++ {
		ordered[i-1] = responses[i]
	}
	return ordered
}

func subScore(result *scale.Result, name string) *int {
	if v, ok := result.SubScores[name]; ok {
		return &v
	}
	return nil
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func formatIntPtr(i *int) string {
	if i == nil {
		return ""
	}
	return strconv.Itoa(*i)
}

func joinMeals(meals datatypes.JSONSlice[string]) string {
	out := ""
	for i, m := range meals {
		if i > 0 {
			out += "/"
		}
		out += m
	}
	return out
}
