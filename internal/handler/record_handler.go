package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"smiling-nurse-go/internal/service"
	"smiling-nurse-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// RecordHandler 负责处理日常记录相关的 API 请求。
type RecordHandler struct {
	recordService service.RecordService
	statsService  service.StatsService
}

// NewRecordHandler 创建一个新的 RecordHandler 实例。
func NewRecordHandler(recordService service.RecordService, statsService service.StatsService) *RecordHandler {
	return &RecordHandler{
		recordService: recordService,
		statsService:  statsService,
	}
}

// SubmitRecordRequest 定义了提交日常记录 API 的请求体结构。
type SubmitRecordRequest struct {
	Date          string      `json:"date" binding:"required"`
	WorkType      string      `json:"workType" binding:"required"`
	ShiftType     *string     `json:"shiftType"`
	StressLevel   int         `json:"stressLevel" binding:"required"`
	SleepHours    int         `json:"sleepHours"`
	SleepMinutes  int         `json:"sleepMinutes"`
	SleepQuality  *int        `json:"sleepQuality"`
	WorkIntensity int         `json:"workIntensity" binding:"required"`
	BloodSugar    *float64    `json:"bloodSugar"`
	Steps         *int        `json:"steps"`
	SystolicBP    *int        `json:"systolicBP"`
	DiastolicBP   *int        `json:"diastolicBP"`
	Meals         []string    `json:"meals"`
	Notes         string      `json:"notes"`
	ScaleCode     string      `json:"scaleCode" binding:"required"`
	ItemScores    map[int]int `json:"itemScores" binding:"required"`
}

// Submit 处理提交日常记录的请求。
func (h *RecordHandler) Submit(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req SubmitRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("SubmitRecord: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载",
		})
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "日期格式必须为 YYYY-MM-DD",
		})
		return
	}

	record, result, err := h.recordService.Submit(user.ID, service.SubmitRecordInput{
		Date:          date,
		WorkType:      req.WorkType,
		ShiftType:     req.ShiftType,
		StressLevel:   req.StressLevel,
		SleepHoursH:   req.SleepHours,
		SleepMinutes:  req.SleepMinutes,
		SleepQuality:  req.SleepQuality,
		WorkIntensity: req.WorkIntensity,
		BloodSugar:    req.BloodSugar,
		Steps:         req.Steps,
		SystolicBP:    req.SystolicBP,
		DiastolicBP:   req.DiastolicBP,
		Meals:         req.Meals,
		Notes:         req.Notes,
		ScaleCode:     req.ScaleCode,
		ItemScores:    req.ItemScores,
	})
	if err != nil {
		log.Warnf("SubmitRecord: Failed for user %d, error: %v", user.ID, err)
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "记录保存成功",
		"data": gin.H{
			"record": record,
			"score": gin.H{
				"total":     result.Total,
				"band":      result.BandLabel,
				"subScores": result.SubScores,
				"subBands":  result.SubBands,
			},
		},
	})
}

// List 返回当前用户的全部日常记录。
func (h *RecordHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	records, err := h.recordService.List(user.ID)
	if err != nil {
		log.Errorf("ListRecords: Failed for user %d, error: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "获取记录列表失败",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    records,
	})
}

// Get 返回单条记录详情。
func (h *RecordHandler) Get(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	recordID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的记录 ID",
		})
		return
	}

	record, err := h.recordService.Get(user.ID, uint(recordID))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    http.StatusNotFound,
			"message": "记录不存在",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    record,
	})
}

// Export 导出当前用户的全部记录为 CSV 文件。
func (h *RecordHandler) Export(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	data, err := h.recordService.ExportCSV(user.ID)
	if err != nil {
		log.Errorf("ExportRecords: Failed for user %d, error: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "导出失败",
		})
		return
	}

	filename := fmt.Sprintf("health-records-%s.csv", time.Now().Format("20060102"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

// Summary 返回当前用户的滚动统计快照。
func (h *RecordHandler) Summary(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	snap, err := h.statsService.Snapshot(c.Request.Context(), user.ID)
	if err != nil {
		log.Errorf("RecordSummary: Failed for user %d, error: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "获取统计快照失败",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    snap,
	})
}
