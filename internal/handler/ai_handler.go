package handler

import (
	"errors"
	"net/http"
	"strconv"

	"smiling-nurse-go/internal/service"
	"smiling-nurse-go/pkg/llm"
	"smiling-nurse-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AIHandler 负责处理 AI 健康分析相关的 API 请求。
type AIHandler struct {
	analysisService service.AnalysisService
}

// NewAIHandler 创建一个新的 AIHandler 实例。
func NewAIHandler(analysisService service.AnalysisService) *AIHandler {
	return &AIHandler{analysisService: analysisService}
}

// AnalyzeDaily 对单条记录生成 AI 健康分析。
// AI 后端不可用时降级为 200 返回，data.analysis 为空，前端只展示量表得分。
func (h *AIHandler) AnalyzeDaily(c *gin.Context) {
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

	analysis, err := h.analysisService.AnalyzeDaily(c.Request.Context(), user.ID, uint(recordID))
	if err != nil {
		if errors.Is(err, service.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    http.StatusNotFound,
				"message": "记录不存在",
			})
			return
		}
		if isBackendError(err) {
			log.Warnf("AnalyzeDaily: AI backend unavailable for record %d, error: %v", recordID, err)
			c.JSON(http.StatusOK, gin.H{
				"code":     http.StatusOK,
				"message":  "AI 分析暂时不可用",
				"data":     gin.H{"analysis": ""},
				"degraded": true,
			})
			return
		}
		log.Errorf("AnalyzeDaily: Failed for record %d, error: %v", recordID, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "生成分析失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"analysis": analysis},
	})
}

// AnalyzeStatistics 基于历史记录生成趋势分析。
func (h *AIHandler) AnalyzeStatistics(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	analysis, err := h.analysisService.AnalyzeStatistics(c.Request.Context(), user.ID)
	if err != nil {
		if errors.Is(err, service.ErrNoRecords) {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    http.StatusBadRequest,
				"message": "暂无记录，无法生成分析",
			})
			return
		}
		if isBackendError(err) {
			log.Warnf("AnalyzeStatistics: AI backend unavailable for user %d, error: %v", user.ID, err)
			c.JSON(http.StatusOK, gin.H{
				"code":     http.StatusOK,
				"message":  "AI 分析暂时不可用",
				"data":     gin.H{"analysis": ""},
				"degraded": true,
			})
			return
		}
		log.Errorf("AnalyzeStatistics: Failed for user %d, error: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "生成分析失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"analysis": analysis},
	})
}

// GetAdviceRequest 定义了快速建议 API 的请求体结构。
type GetAdviceRequest struct {
	Topic string `json:"topic"`
}

// GetAdvice 返回按话题预置的快速建议，不依赖 AI 后端。
func (h *AIHandler) GetAdvice(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	var req GetAdviceRequest
	// 请求体可缺省，缺省时回退到压力管理话题
	_ = c.ShouldBindJSON(&req)

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"topic":  req.Topic,
			"advice": service.AdviceForTopic(req.Topic),
		},
	})
}

// isBackendError 判断错误是否来自 AI 后端本身。
func isBackendError(err error) bool {
	return errors.Is(err, llm.ErrUnavailable) ||
		errors.Is(err, llm.ErrTimeout) ||
		errors.Is(err, llm.ErrEmptyResponse)
}
