// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"smiling-nurse-go/internal/service"
	"smiling-nurse-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ChatHandler 负责处理建议对话相关的 API 请求。
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler 创建一个新的 ChatHandler 实例。
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// StartSessionRequest 定义了开启会话 API 的请求体结构。
// Form 携带保存前表单的部分填写值，仅自由倾诉模式使用。
type StartSessionRequest struct {
	RecordID *uint                 `json:"recordId"`
	Form     *service.FormSnapshot `json:"form"`
	FreeForm bool                  `json:"freeForm"`
}

// Start 开启一次新的建议对话。
func (h *ChatHandler) Start(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("StartSession: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载",
		})
		return
	}

	reply, err := h.chatService.Start(c.Request.Context(), user, service.StartSessionInput{
		RecordID: req.RecordID,
		Form:     req.Form,
		FreeForm: req.FreeForm,
	})
	if err != nil {
		if errors.Is(err, service.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    http.StatusNotFound,
				"message": "记录不存在",
			})
			return
		}
		log.Errorf("StartSession: Failed for user %d, error: %v", user.ID, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":    http.StatusServiceUnavailable,
			"message": "AI 服务暂时不可用，请稍后再试",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    reply,
	})
}

// PostMessageRequest 定义了发送消息 API 的请求体结构。
type PostMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

// Message 处理会话中的一个用户回合。
func (h *ChatHandler) Message(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载：message 不能为空",
		})
		return
	}

	reply, err := h.chatService.PostMessage(c.Request.Context(), user.ID, c.Param("id"), req.Message)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    http.StatusNotFound,
				"message": "会话不存在或已结束",
			})
			return
		}
		log.Errorf("PostMessage: Failed for session %s, error: %v", c.Param("id"), err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":    http.StatusServiceUnavailable,
			"message": "AI 服务暂时不可用，请稍后再试",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    reply,
	})
}

// End 结束一次建议对话并返回最终建议。
func (h *ChatHandler) End(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	summary, err := h.chatService.End(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    http.StatusNotFound,
				"message": "会话不存在或已结束",
			})
			return
		}
		log.Errorf("EndSession: Failed for session %s, error: %v", c.Param("id"), err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":    http.StatusServiceUnavailable,
			"message": "AI 服务暂时不可用，请稍后再试",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    summary,
	})
}

// Info 返回会话的持久化状态。
func (h *ChatHandler) Info(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	info, err := h.chatService.Info(user.ID, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    http.StatusNotFound,
			"message": "会话不存在",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    info,
	})
}
