package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smiling-nurse-go/internal/model"
	"smiling-nurse-go/internal/repository"
	"smiling-nurse-go/pkg/llm"
	"smiling-nurse-go/pkg/log"

	"github.com/google/uuid"
)

// ErrSessionNotFound 表示会话不存在、已结束或内存态已丢失（如进程重启）。
var ErrSessionNotFound = errors.New("会话不存在或已结束")

// defaultEndThreshold 是未配置时触发“建议结束”的 AI 回合数。
const defaultEndThreshold = 6

// StartSessionInput 是开启一次建议对话所需的输入。
type StartSessionInput struct {
	// RecordID 非空时会话围绕这条已保存的记录展开。
	RecordID *uint
	// Form 携带保存前表单的部分填写值，供自由倾诉模式做语境。
	Form *FormSnapshot
	// FreeForm 为 true 时进入自由倾诉模式。
	FreeForm bool
}

// SessionReply 是一个回合的输出。
type SessionReply struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
	// ShouldEnd 提示前端对话已达到建议结束的回合数。
	ShouldEnd bool `json:"shouldEnd"`
	Turns     int  `json:"turns"`
}

// SessionSummary 是结束会话时返回的总结。
type SessionSummary struct {
	SessionID   string `json:"sessionId"`
	FinalAdvice string `json:"finalAdvice"`
	Turns       int    `json:"turns"`
}

// SessionInfo 描述一个会话的当前状态。
type SessionInfo struct {
	SessionID   string     `json:"sessionId"`
	Status      string     `json:"status"`
	Turns       int        `json:"turns"`
	FreeForm    bool       `json:"freeForm"`
	CreatedAt   time.Time  `json:"createdAt"`
	EndedAt     *time.Time `json:"endedAt,omitempty"`
	FinalAdvice *string    `json:"finalAdvice,omitempty"`
}

// ChatService 管理建议对话的完整生命周期。
type ChatService interface {
	Start(ctx context.Context, user *model.User, input StartSessionInput) (*SessionReply, error)
	PostMessage(ctx context.Context, userID uint, sessionID, content string) (*SessionReply, error)
	End(ctx context.Context, userID uint, sessionID string) (*SessionSummary, error)
	Info(userID uint, sessionID string) (*SessionInfo, error)
}

type chatService struct {
	sessionRepo  repository.ChatSessionRepository
	recordRepo   repository.RecordRepository
	statsService StatsService
	llmClient    llm.Client
	registry     *sessionRegistry
	endThreshold int
}

// NewChatService 创建一个新的 ChatService 实例，并启动会话清理协程。
func NewChatService(
	sessionRepo repository.ChatSessionRepository,
	recordRepo repository.RecordRepository,
	statsService StatsService,
	llmClient llm.Client,
	endThreshold int,
	sessionTTL time.Duration,
) ChatService {
	if endThreshold <= 0 {
		endThreshold = defaultEndThreshold
	}
	registry := newSessionRegistry()
	if sessionTTL > 0 {
		registry.StartJanitor(sessionTTL)
	}
	return &chatService{
		sessionRepo:  sessionRepo,
		recordRepo:   recordRepo,
		statsService: statsService,
		llmClient:    llmClient,
		registry:     registry,
		endThreshold: endThreshold,
	}
}

// Start 开启一次新的建议对话：构建系统提示词，取得开场白，落库并注册内存会话。
func (s *chatService) Start(ctx context.Context, user *model.User, input StartSessionInput) (*SessionReply, error) {
	grounding, err := s.buildGrounding(ctx, user.ID, input)
	if err != nil {
		return nil, err
	}

	systemPrompt := buildSessionPrompt(user.Profile.Data(), grounding, input.FreeForm)
	messages := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: model.RoleUser, Content: buildOpeningQuestion(input.FreeForm)},
	}

	opening, err := s.llmClient.Complete(ctx, messages, nil)
	if err != nil {
		return nil, fmt.Errorf("获取开场白失败: %w", err)
	}

	sessionID := uuid.NewString()
	now := time.Now()
	session := &model.ChatSession{
		ID:               sessionID,
		UserID:           user.ID,
		RecordID:         input.RecordID,
		ConversationMode: input.FreeForm,
		Messages: []model.ChatMessage{
			{Role: model.RoleAssistant, Content: opening, Timestamp: now},
		},
		MessageCount: 1,
		Status:       model.SessionActive,
	}
	if err := s.sessionRepo.Create(session); err != nil {
		return nil, err
	}

	s.registry.Put(sessionID, &liveSession{
		userID: user.ID,
		messages: append(messages[:1:1],
			llm.Message{Role: model.RoleAssistant, Content: opening}),
		assistantTurns: 1,
		freeForm:       input.FreeForm,
	})

	log.Infow("建议对话已开启", "sessionId", sessionID, "userId", user.ID, "freeForm", input.FreeForm)
	return &SessionReply{
		SessionID: sessionID,
		Message:   opening,
		ShouldEnd: false,
		Turns:     1,
	}, nil
}

// PostMessage 处理一个用户回合：追加上下文、调用模型、落库完整回合。
// 调用失败时内存上下文回滚到回合开始前的状态，不落库任何内容。
func (s *chatService) PostMessage(ctx context.Context, userID uint, sessionID, content string) (*SessionReply, error) {
	live, err := s.lookup(userID, sessionID)
	if err != nil {
		return nil, err
	}

	live.mu.Lock()
	defer live.mu.Unlock()
	live.touch()

	base := len(live.messages)
	live.messages = append(live.messages, llm.Message{Role: model.RoleUser, Content: content})

	reply, err := s.llmClient.Complete(ctx, live.messages, nil)
	if err != nil {
		live.messages = live.messages[:base]
		return nil, fmt.Errorf("对话回合失败: %w", err)
	}

	live.messages = append(live.messages, llm.Message{Role: model.RoleAssistant, Content: reply})
	live.assistantTurns++

	now := time.Now()
	userMsg := model.ChatMessage{Role: model.RoleUser, Content: content, Timestamp: now}
	assistantMsg := model.ChatMessage{Role: model.RoleAssistant, Content: reply, Timestamp: now}
	if err := s.sessionRepo.AppendTurn(sessionID, userMsg, assistantMsg, live.assistantTurns); err != nil {
		// 落库失败不回滚内存态，对话仍可继续，记录错误待人工核对
		log.Errorf("会话回合落库失败: sessionId=%s, error=%v", sessionID, err)
	}

	return &SessionReply{
		SessionID: sessionID,
		Message:   reply,
		ShouldEnd: live.assistantTurns >= s.endThreshold,
		Turns:     live.assistantTurns,
	}, nil
}

// End 结束会话：取得最终建议，落库收尾并移除内存会话。
func (s *chatService) End(ctx context.Context, userID uint, sessionID string) (*SessionSummary, error) {
	live, err := s.lookup(userID, sessionID)
	if err != nil {
		return nil, err
	}

	live.mu.Lock()
	defer live.mu.Unlock()

	closing := append(append([]llm.Message{}, live.messages...),
		llm.Message{Role: model.RoleUser, Content: buildClosingInstruction(live.freeForm)})

	advice, err := s.llmClient.Complete(ctx, closing, nil)
	if err != nil {
		return nil, fmt.Errorf("生成最终建议失败: %w", err)
	}

	if err := s.sessionRepo.End(sessionID, advice, time.Now()); err != nil {
		if errors.Is(err, repository.ErrSessionEnded) {
			// 并发的另一次 End 先完成了状态迁移
			s.registry.Remove(sessionID)
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	s.registry.Remove(sessionID)

	log.Infow("建议对话已结束", "sessionId", sessionID, "turns", live.assistantTurns)
	return &SessionSummary{
		SessionID:   sessionID,
		FinalAdvice: advice,
		Turns:       live.assistantTurns,
	}, nil
}

// Info 返回会话的持久化状态，进程重启后仍可查询历史会话。
func (s *chatService) Info(userID uint, sessionID string) (*SessionInfo, error) {
	session, err := s.sessionRepo.FindByID(sessionID)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	if session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return &SessionInfo{
		SessionID:   session.ID,
		Status:      session.Status,
		Turns:       session.MessageCount,
		FreeForm:    session.ConversationMode,
		CreatedAt:   session.CreatedAt,
		EndedAt:     session.EndedAt,
		FinalAdvice: session.FinalAdvice,
	}, nil
}

// lookup 在内存注册表中定位会话并校验归属。
func (s *chatService) lookup(userID uint, sessionID string) (*liveSession, error) {
	live, ok := s.registry.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if live.userID != userID {
		return nil, ErrSessionNotFound
	}
	return live, nil
}

// buildGrounding 决定会话的提示词数据来源：已保存的记录优先，
// 其次是填写中的表单快照，都没有时退回历史统计快照。
func (s *chatService) buildGrounding(ctx context.Context, userID uint, input StartSessionInput) (Grounding, error) {
	if input.RecordID != nil {
		record, err := s.recordRepo.FindByID(*input.RecordID)
		if err != nil {
			return Grounding{}, ErrRecordNotFound
		}
		if record.UserID != userID {
			return Grounding{}, ErrRecordNotFound
		}
		return Grounding{Record: record}, nil
	}

	if input.Form != nil {
		return Grounding{Form: input.Form}, nil
	}

	snap, err := s.statsService.Snapshot(ctx, userID)
	if err != nil {
		log.Warnf("读取统计快照失败，会话将不携带历史统计: userId=%d, error=%v", userID, err)
		return Grounding{}, nil
	}
	return Grounding{Snapshot: snap}, nil
}
