package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"smiling-nurse-go/internal/model"
	"smiling-nurse-go/internal/repository"
	"smiling-nurse-go/pkg/llm"
	"smiling-nurse-go/pkg/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// fakeLLM 按脚本返回回复，并记录每次调用收到的消息上下文。
type fakeLLM struct {
	replies []string
	err     error
	calls   [][]llm.Message
}

func (f *fakeLLM) Complete(ctx context.Context, messages []llm.Message, gen *llm.GenerationParams) (string, error) {
	copied := make([]llm.Message, len(messages))
	copy(copied, messages)
	f.calls = append(f.calls, copied)
	if f.err != nil {
		return "", f.err
	}
	idx := len(f.calls) - 1
	if idx < len(f.replies) {
		return f.replies[idx], nil
	}
	return "好的，我明白了。今天感觉怎么样？", nil
}

// fakeSessionRepo 把会话保存在内存 map 中。
type fakeSessionRepo struct {
	sessions map[string]*model.ChatSession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*model.ChatSession)}
}

func (r *fakeSessionRepo) Create(session *model.ChatSession) error {
	r.sessions[session.ID] = session
	return nil
}

func (r *fakeSessionRepo) FindByID(sessionID string) (*model.ChatSession, error) {
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return s, nil
}

func (r *fakeSessionRepo) AppendTurn(sessionID string, userMsg, assistantMsg model.ChatMessage, messageCount int) error {
	s, ok := r.sessions[sessionID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.Messages = append(s.Messages, userMsg, assistantMsg)
	s.MessageCount = messageCount
	return nil
}

func (r *fakeSessionRepo) End(sessionID string, finalAdvice string, endedAt time.Time) error {
	s, ok := r.sessions[sessionID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if s.Status != model.SessionActive {
		return repository.ErrSessionEnded
	}
	s.FinalAdvice = &finalAdvice
	s.Status = model.SessionEnded
	s.EndedAt = &endedAt
	return nil
}

// fakeRecordRepo 把记录保存在内存 map 中。
type fakeRecordRepo struct {
	records map[uint]*model.DailyRecord
}

func newFakeRecordRepo() *fakeRecordRepo {
	return &fakeRecordRepo{records: make(map[uint]*model.DailyRecord)}
}

func (r *fakeRecordRepo) Create(record *model.DailyRecord) error {
	if record.ID == 0 {
		record.ID = uint(len(r.records) + 1)
	}
	r.records[record.ID] = record
	return nil
}

func (r *fakeRecordRepo) FindByID(recordID uint) (*model.DailyRecord, error) {
	rec, ok := r.records[recordID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return rec, nil
}

func (r *fakeRecordRepo) FindByUser(userID uint) ([]model.DailyRecord, error) {
	var out []model.DailyRecord
	for _, rec := range r.records {
		if rec.UserID == userID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (r *fakeRecordRepo) SetAIAnalysis(recordID uint, analysis string) error {
	rec, ok := r.records[recordID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if rec.AIAnalysis != nil {
		return repository.ErrAnalysisExists
	}
	rec.AIAnalysis = &analysis
	return nil
}

func testUser() *model.User {
	return &model.User{
		ID:       1,
		Username: "nurse01",
		Profile: datatypes.NewJSONType(model.Profile{
			Name:       "王护士",
			Age:        29,
			Gender:     "女",
			Department: "ICU",
		}),
	}
}

func newTestChatService(client llm.Client, recordRepo *fakeRecordRepo, sessionRepo *fakeSessionRepo) ChatService {
	return NewChatService(sessionRepo, recordRepo, &statsStub{}, client, 6, 0)
}

// statsStub 实现 StatsService，供不关心统计内容的测试使用。
type statsStub struct{}

func (s *statsStub) Process(ctx context.Context, task tasks.RecordCreatedTask) error { return nil }

func (s *statsStub) Snapshot(ctx context.Context, userID uint) (*StatsSnapshot, error) {
	return &StatsSnapshot{
		AvgScaleTotals: map[string]float64{},
		BandCounts:     map[string]int{},
		LastScaleBand:  map[string]string{},
		LastScaleTotal: map[string]int{},
	}, nil
}

func TestChatStartFreeForm(t *testing.T) {
	client := &fakeLLM{replies: []string{"你好，今天想聊点什么？"}}
	sessionRepo := newFakeSessionRepo()
	svc := newTestChatService(client, newFakeRecordRepo(), sessionRepo)

	reply, err := svc.Start(context.Background(), testUser(), StartSessionInput{FreeForm: true})
	require.NoError(t, err)
	assert.NotEmpty(t, reply.SessionID)
	assert.Equal(t, "你好，今天想聊点什么？", reply.Message)
	assert.Equal(t, 1, reply.Turns)
	assert.False(t, reply.ShouldEnd)

	// 开场白已经落库
	stored, err := sessionRepo.FindByID(reply.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionActive, stored.Status)
	assert.Len(t, stored.Messages, 1)
	assert.Equal(t, model.RoleAssistant, stored.Messages[0].Role)
	assert.True(t, stored.ConversationMode)
}

func TestChatStartWithRecordGrounding(t *testing.T) {
	recordRepo := newFakeRecordRepo()
	stress := 9
	require.NoError(t, recordRepo.Create(&model.DailyRecord{
		UserID:      1,
		Date:        time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		WorkType:    model.WorkTypeFixed,
		StressLevel: stress,
		ScaleCode:   "NURSE19",
		ScaleTotal:  65,
	}))

	client := &fakeLLM{replies: []string{"看到你的压力评分比较高，想先聊聊这个。"}}
	svc := newTestChatService(client, recordRepo, newFakeSessionRepo())

	recordID := uint(1)
	_, err := svc.Start(context.Background(), testUser(), StartSessionInput{RecordID: &recordID})
	require.NoError(t, err)

	// 系统提示词中携带了记录数据
	require.Len(t, client.calls, 1)
	systemPrompt := client.calls[0][0].Content
	assert.Contains(t, systemPrompt, "65")
	assert.Contains(t, systemPrompt, "护士职业压力量表")
	assert.Contains(t, systemPrompt, "结构化对话")
}

func TestChatStartFreeFormWithFormSnapshot(t *testing.T) {
	client := &fakeLLM{replies: []string{"听起来今天压力不小，想先聊聊吗？"}}
	svc := newTestChatService(client, newFakeRecordRepo(), newFakeSessionRepo())

	stress := 9
	sleepH := 4
	sleepM := 30
	notes := "夜班后睡不着"
	_, err := svc.Start(context.Background(), testUser(), StartSessionInput{
		FreeForm: true,
		Form: &FormSnapshot{
			StressLevel:  &stress,
			SleepHours:   &sleepH,
			SleepMinutes: &sleepM,
			Notes:        &notes,
		},
	})
	require.NoError(t, err)

	// 填写中的表单值进入了系统提示词
	require.Len(t, client.calls, 1)
	systemPrompt := client.calls[0][0].Content
	assert.Contains(t, systemPrompt, "填写中的记录")
	assert.Contains(t, systemPrompt, "压力等级: 9/10")
	assert.Contains(t, systemPrompt, "睡眠时长: 4.5 小时")
	assert.Contains(t, systemPrompt, "夜班后睡不着")
	assert.Contains(t, systemPrompt, "自由倾诉")
}

func TestChatStartFreeFormWithoutForm(t *testing.T) {
	client := &fakeLLM{}
	svc := newTestChatService(client, newFakeRecordRepo(), newFakeSessionRepo())

	_, err := svc.Start(context.Background(), testUser(), StartSessionInput{FreeForm: true})
	require.NoError(t, err)

	// 没有表单快照时不渲染该节
	systemPrompt := client.calls[0][0].Content
	assert.NotContains(t, systemPrompt, "填写中的记录")
}

func TestChatStartRecordOwnership(t *testing.T) {
	recordRepo := newFakeRecordRepo()
	require.NoError(t, recordRepo.Create(&model.DailyRecord{UserID: 99, WorkType: model.WorkTypeFixed}))

	svc := newTestChatService(&fakeLLM{}, recordRepo, newFakeSessionRepo())
	recordID := uint(1)
	_, err := svc.Start(context.Background(), testUser(), StartSessionInput{RecordID: &recordID})
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestChatPostMessageUnknownSession(t *testing.T) {
	svc := newTestChatService(&fakeLLM{}, newFakeRecordRepo(), newFakeSessionRepo())
	_, err := svc.PostMessage(context.Background(), 1, "does-not-exist", "你好")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestChatTurnsAndShouldEnd(t *testing.T) {
	client := &fakeLLM{}
	sessionRepo := newFakeSessionRepo()
	svc := newTestChatService(client, newFakeRecordRepo(), sessionRepo)

	reply, err := svc.Start(context.Background(), testUser(), StartSessionInput{FreeForm: true})
	require.NoError(t, err)
	sessionID := reply.SessionID

	// 开场占 1 个回合，第 5 个用户回合后达到阈值 6
	for i := 0; i < 5; i++ {
		reply, err = svc.PostMessage(context.Background(), 1, sessionID, "最近总是睡不好")
		require.NoError(t, err)
		assert.Equal(t, i+2, reply.Turns)
		if i < 4 {
			assert.False(t, reply.ShouldEnd, "turn %d", reply.Turns)
		}
	}
	assert.True(t, reply.ShouldEnd)

	// 每个回合成对落库
	stored, err := sessionRepo.FindByID(sessionID)
	require.NoError(t, err)
	assert.Len(t, stored.Messages, 11)
	assert.Equal(t, 6, stored.MessageCount)
}

func TestChatPostMessageRollbackOnFailure(t *testing.T) {
	client := &fakeLLM{replies: []string{"你好"}}
	sessionRepo := newFakeSessionRepo()
	svc := newTestChatService(client, newFakeRecordRepo(), sessionRepo)

	reply, err := svc.Start(context.Background(), testUser(), StartSessionInput{FreeForm: true})
	require.NoError(t, err)

	// 第二次调用失败
	client.err = llm.ErrTimeout
	_, err = svc.PostMessage(context.Background(), 1, reply.SessionID, "我想聊聊")
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrTimeout)

	// 失败的回合没有落库
	stored, err := sessionRepo.FindByID(reply.SessionID)
	require.NoError(t, err)
	assert.Len(t, stored.Messages, 1)
	assert.Equal(t, 1, stored.MessageCount)

	// 失败的用户消息没有残留在上下文中：恢复后重新发送，
	// 模型收到的消息数应与首次发送一致
	client.err = nil
	_, err = svc.PostMessage(context.Background(), 1, reply.SessionID, "我想聊聊")
	require.NoError(t, err)
	lastCall := client.calls[len(client.calls)-1]
	// system + 开场白 + 本次用户消息
	assert.Len(t, lastCall, 3)
}

func TestChatEnd(t *testing.T) {
	client := &fakeLLM{replies: []string{"你好", "坚持记录，继续保持散步的习惯。"}}
	sessionRepo := newFakeSessionRepo()
	svc := newTestChatService(client, newFakeRecordRepo(), sessionRepo)

	reply, err := svc.Start(context.Background(), testUser(), StartSessionInput{FreeForm: true})
	require.NoError(t, err)

	summary, err := svc.End(context.Background(), 1, reply.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "坚持记录，继续保持散步的习惯。", summary.FinalAdvice)
	assert.Equal(t, 1, summary.Turns)

	// 自由倾诉模式的收尾指令提到坚持记录
	lastCall := client.calls[len(client.calls)-1]
	closing := lastCall[len(lastCall)-1].Content
	assert.Contains(t, closing, "坚持记录")

	// 会话状态已迁移
	stored, err := sessionRepo.FindByID(reply.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionEnded, stored.Status)
	require.NotNil(t, stored.FinalAdvice)
	require.NotNil(t, stored.EndedAt)

	// 结束后的会话不可再交互
	_, err = svc.PostMessage(context.Background(), 1, reply.SessionID, "再聊一句")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.End(context.Background(), 1, reply.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestChatEndAfterPersistedEnd(t *testing.T) {
	client := &fakeLLM{replies: []string{"你好", "先落库的最终建议。"}}
	sessionRepo := newFakeSessionRepo()
	svc := newTestChatService(client, newFakeRecordRepo(), sessionRepo)

	reply, err := svc.Start(context.Background(), testUser(), StartSessionInput{FreeForm: true})
	require.NoError(t, err)

	// 模拟并发竞争：另一次 End 已经完成了状态迁移，内存会话还未移除
	require.NoError(t, sessionRepo.End(reply.SessionID, "先落库的最终建议。", time.Now()))

	_, err = svc.End(context.Background(), 1, reply.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// 已写入的最终建议没有被第二次 End 覆盖
	stored, err := sessionRepo.FindByID(reply.SessionID)
	require.NoError(t, err)
	require.NotNil(t, stored.FinalAdvice)
	assert.Equal(t, "先落库的最终建议。", *stored.FinalAdvice)

	// 输掉竞争的一方也会清理内存会话
	_, err = svc.PostMessage(context.Background(), 1, reply.SessionID, "再聊一句")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestChatEndStructuredClosing(t *testing.T) {
	recordRepo := newFakeRecordRepo()
	require.NoError(t, recordRepo.Create(&model.DailyRecord{
		UserID: 1, WorkType: model.WorkTypeFixed, ScaleCode: "PSS10", ScaleTotal: 30,
	}))
	client := &fakeLLM{}
	svc := newTestChatService(client, recordRepo, newFakeSessionRepo())

	recordID := uint(1)
	reply, err := svc.Start(context.Background(), testUser(), StartSessionInput{RecordID: &recordID})
	require.NoError(t, err)

	_, err = svc.End(context.Background(), 1, reply.SessionID)
	require.NoError(t, err)

	lastCall := client.calls[len(client.calls)-1]
	closing := lastCall[len(lastCall)-1].Content
	assert.Contains(t, closing, "问卷结果")
}

func TestChatSessionOwnership(t *testing.T) {
	svc := newTestChatService(&fakeLLM{}, newFakeRecordRepo(), newFakeSessionRepo())
	reply, err := svc.Start(context.Background(), testUser(), StartSessionInput{FreeForm: true})
	require.NoError(t, err)

	// 其他用户访问同一会话视同不存在
	_, err = svc.PostMessage(context.Background(), 2, reply.SessionID, "你好")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.End(context.Background(), 2, reply.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestChatInfoSurvivesRegistry(t *testing.T) {
	sessionRepo := newFakeSessionRepo()
	svc := newTestChatService(&fakeLLM{}, newFakeRecordRepo(), sessionRepo)

	reply, err := svc.Start(context.Background(), testUser(), StartSessionInput{FreeForm: true})
	require.NoError(t, err)
	_, err = svc.End(context.Background(), 1, reply.SessionID)
	require.NoError(t, err)

	// 内存会话已移除，但持久化状态仍可查询
	info, err := svc.Info(1, reply.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionEnded, info.Status)
	assert.True(t, info.FreeForm)
	require.NotNil(t, info.FinalAdvice)
	assert.NotEmpty(t, *info.FinalAdvice)
}

func TestChatStartLLMFailure(t *testing.T) {
	client := &fakeLLM{err: llm.ErrUnavailable}
	sessionRepo := newFakeSessionRepo()
	svc := newTestChatService(client, newFakeRecordRepo(), sessionRepo)

	_, err := svc.Start(context.Background(), testUser(), StartSessionInput{FreeForm: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, llm.ErrUnavailable))
	// 失败的会话不落库
	assert.Empty(t, sessionRepo.sessions)
}
