package service

import (
	"context"
	"testing"

	"smiling-nurse-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeUserRepo 把用户保存在内存 map 中。
type fakeUserRepo struct {
	users map[uint]*model.User
}

func newFakeUserRepo(users ...*model.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[uint]*model.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (r *fakeUserRepo) Create(user *model.User) error {
	if user.ID == 0 {
		user.ID = uint(len(r.users) + 1)
	}
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) FindByUsername(username string) (*model.User, error) {
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) FindByID(userID uint) (*model.User, error) {
	u, ok := r.users[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) UpdateProfile(userID uint, profile model.Profile) error {
	return nil
}

func TestAnalyzeDailyIdempotent(t *testing.T) {
	recordRepo := newFakeRecordRepo()
	require.NoError(t, recordRepo.Create(&model.DailyRecord{
		UserID: 1, WorkType: model.WorkTypeFixed, StressLevel: 8,
		ScaleCode: "PSS10", ScaleTotal: 30,
	}))

	client := &fakeLLM{replies: []string{"今天压力偏高，建议睡前做放松练习。"}}
	svc := NewAnalysisService(newFakeUserRepo(testUser()), recordRepo, &statsStub{}, client)

	analysis, err := svc.AnalyzeDaily(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "今天压力偏高，建议睡前做放松练习。", analysis)
	assert.Len(t, client.calls, 1)

	// 分析文本已回填到记录上
	stored, err := recordRepo.FindByID(1)
	require.NoError(t, err)
	require.NotNil(t, stored.AIAnalysis)

	// 再次调用直接返回已有文本，不再请求模型
	again, err := svc.AnalyzeDaily(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, analysis, again)
	assert.Len(t, client.calls, 1)
}

func TestAnalyzeDailyOwnership(t *testing.T) {
	recordRepo := newFakeRecordRepo()
	require.NoError(t, recordRepo.Create(&model.DailyRecord{UserID: 99, WorkType: model.WorkTypeFixed}))

	svc := NewAnalysisService(newFakeUserRepo(testUser()), recordRepo, &statsStub{}, &fakeLLM{})
	_, err := svc.AnalyzeDaily(context.Background(), 1, 1)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestAnalyzeDailyMissingRecord(t *testing.T) {
	svc := NewAnalysisService(newFakeUserRepo(testUser()), newFakeRecordRepo(), &statsStub{}, &fakeLLM{})
	_, err := svc.AnalyzeDaily(context.Background(), 1, 42)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestAnalyzeStatisticsNoRecords(t *testing.T) {
	svc := NewAnalysisService(newFakeUserRepo(testUser()), newFakeRecordRepo(), &statsStub{}, &fakeLLM{})
	_, err := svc.AnalyzeStatistics(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNoRecords)
}

func TestAnalyzeStatisticsPromptContent(t *testing.T) {
	recordRepo := newFakeRecordRepo()
	require.NoError(t, recordRepo.Create(&model.DailyRecord{
		UserID: 1, WorkType: model.WorkTypeFixed, StressLevel: 6, WorkIntensity: 7,
		ScaleCode: "PHQ9", ScaleTotal: 12,
	}))

	client := &fakeLLM{replies: []string{"最近两周压力呈上升趋势。"}}
	svc := NewAnalysisService(newFakeUserRepo(testUser()), recordRepo, &statsStub{}, client)

	analysis, err := svc.AnalyzeStatistics(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "最近两周压力呈上升趋势。", analysis)

	require.Len(t, client.calls, 1)
	prompt := client.calls[0][0].Content
	assert.Contains(t, prompt, "抑郁症筛查量表")
	assert.Contains(t, prompt, "王护士")
}
