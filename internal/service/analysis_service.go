package service

import (
	"context"
	"errors"
	"fmt"

	"smiling-nurse-go/internal/model"
	"smiling-nurse-go/internal/repository"
	"smiling-nurse-go/pkg/llm"
	"smiling-nurse-go/pkg/log"
)

// ErrNoRecords 表示用户还没有任何记录，无法做趋势分析。
var ErrNoRecords = errors.New("暂无记录，无法生成分析")

// AnalysisService 基于记录数据生成 AI 健康分析。
type AnalysisService interface {
	// AnalyzeDaily 对单条记录生成分析文本。同一条记录只生成一次，
	// 重复调用直接返回已有文本，不再请求模型。
	AnalyzeDaily(ctx context.Context, userID, recordID uint) (string, error)
	// AnalyzeStatistics 基于历史记录与统计快照生成趋势分析。
	AnalyzeStatistics(ctx context.Context, userID uint) (string, error)
}

type analysisService struct {
	userRepo     repository.UserRepository
	recordRepo   repository.RecordRepository
	statsService StatsService
	llmClient    llm.Client
}

// NewAnalysisService 创建一个新的 AnalysisService 实例。
func NewAnalysisService(
	userRepo repository.UserRepository,
	recordRepo repository.RecordRepository,
	statsService StatsService,
	llmClient llm.Client,
) AnalysisService {
	return &analysisService{
		userRepo:     userRepo,
		recordRepo:   recordRepo,
		statsService: statsService,
		llmClient:    llmClient,
	}
}

// AnalyzeDaily 生成或返回单条记录的分析文本。
func (s *analysisService) AnalyzeDaily(ctx context.Context, userID, recordID uint) (string, error) {
	record, err := s.recordRepo.FindByID(recordID)
	if err != nil {
		return "", ErrRecordNotFound
	}
	if record.UserID != userID {
		return "", ErrRecordNotFound
	}

	// 幂等：已有分析文本直接返回
	if record.AIAnalysis != nil && *record.AIAnalysis != "" {
		return *record.AIAnalysis, nil
	}

	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return "", err
	}

	prompt := buildDailyAnalysisPrompt(user.Profile.Data(), record)
	analysis, err := s.llmClient.Complete(ctx, []llm.Message{
		{Role: model.RoleUser, Content: prompt},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("生成健康分析失败: %w", err)
	}

	if err := s.recordRepo.SetAIAnalysis(recordID, analysis); err != nil {
		if errors.Is(err, repository.ErrAnalysisExists) {
			// 并发请求下另一次调用先完成了回填，读出已落库的文本
			stored, refetchErr := s.recordRepo.FindByID(recordID)
			if refetchErr == nil && stored.AIAnalysis != nil {
				return *stored.AIAnalysis, nil
			}
		}
		log.Errorf("回填分析文本失败: recordId=%d, error=%v", recordID, err)
		return analysis, nil
	}
	return analysis, nil
}

// AnalyzeStatistics 生成跨记录的趋势分析文本。
func (s *analysisService) AnalyzeStatistics(ctx context.Context, userID uint) (string, error) {
	records, err := s.recordRepo.FindByUser(userID)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", ErrNoRecords
	}

	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return "", err
	}

	snap, err := s.statsService.Snapshot(ctx, userID)
	if err != nil {
		log.Warnf("读取统计快照失败，趋势分析将只基于记录列表: userId=%d, error=%v", userID, err)
		snap = nil
	}

	prompt := buildStatisticsPrompt(user.Profile.Data(), records, snap)
	analysis, err := s.llmClient.Complete(ctx, []llm.Message{
		{Role: model.RoleUser, Content: prompt},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("生成趋势分析失败: %w", err)
	}
	return analysis, nil
}
