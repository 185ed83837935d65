// Package pick は投票へのピック（選択肢の選択）のドメインロジックを提供する。
package pick

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/pickvote/internal/model"
	"github.com/hitoshi/pickvote/internal/repository"
)

// Metrics はピック数の計測インターフェース。
type Metrics interface {
	RecordPickCast()
}

// Service はピックのサービス層。
//
// 単一ピック投票では既存ピックを同一トランザクションで差し替え、
// 複数ピック投票では同一選択肢への重複のみ拒否する。
// クローズ済み投票へのピックはVOTE_EXPIREDで失敗する。
type Service struct {
	voteRepo repository.VoteRepository
	pickRepo repository.PickRepository
	metrics  Metrics
	// テストで時刻を固定するためのフック。nilの場合はtime.Nowを使用する。
	now func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// metricsはnilを許容する（テスト用）。
func NewService(voteRepo repository.VoteRepository, pickRepo repository.PickRepository, metrics Metrics) *Service {
	return &Service{
		voteRepo: voteRepo,
		pickRepo: pickRepo,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Cast はユーザーのピックを登録する。
//
// 投票が存在しない場合はVOTE_NOT_FOUND、クローズ済みの場合はVOTE_EXPIRED、
// 選択肢が投票に属さない場合はOPTION_NOT_FOUNDで失敗する。
// 単一ピック投票では同一投票内の既存ピックを削除して差し替える。
// 複数ピック投票では同一選択肢への重複ピックをDUPLICATE_PICKで拒否する。
func (s *Service) Cast(ctx context.Context, userID, voteID, optionID string) (*model.Pick, error) {
	vote, err := s.voteRepo.FindByID(ctx, voteID)
	if err != nil {
		return nil, fmt.Errorf("failed to find vote: %w", err)
	}
	if vote == nil {
		return nil, model.NewVoteNotFoundError(voteID)
	}
	if vote.IsClosed(s.now()) {
		return nil, model.NewVoteExpiredError(voteID)
	}

	option, err := s.voteRepo.FindOption(ctx, optionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find option: %w", err)
	}
	if option == nil || option.VoteID != voteID {
		return nil, model.NewOptionNotFoundError(optionID)
	}

	pick := &model.Pick{
		ID:        uuid.New().String(),
		UserID:    userID,
		OptionID:  optionID,
		CreatedAt: s.now(),
	}

	if vote.IsMultiPick {
		// 複数ピック: 同一選択肢への重複のみ拒否。
		// 事前チェックは行わず、一意制約の裁定に委ねる。
		if err := s.pickRepo.Create(ctx, pick); err != nil {
			if errors.Is(err, repository.ErrDuplicateKey) {
				return nil, model.NewDuplicatePickError()
			}
			return nil, fmt.Errorf("failed to create pick: %w", err)
		}
	} else {
		// 単一ピック: 同一投票内の既存ピックを削除して差し替える
		if err := s.pickRepo.ReplaceForVote(ctx, voteID, pick); err != nil {
			return nil, fmt.Errorf("failed to replace pick: %w", err)
		}
	}

	if s.metrics != nil {
		s.metrics.RecordPickCast()
	}

	slog.Info("pick cast",
		slog.String("user_id", userID),
		slog.String("vote_id", voteID),
		slog.String("option_id", optionID),
	)
	return pick, nil
}

// Results は投票の選択肢ごとのピック集計を選択肢作成順で返す。
func (s *Service) Results(ctx context.Context, voteID string) ([]model.OptionResult, error) {
	vote, err := s.voteRepo.FindByID(ctx, voteID)
	if err != nil {
		return nil, fmt.Errorf("failed to find vote: %w", err)
	}
	if vote == nil {
		return nil, model.NewVoteNotFoundError(voteID)
	}

	results, err := s.pickRepo.ResultsByVote(ctx, voteID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate picks: %w", err)
	}
	return results, nil
}
