// Package follow はユーザー間のフォロー関係のドメインロジックを提供する。
package follow

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

// userFinder はフォロー対象の存在確認に必要なユーザーリポジトリの部分集合。
type userFinder interface {
	FindByID(ctx context.Context, userID string) (*model.User, error)
}

// ServiceConfig はフォローサービスの設定。
type ServiceConfig struct {
	PageSize    int // 一覧のデフォルト件数
	MaxPageSize int // 一覧の最大件数
}

// Service はフォロー関係のサービス層。
// 自己フォローと重複フォローは拒否する。重複チェックの最終的な裁定者は
// ストアの一意制約であり、事前チェックは競合時にすり抜けうる。
type Service struct {
	followRepo repository.FollowRepository
	userRepo   userFinder
	config     ServiceConfig
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(followRepo repository.FollowRepository, userRepo userFinder, config ServiceConfig) *Service {
	return &Service{
		followRepo: followRepo,
		userRepo:   userRepo,
		config:     config,
	}
}

// Follow はfromUserIDからtoUserIDへのフォローエッジを作成する。
// 自己フォローはSELF_FOLLOW、既存エッジがある場合はDUPLICATE_FOLLOWで失敗する。
func (s *Service) Follow(ctx context.Context, fromUserID, toUserID string) (*model.Follow, error) {
	if fromUserID == toUserID {
		return nil, model.NewSelfFollowError()
	}

	target, err := s.userRepo.FindByID(ctx, toUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find target user: %w", err)
	}
	if target == nil {
		return nil, model.NewUserNotFoundError(toUserID)
	}

	existing, err := s.followRepo.FindByUsers(ctx, fromUserID, toUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing follow: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateFollowError()
	}

	follow := &model.Follow{
		ID:         uuid.New().String(),
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		CreatedAt:  time.Now(),
	}

	if err := s.followRepo.Create(ctx, follow); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, model.NewDuplicateFollowError()
		}
		return nil, fmt.Errorf("failed to create follow: %w", err)
	}

	slog.Info("follow created",
		slog.String("from_user_id", fromUserID),
		slog.String("to_user_id", toUserID),
	)
	return follow, nil
}

// Unfollow はfromUserIDからtoUserIDへのフォローエッジを削除する。
// エッジが存在しない場合はFOLLOW_NOT_FOUNDで失敗する。
func (s *Service) Unfollow(ctx context.Context, fromUserID, toUserID string) error {
	existing, err := s.followRepo.FindByUsers(ctx, fromUserID, toUserID)
	if err != nil {
		return fmt.Errorf("failed to find follow: %w", err)
	}
	if existing == nil {
		return model.NewFollowNotFoundError()
	}

	if err := s.followRepo.Delete(ctx, existing.ID); err != nil {
		return fmt.Errorf("failed to delete follow: %w", err)
	}

	slog.Info("follow deleted",
		slog.String("from_user_id", fromUserID),
		slog.String("to_user_id", toUserID),
	)
	return nil
}

// IsFollowing はfromUserIDがtoUserIDをフォローしているかを返す。
// 投票のフォロワー限定公開の判定に使用する。
func (s *Service) IsFollowing(ctx context.Context, fromUserID, toUserID string) (bool, error) {
	existing, err := s.followRepo.FindByUsers(ctx, fromUserID, toUserID)
	if err != nil {
		return false, fmt.Errorf("failed to find follow: %w", err)
	}
	return existing != nil, nil
}

// ListFollowers は指定ユーザーをフォローしているユーザーの一覧を返す。
func (s *Service) ListFollowers(ctx context.Context, userID string, limit, offset int) ([]model.FollowUser, error) {
	limit, offset = s.clampPage(limit, offset)

	followers, err := s.followRepo.ListFollowers(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list followers: %w", err)
	}
	return followers, nil
}

// ListFollowing は指定ユーザーがフォローしているユーザーの一覧を返す。
func (s *Service) ListFollowing(ctx context.Context, userID string, limit, offset int) ([]model.FollowUser, error) {
	limit, offset = s.clampPage(limit, offset)

	following, err := s.followRepo.ListFollowing(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list following: %w", err)
	}
	return following, nil
}

// clampPage はlimit/offsetを設定の範囲内に正規化する。
func (s *Service) clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = s.config.PageSize
	}
	if limit > s.config.MaxPageSize {
		limit = s.config.MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
