// Package user はユーザー管理のドメインロジックを提供する。
//
// ユーザー解決はキャッシュアサイド方式で行う。キャッシュを先に参照し、
// ミス時は永続ストアから読み込んでキャッシュを再投入する。
// キャッシュの読み書き失敗はソフト障害として吸収し、呼び出し元には
// 決して伝播させない。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/pickvote/internal/cache"
	"github.com/hitoshi/pickvote/internal/model"
	"github.com/hitoshi/pickvote/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// CacheMetrics はキャッシュヒット率の計測インターフェース。
type CacheMetrics interface {
	RecordCacheHit()
	RecordCacheMiss()
	RecordCacheError()
}

// Service はユーザー管理のサービス層。
// キャッシュアサイドのユーザー解決、登録、プロフィール更新を提供する。
type Service struct {
	userRepo  repository.UserRepository
	userCache cache.UserCache
	metrics   CacheMetrics
}

// NewService はServiceの新しいインスタンスを生成する。
// metricsはnilを許容する（テスト用）。
func NewService(userRepo repository.UserRepository, userCache cache.UserCache, metrics CacheMetrics) *Service {
	return &Service{
		userRepo:  userRepo,
		userCache: userCache,
		metrics:   metrics,
	}
}

// Resolve はユーザーIDをユーザープロファイルに解決する。
//
// キャッシュを先に参照し、ヒットした場合はそのスナップショットを返す。
// ミスまたはキャッシュ障害の場合は永続ストアを主キーで参照し、
// 不在ならUSER_NOT_FOUNDで失敗する（終端エラー、リトライしない）。
// ストアヒット時は取得したプロファイルでキャッシュを再投入する。
//
// 解決が成功するたびにキャッシュエントリを無条件に書き直しTTLをリフレッシュする。
// 並行する解決同士の書き込みは最後勝ちとなるが、スナップショットの内容は
// いずれもストア由来であり実害はない。
// キャッシュの書き込み失敗は読み取りを失敗させない（ログのみ）。
func (s *Service) Resolve(ctx context.Context, userID string) (*model.CachedUser, error) {
	snapshot, err := s.userCache.Get(ctx, userID)
	if err == nil {
		s.recordHit()
		// ヒット時もTTLリフレッシュのため書き直す
		s.repopulate(ctx, snapshot)
		return snapshot, nil
	}

	// デシリアライズ失敗を含むあらゆるキャッシュ障害はミスとして扱い、
	// ストアへフォールバックする。
	if errors.Is(err, cache.ErrCacheMiss) {
		s.recordMiss()
	} else {
		s.recordCacheError()
		slog.Warn("user cache read failed, falling back to store",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	stored, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if stored == nil {
		return nil, model.NewUserNotFoundError(userID)
	}

	snapshot = model.SnapshotOf(stored)
	s.repopulate(ctx, snapshot)

	return snapshot, nil
}

// Register は新規ユーザーを登録する。
// 同一IDの既存ユーザーがいる場合はDUPLICATE_USERで失敗する。
// 事前チェックは最適化であり、同時登録の競合はストアの一意制約が裁定する。
func (s *Service) Register(ctx context.Context, candidate *model.User, rawPassword string) error {
	existing, err := s.userRepo.FindByID(ctx, candidate.UserID)
	if err != nil {
		return fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return model.NewDuplicateUserError(candidate.UserID)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(rawPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	candidate.PasswordHash = string(hash)
	candidate.CreatedAt = now
	candidate.UpdatedAt = now

	if err := s.userRepo.Create(ctx, candidate); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return model.NewDuplicateUserError(candidate.UserID)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered", slog.String("user_id", candidate.UserID))
	return nil
}

// UpdateProfile はニックネーム・メモ・誕生日を更新する。
// 更新後はキャッシュエントリを削除し、次回解決時に最新のスナップショットが
// 再投入されるようにする。
func (s *Service) UpdateProfile(ctx context.Context, userID, nickname, memo string, birthday *time.Time) (*model.User, error) {
	stored, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if stored == nil {
		return nil, model.NewUserNotFoundError(userID)
	}

	stored.Nickname = nickname
	stored.Memo = memo
	stored.Birthday = birthday
	stored.UpdatedAt = time.Now()

	if err := s.userRepo.UpdateProfile(ctx, stored); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	// キャッシュを無効化する。削除失敗はソフト障害（TTLで回収される）。
	if err := s.userCache.Delete(ctx, userID); err != nil {
		s.recordCacheError()
		slog.Warn("failed to invalidate user cache",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	slog.Info("user profile updated", slog.String("user_id", userID))
	return stored, nil
}

// VerifyPassword は平文パスワードをユーザーのハッシュと照合する。
func (s *Service) VerifyPassword(ctx context.Context, userID, rawPassword string) (bool, error) {
	stored, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to find user: %w", err)
	}
	if stored == nil {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(rawPassword)) == nil, nil
}

// repopulate はスナップショットをキャッシュに書き込む。
// 失敗しても解決処理は成功扱いとする（ソフト障害契約）。
func (s *Service) repopulate(ctx context.Context, snapshot *model.CachedUser) {
	if err := s.userCache.Set(ctx, snapshot); err != nil {
		s.recordCacheError()
		slog.Warn("failed to populate user cache",
			slog.String("user_id", snapshot.UserID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) recordHit() {
	if s.metrics != nil {
		s.metrics.RecordCacheHit()
	}
}

func (s *Service) recordMiss() {
	if s.metrics != nil {
		s.metrics.RecordCacheMiss()
	}
}

func (s *Service) recordCacheError() {
	if s.metrics != nil {
		s.metrics.RecordCacheError()
	}
}
