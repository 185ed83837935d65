// Package vote は投票（ポール）のドメインロジックを提供する。
//
// 投票の本文は保存前にサニタイズされ、選択肢の画像リンクは
// SSRF防止ガードの検証を通過したもののみ保存される。
// 更新・削除は作成者本人のみが行える。
package vote

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/pickvote/internal/model"
	"github.com/hitoshi/pickvote/internal/repository"
	"github.com/hitoshi/pickvote/internal/security"
)

// minOptions は投票に必要な選択肢の最小数。
const minOptions = 2

// Metrics は投票作成数の計測インターフェース。
type Metrics interface {
	RecordVoteCreated()
}

// FollowChecker はフォロー関係の照会インターフェース。
// フォロワー限定公開の投票の閲覧可否判定に使用する。
type FollowChecker interface {
	IsFollowing(ctx context.Context, fromUserID, toUserID string) (bool, error)
}

// OptionInput は投票作成時の選択肢入力。
type OptionInput struct {
	Content   string
	ImageLink string
}

// CreateInput は投票作成の入力。
type CreateInput struct {
	UserID       string
	Title        string
	Content      string
	Category     model.Category
	DisplayRange model.DisplayRange
	IsMultiPick  bool
	ExpiredAt    time.Time
	Options      []OptionInput
}

// UpdateInput は投票更新の入力。
type UpdateInput struct {
	Title        string
	Content      string
	Category     model.Category
	DisplayRange model.DisplayRange
	ExpiredAt    time.Time
}

// Detail は投票の詳細表示用モデル。選択肢ごとのピック集計を含む。
type Detail struct {
	Vote    *model.Vote
	Options []model.OptionResult
	Closed  bool
}

// Service は投票のサービス層。
type Service struct {
	voteRepo  repository.VoteRepository
	pickRepo  repository.PickRepository
	sanitizer security.ContentSanitizerService
	guard     security.ImageLinkGuardService
	metrics   Metrics
	follows   FollowChecker
}

// NewService はServiceの新しいインスタンスを生成する。
// metricsとfollowsはnilを許容する（テスト用）。followsがnilの場合、
// フォロワー限定投票は作成者以外に公開されない。
func NewService(
	voteRepo repository.VoteRepository,
	pickRepo repository.PickRepository,
	sanitizer security.ContentSanitizerService,
	guard security.ImageLinkGuardService,
	metrics Metrics,
	follows FollowChecker,
) *Service {
	return &Service{
		voteRepo:  voteRepo,
		pickRepo:  pickRepo,
		sanitizer: sanitizer,
		guard:     guard,
		metrics:   metrics,
		follows:   follows,
	}
}

// Create は投票と選択肢を作成する。
// 本文はサニタイズされ、選択肢の画像リンクはSSRF防止ガードで事前検証される。
// 検証に失敗した画像リンクはIMAGE_LINK_BLOCKEDで拒否する。
func (s *Service) Create(ctx context.Context, input CreateInput) (*model.Vote, error) {
	if err := s.validateCreate(input); err != nil {
		return nil, err
	}

	now := time.Now()
	vote := &model.Vote{
		ID:           uuid.New().String(),
		UserID:       input.UserID,
		Title:        strings.TrimSpace(input.Title),
		Content:      s.sanitizer.Sanitize(input.Content),
		Category:     input.Category,
		IsMultiPick:  input.IsMultiPick,
		DisplayRange: input.DisplayRange,
		CreatedAt:    now,
		ExpiredAt:    input.ExpiredAt,
		UpdatedAt:    now,
	}

	options := make([]model.VoteOption, 0, len(input.Options))
	for _, o := range input.Options {
		options = append(options, model.VoteOption{
			ID:        uuid.New().String(),
			VoteID:    vote.ID,
			Content:   strings.TrimSpace(o.Content),
			ImageLink: o.ImageLink,
			CreatedAt: now,
		})
	}

	if err := s.voteRepo.CreateWithOptions(ctx, vote, options); err != nil {
		return nil, fmt.Errorf("failed to create vote: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordVoteCreated()
	}

	slog.Info("vote created",
		slog.String("vote_id", vote.ID),
		slog.String("user_id", vote.UserID),
		slog.String("category", string(vote.Category)),
	)
	return vote, nil
}

// Get は投票の詳細を選択肢ごとのピック集計付きで取得する。
// 公開範囲がprivateの投票は作成者本人、followerの投票は作成者本人と
// そのフォロワーのみが閲覧できる。
func (s *Service) Get(ctx context.Context, voteID, viewerID string) (*Detail, error) {
	vote, err := s.voteRepo.FindByID(ctx, voteID)
	if err != nil {
		return nil, fmt.Errorf("failed to find vote: %w", err)
	}
	if vote == nil {
		return nil, model.NewVoteNotFoundError(voteID)
	}
	if err := s.authorizeView(ctx, vote, viewerID); err != nil {
		return nil, err
	}

	results, err := s.pickRepo.ResultsByVote(ctx, voteID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate picks: %w", err)
	}

	return &Detail{
		Vote:    vote,
		Options: results,
		Closed:  vote.IsClosed(time.Now()),
	}, nil
}

// authorizeView は公開範囲に基づいて閲覧可否を判定する。
// 閲覧できない投票は存在自体を秘匿するためVOTE_NOT_FOUNDを返す。
func (s *Service) authorizeView(ctx context.Context, vote *model.Vote, viewerID string) error {
	if vote.UserID == viewerID {
		return nil
	}

	switch vote.DisplayRange {
	case model.DisplayRangePublic:
		return nil
	case model.DisplayRangeFollower:
		if s.follows == nil {
			return model.NewVoteNotFoundError(vote.ID)
		}
		following, err := s.follows.IsFollowing(ctx, viewerID, vote.UserID)
		if err != nil {
			return fmt.Errorf("failed to check follow relation: %w", err)
		}
		if following {
			return nil
		}
	}

	return model.NewVoteNotFoundError(vote.ID)
}

// Update は投票のタイトル・本文・カテゴリ・公開範囲・期限を更新する。
// 作成者本人以外による更新はOWNERSHIP_MISMATCHで失敗し、何も変更しない。
func (s *Service) Update(ctx context.Context, voteID, actorID string, input UpdateInput) (*model.Vote, error) {
	vote, err := s.voteRepo.FindByID(ctx, voteID)
	if err != nil {
		return nil, fmt.Errorf("failed to find vote: %w", err)
	}
	if vote == nil {
		return nil, model.NewVoteNotFoundError(voteID)
	}
	if vote.UserID != actorID {
		return nil, model.NewOwnershipMismatchError()
	}

	if strings.TrimSpace(input.Title) == "" {
		return nil, model.NewInvalidVoteError("タイトルは必須です")
	}
	if !model.ValidCategory(input.Category) {
		return nil, model.NewInvalidCategoryError(string(input.Category))
	}
	if !model.ValidDisplayRange(input.DisplayRange) {
		return nil, model.NewInvalidVoteError(fmt.Sprintf("無効な公開範囲です: %s", input.DisplayRange))
	}

	vote.Title = strings.TrimSpace(input.Title)
	vote.Content = s.sanitizer.Sanitize(input.Content)
	vote.Category = input.Category
	vote.DisplayRange = input.DisplayRange
	vote.ExpiredAt = input.ExpiredAt
	vote.UpdatedAt = time.Now()

	if err := s.voteRepo.Update(ctx, vote); err != nil {
		return nil, fmt.Errorf("failed to update vote: %w", err)
	}

	slog.Info("vote updated", slog.String("vote_id", voteID), slog.String("user_id", actorID))
	return vote, nil
}

// Delete は投票を削除する。選択肢・ピック・コメントはスキーマのCASCADEで削除される。
// 作成者本人以外による削除はOWNERSHIP_MISMATCHで失敗する。
func (s *Service) Delete(ctx context.Context, voteID, actorID string) error {
	vote, err := s.voteRepo.FindByID(ctx, voteID)
	if err != nil {
		return fmt.Errorf("failed to find vote: %w", err)
	}
	if vote == nil {
		return model.NewVoteNotFoundError(voteID)
	}
	if vote.UserID != actorID {
		return model.NewOwnershipMismatchError()
	}

	if err := s.voteRepo.Delete(ctx, voteID); err != nil {
		return fmt.Errorf("failed to delete vote: %w", err)
	}

	slog.Info("vote deleted", slog.String("vote_id", voteID), slog.String("user_id", actorID))
	return nil
}

// ListByCategory はカテゴリ内の投票一覧を新着順で返す。
// categoryが空の場合は全カテゴリを対象とする。一覧には全体公開の投票のみが含まれる。
func (s *Service) ListByCategory(ctx context.Context, category model.Category, limit, offset int) ([]*model.Vote, error) {
	if category != "" && !model.ValidCategory(category) {
		return nil, model.NewInvalidCategoryError(string(category))
	}

	votes, err := s.voteRepo.ListByCategory(ctx, category, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}
	return votes, nil
}

// ListPopular は投票一覧を人気順（関連ピック数の降順）で返す。
// ピック数が同数の投票は投票ID昇順で順序を安定させる。一覧には全体公開の投票のみが含まれる。
func (s *Service) ListPopular(ctx context.Context, category model.Category, limit, offset int) ([]*model.Vote, error) {
	if category != "" && !model.ValidCategory(category) {
		return nil, model.NewInvalidCategoryError(string(category))
	}

	votes, err := s.voteRepo.ListPopular(ctx, category, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list popular votes: %w", err)
	}
	return votes, nil
}

// Search はタイトル・本文・投稿者ニックネームによる部分一致検索を行う。
// 検索対象は全体公開の投票のみ。
func (s *Service) Search(ctx context.Context, kind model.SearchKind, keyword string, limit int) ([]*model.Vote, error) {
	if !model.ValidSearchKind(kind) {
		return nil, model.NewInvalidVoteError(fmt.Sprintf("無効な検索種別です: %s", kind))
	}
	if strings.TrimSpace(keyword) == "" {
		return []*model.Vote{}, nil
	}

	votes, err := s.voteRepo.Search(ctx, kind, strings.TrimSpace(keyword), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search votes: %w", err)
	}
	return votes, nil
}

// validateCreate は投票作成の入力を検証する。
func (s *Service) validateCreate(input CreateInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return model.NewInvalidVoteError("タイトルは必須です")
	}
	if !model.ValidCategory(input.Category) {
		return model.NewInvalidCategoryError(string(input.Category))
	}
	if !model.ValidDisplayRange(input.DisplayRange) {
		return model.NewInvalidVoteError(fmt.Sprintf("無効な公開範囲です: %s", input.DisplayRange))
	}
	if len(input.Options) < minOptions {
		return model.NewInvalidVoteError(fmt.Sprintf("選択肢は%d個以上必要です", minOptions))
	}
	if !input.ExpiredAt.After(time.Now()) {
		return model.NewInvalidVoteError("期限には未来の日時を指定してください")
	}

	for _, o := range input.Options {
		if strings.TrimSpace(o.Content) == "" {
			return model.NewInvalidVoteError("選択肢の内容は必須です")
		}
		if o.ImageLink == "" {
			continue
		}
		if err := s.guard.ValidateURL(o.ImageLink); err != nil {
			slog.Warn("image link rejected",
				slog.String("user_id", input.UserID),
				slog.String("error", err.Error()),
			)
			return model.NewImageLinkBlockedError()
		}
	}
	return nil
}
