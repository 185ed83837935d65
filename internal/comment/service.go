// Package comment は投票コメントといいねのドメインロジックを提供する。
//
// コメントの更新・削除は作成者本人のみが行える。所有権検証は
// いかなる書き込みよりも前に行い、不一致の場合は一切変更しない。
package comment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/pickvote/internal/model"
	"github.com/hitoshi/pickvote/internal/repository"
	"github.com/hitoshi/pickvote/internal/security"
)

// voteFinder はコメント対象の投票の存在確認に必要なリポジトリの部分集合。
type voteFinder interface {
	FindByID(ctx context.Context, id string) (*model.Vote, error)
}

// Service はコメントのサービス層。
type Service struct {
	commentRepo repository.CommentRepository
	voteRepo    voteFinder
	sanitizer   security.ContentSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(commentRepo repository.CommentRepository, voteRepo voteFinder, sanitizer security.ContentSanitizerService) *Service {
	return &Service{
		commentRepo: commentRepo,
		voteRepo:    voteRepo,
		sanitizer:   sanitizer,
	}
}

// List は投票のコメント一覧をいいね数付きでcreated_at昇順で返す。
func (s *Service) List(ctx context.Context, voteID string) ([]model.CommentWithLikes, error) {
	vote, err := s.voteRepo.FindByID(ctx, voteID)
	if err != nil {
		return nil, fmt.Errorf("failed to find vote: %w", err)
	}
	if vote == nil {
		return nil, model.NewVoteNotFoundError(voteID)
	}

	comments, err := s.commentRepo.ListByVote(ctx, voteID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}

// Save は投票へのコメントを作成する。
// 投票の存在を明示的に確認し、不在ならVOTE_NOT_FOUNDで失敗する。
// 本文は保存前にサニタイズされる。
func (s *Service) Save(ctx context.Context, voteID, authorID, content string) (*model.VoteComment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, model.NewInvalidVoteError("コメント本文は必須です")
	}

	vote, err := s.voteRepo.FindByID(ctx, voteID)
	if err != nil {
		return nil, fmt.Errorf("failed to find vote: %w", err)
	}
	if vote == nil {
		return nil, model.NewVoteNotFoundError(voteID)
	}

	now := time.Now()
	comment := &model.VoteComment{
		ID:        uuid.New().String(),
		VoteID:    voteID,
		UserID:    authorID,
		Content:   s.sanitizer.Sanitize(content),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	slog.Info("comment created",
		slog.String("comment_id", comment.ID),
		slog.String("vote_id", voteID),
		slog.String("user_id", authorID),
	)
	return comment, nil
}

// Update はコメント本文を更新する。
// 作成者本人以外による更新はOWNERSHIP_MISMATCHで失敗し、本文は変更されない。
// 投稿者と作成日時には触れない。
func (s *Service) Update(ctx context.Context, commentID, actorID, content string) (*model.VoteComment, error) {
	comment, err := s.commentRepo.FindByID(ctx, commentID)
	if err != nil {
		return nil, fmt.Errorf("failed to find comment: %w", err)
	}
	if comment == nil {
		return nil, model.NewCommentNotFoundError(commentID)
	}
	if comment.UserID != actorID {
		return nil, model.NewOwnershipMismatchError()
	}

	if strings.TrimSpace(content) == "" {
		return nil, model.NewInvalidVoteError("コメント本文は必須です")
	}

	sanitized := s.sanitizer.Sanitize(content)
	updatedAt := time.Now()
	if err := s.commentRepo.UpdateContent(ctx, commentID, sanitized, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}

	comment.Content = sanitized
	comment.UpdatedAt = updatedAt

	slog.Info("comment updated", slog.String("comment_id", commentID), slog.String("user_id", actorID))
	return comment, nil
}

// Delete はコメントを削除する。いいねはスキーマのCASCADEで削除される。
// 作成者本人以外による削除はOWNERSHIP_MISMATCHで失敗する。
func (s *Service) Delete(ctx context.Context, commentID, actorID string) error {
	comment, err := s.commentRepo.FindByID(ctx, commentID)
	if err != nil {
		return fmt.Errorf("failed to find comment: %w", err)
	}
	if comment == nil {
		return model.NewCommentNotFoundError(commentID)
	}
	if comment.UserID != actorID {
		return model.NewOwnershipMismatchError()
	}

	if err := s.commentRepo.Delete(ctx, commentID); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}

	slog.Info("comment deleted", slog.String("comment_id", commentID), slog.String("user_id", actorID))
	return nil
}

// Like はコメントへのいいねを作成する。
// 同一ユーザーによる重複いいねはDUPLICATE_LIKEで失敗する。
func (s *Service) Like(ctx context.Context, commentID, userID string) error {
	comment, err := s.commentRepo.FindByID(ctx, commentID)
	if err != nil {
		return fmt.Errorf("failed to find comment: %w", err)
	}
	if comment == nil {
		return model.NewCommentNotFoundError(commentID)
	}

	like := &model.CommentLike{
		ID:        uuid.New().String(),
		CommentID: commentID,
		UserID:    userID,
		CreatedAt: time.Now(),
	}

	if err := s.commentRepo.CreateLike(ctx, like); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return model.NewDuplicateLikeError()
		}
		return fmt.Errorf("failed to create like: %w", err)
	}

	slog.Info("comment liked", slog.String("comment_id", commentID), slog.String("user_id", userID))
	return nil
}

// Unlike はコメントへのいいねを取り消す。
// いいねが存在しない場合は何もせず成功扱いとする（冪等）。
func (s *Service) Unlike(ctx context.Context, commentID, userID string) error {
	if _, err := s.commentRepo.DeleteLike(ctx, commentID, userID); err != nil {
		return fmt.Errorf("failed to delete like: %w", err)
	}
	return nil
}
