package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/pickvote/internal/model"
)

// PostgresCommentRepo はPostgreSQLを使用したコメントリポジトリ。
type PostgresCommentRepo struct {
	db *sql.DB
}

// NewPostgresCommentRepo はPostgresCommentRepoを生成する。
func NewPostgresCommentRepo(db *sql.DB) *PostgresCommentRepo {
	return &PostgresCommentRepo{db: db}
}

// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
func (r *PostgresCommentRepo) FindByID(ctx context.Context, id string) (*model.VoteComment, error) {
	comment := &model.VoteComment{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, vote_id, user_id, content, created_at, updated_at
		 FROM vote_comments WHERE id = $1`,
		id,
	).Scan(&comment.ID, &comment.VoteID, &comment.UserID, &comment.Content,
		&comment.CreatedAt, &comment.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find comment by ID: %w", err)
	}

	return comment, nil
}

// ListByVote は投票のコメント一覧をいいね数・投稿者ニックネーム付きで返す。
func (r *PostgresCommentRepo) ListByVote(ctx context.Context, voteID string) ([]model.CommentWithLikes, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.vote_id, c.user_id, c.content, c.created_at, c.updated_at,
		        u.nickname, COUNT(cl.id)
		 FROM vote_comments c
		 JOIN users u ON u.user_id = c.user_id
		 LEFT JOIN comment_likes cl ON cl.comment_id = c.id
		 WHERE c.vote_id = $1
		 GROUP BY c.id, u.nickname
		 ORDER BY c.created_at ASC, c.id ASC`,
		voteID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var comments []model.CommentWithLikes
	for rows.Next() {
		var c model.CommentWithLikes
		if err := rows.Scan(&c.ID, &c.VoteID, &c.UserID, &c.Content,
			&c.CreatedAt, &c.UpdatedAt, &c.Nickname, &c.LikeCount); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comments: %w", err)
	}
	return comments, nil
}

// Create はコメントを作成する。
func (r *PostgresCommentRepo) Create(ctx context.Context, comment *model.VoteComment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO vote_comments (id, vote_id, user_id, content, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		comment.ID, comment.VoteID, comment.UserID, comment.Content,
		comment.CreatedAt, comment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}

// UpdateContent はコメント本文のみを更新する。投稿者・作成日時には触れない。
func (r *PostgresCommentRepo) UpdateContent(ctx context.Context, id, content string, updatedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE vote_comments SET content = $1, updated_at = $2 WHERE id = $3`,
		content, updatedAt, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("comment not found: %s", id)
	}
	return nil
}

// Delete は指定IDのコメントを削除する。いいねはCASCADE削除される。
func (r *PostgresCommentRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM vote_comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return nil
}

// CreateLike はコメントへのいいねを作成する。
// 重複はUNIQUE(comment_id, user_id)が最終的に防ぎ、違反時はErrDuplicateKeyを返す。
func (r *PostgresCommentRepo) CreateLike(ctx context.Context, like *model.CommentLike) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO comment_likes (id, comment_id, user_id, created_at)
		 VALUES ($1, $2, $3, $4)`,
		like.ID, like.CommentID, like.UserID, like.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("failed to insert comment like: %w", err)
	}
	return nil
}

// DeleteLike は指定ユーザーのいいねを削除する。削除件数を返す。
func (r *PostgresCommentRepo) DeleteLike(ctx context.Context, commentID, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM comment_likes WHERE comment_id = $1 AND user_id = $2`,
		commentID, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete comment like: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// compile-time interface check
var _ CommentRepository = (*PostgresCommentRepo)(nil)
