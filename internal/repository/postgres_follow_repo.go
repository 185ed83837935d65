package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/pickvote/internal/model"
)

// PostgresFollowRepo はPostgreSQLを使用したフォローリポジトリ。
type PostgresFollowRepo struct {
	db *sql.DB
}

// NewPostgresFollowRepo はPostgresFollowRepoを生成する。
func NewPostgresFollowRepo(db *sql.DB) *PostgresFollowRepo {
	return &PostgresFollowRepo{db: db}
}

// FindByUsers は(from, to)ペアのフォローエッジを取得する。見つからない場合はnilを返す。
func (r *PostgresFollowRepo) FindByUsers(ctx context.Context, fromUserID, toUserID string) (*model.Follow, error) {
	follow := &model.Follow{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, from_user_id, to_user_id, created_at
		 FROM follows WHERE from_user_id = $1 AND to_user_id = $2`,
		fromUserID, toUserID,
	).Scan(&follow.ID, &follow.FromUserID, &follow.ToUserID, &follow.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find follow: %w", err)
	}

	return follow, nil
}

// Create はフォローエッジを作成する。
// 同一ペアの重複はUNIQUE(from_user_id, to_user_id)が最終的に防ぎ、
// 違反時はErrDuplicateKeyを返す。
func (r *PostgresFollowRepo) Create(ctx context.Context, follow *model.Follow) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO follows (id, from_user_id, to_user_id, created_at)
		 VALUES ($1, $2, $3, $4)`,
		follow.ID, follow.FromUserID, follow.ToUserID, follow.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("failed to insert follow: %w", err)
	}
	return nil
}

// Delete は指定IDのフォローエッジを削除する。
func (r *PostgresFollowRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM follows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete follow: %w", err)
	}
	return nil
}

// ListFollowers は指定ユーザーをフォローしているユーザーの一覧を返す。
func (r *PostgresFollowRepo) ListFollowers(ctx context.Context, userID string, limit, offset int) ([]model.FollowUser, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT f.id, u.user_id, u.nickname, f.created_at
		 FROM follows f
		 JOIN users u ON u.user_id = f.from_user_id
		 WHERE f.to_user_id = $1
		 ORDER BY f.created_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list followers: %w", err)
	}
	defer rows.Close()

	return scanFollowUsers(rows)
}

// ListFollowing は指定ユーザーがフォローしているユーザーの一覧を返す。
func (r *PostgresFollowRepo) ListFollowing(ctx context.Context, userID string, limit, offset int) ([]model.FollowUser, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT f.id, u.user_id, u.nickname, f.created_at
		 FROM follows f
		 JOIN users u ON u.user_id = f.to_user_id
		 WHERE f.from_user_id = $1
		 ORDER BY f.created_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list following: %w", err)
	}
	defer rows.Close()

	return scanFollowUsers(rows)
}

// scanFollowUsers は検索結果行をFollowUserのスライスに変換する。
func scanFollowUsers(rows *sql.Rows) ([]model.FollowUser, error) {
	var users []model.FollowUser
	for rows.Next() {
		var fu model.FollowUser
		if err := rows.Scan(&fu.FollowID, &fu.UserID, &fu.Nickname, &fu.FollowedAt); err != nil {
			return nil, fmt.Errorf("failed to scan follow user: %w", err)
		}
		users = append(users, fu)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate follow users: %w", err)
	}
	return users, nil
}

// compile-time interface check
var _ FollowRepository = (*PostgresFollowRepo)(nil)
