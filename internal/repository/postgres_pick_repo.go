package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/pickvote/internal/model"
)

// PostgresPickRepo はPostgreSQLを使用したピックリポジトリ。
type PostgresPickRepo struct {
	db *sql.DB
}

// NewPostgresPickRepo はPostgresPickRepoを生成する。
func NewPostgresPickRepo(db *sql.DB) *PostgresPickRepo {
	return &PostgresPickRepo{db: db}
}

// ListByUserAndVote は指定ユーザーが指定投票の選択肢に対して持つピックを返す。
func (r *PostgresPickRepo) ListByUserAndVote(ctx context.Context, userID, voteID string) ([]model.Pick, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.user_id, p.option_id, p.created_at
		 FROM picks p
		 JOIN vote_options vo ON vo.id = p.option_id
		 WHERE p.user_id = $1 AND vo.vote_id = $2
		 ORDER BY p.created_at ASC`,
		userID, voteID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list picks: %w", err)
	}
	defer rows.Close()

	var picks []model.Pick
	for rows.Next() {
		var p model.Pick
		if err := rows.Scan(&p.ID, &p.UserID, &p.OptionID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pick: %w", err)
		}
		picks = append(picks, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate picks: %w", err)
	}
	return picks, nil
}

// Create はピックを作成する。
// 同一ユーザー・同一選択肢の重複はUNIQUE(user_id, option_id)が最終的に防ぎ、
// 違反時はErrDuplicateKeyを返す。
func (r *PostgresPickRepo) Create(ctx context.Context, pick *model.Pick) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO picks (id, user_id, option_id, created_at)
		 VALUES ($1, $2, $3, $4)`,
		pick.ID, pick.UserID, pick.OptionID, pick.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("failed to insert pick: %w", err)
	}
	return nil
}

// ReplaceForVote は指定投票に対するユーザーの既存ピックを削除し、
// 新しいピックを同一トランザクションで作成する。
func (r *PostgresPickRepo) ReplaceForVote(ctx context.Context, voteID string, pick *model.Pick) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM picks
		 WHERE user_id = $1 AND option_id IN (SELECT id FROM vote_options WHERE vote_id = $2)`,
		pick.UserID, voteID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete previous picks: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO picks (id, user_id, option_id, created_at)
		 VALUES ($1, $2, $3, $4)`,
		pick.ID, pick.UserID, pick.OptionID, pick.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert pick: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ResultsByVote は投票の選択肢ごとのピック集計を選択肢作成順で返す。
func (r *PostgresPickRepo) ResultsByVote(ctx context.Context, voteID string) ([]model.OptionResult, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT vo.id, vo.content, vo.image_link, COUNT(p.id)
		 FROM vote_options vo
		 LEFT JOIN picks p ON p.option_id = vo.id
		 WHERE vo.vote_id = $1
		 GROUP BY vo.id, vo.content, vo.image_link, vo.created_at
		 ORDER BY vo.created_at ASC, vo.id ASC`,
		voteID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate picks: %w", err)
	}
	defer rows.Close()

	var results []model.OptionResult
	for rows.Next() {
		var res model.OptionResult
		if err := rows.Scan(&res.OptionID, &res.Content, &res.ImageLink, &res.PickCount); err != nil {
			return nil, fmt.Errorf("failed to scan option result: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate option results: %w", err)
	}
	return results, nil
}

// compile-time interface check
var _ PickRepository = (*PostgresPickRepo)(nil)
