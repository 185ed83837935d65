package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/pickvote/internal/model"
)

// PostgresVoteRepo はPostgreSQLを使用した投票リポジトリ。
type PostgresVoteRepo struct {
	db *sql.DB
}

// NewPostgresVoteRepo はPostgresVoteRepoを生成する。
func NewPostgresVoteRepo(db *sql.DB) *PostgresVoteRepo {
	return &PostgresVoteRepo{db: db}
}

const voteColumns = `id, user_id, title, content, category, is_multi_pick, display_range, created_at, expired_at, updated_at`

// FindByID は指定IDの投票を取得する。見つからない場合はnilを返す。
func (r *PostgresVoteRepo) FindByID(ctx context.Context, id string) (*model.Vote, error) {
	vote := &model.Vote{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+voteColumns+` FROM votes WHERE id = $1`,
		id,
	).Scan(&vote.ID, &vote.UserID, &vote.Title, &vote.Content, &vote.Category,
		&vote.IsMultiPick, &vote.DisplayRange, &vote.CreatedAt, &vote.ExpiredAt, &vote.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find vote by ID: %w", err)
	}

	return vote, nil
}

// CreateWithOptions は投票と選択肢を同一トランザクションで作成する。
func (r *PostgresVoteRepo) CreateWithOptions(ctx context.Context, vote *model.Vote, options []model.VoteOption) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO votes (`+voteColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		vote.ID, vote.UserID, vote.Title, vote.Content, vote.Category,
		vote.IsMultiPick, vote.DisplayRange, vote.CreatedAt, vote.ExpiredAt, vote.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert vote: %w", err)
	}

	for _, opt := range options {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO vote_options (id, vote_id, content, image_link, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			opt.ID, opt.VoteID, opt.Content, opt.ImageLink, opt.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert vote option: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Update は投票のタイトル・本文・カテゴリ・公開範囲・期限を更新する。
func (r *PostgresVoteRepo) Update(ctx context.Context, vote *model.Vote) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE votes SET title = $1, content = $2, category = $3, display_range = $4,
		 expired_at = $5, updated_at = $6
		 WHERE id = $7`,
		vote.Title, vote.Content, vote.Category, vote.DisplayRange,
		vote.ExpiredAt, vote.UpdatedAt, vote.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update vote: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("vote not found: %s", vote.ID)
	}
	return nil
}

// Delete は指定IDの投票を削除する。
func (r *PostgresVoteRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM votes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete vote: %w", err)
	}
	return nil
}

// ListByCategory はカテゴリ内の投票一覧をcreated_at降順で返す。
// 公開範囲がpublicの投票のみを対象とする。
func (r *PostgresVoteRepo) ListByCategory(ctx context.Context, category model.Category, limit, offset int) ([]*model.Vote, error) {
	query := `SELECT ` + voteColumns + ` FROM votes WHERE display_range = 'public'`
	args := []any{}
	if category != "" {
		query += ` AND category = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, category, limit, offset)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes by category: %w", err)
	}
	defer rows.Close()

	return scanVotes(rows)
}

// ListPopular は投票一覧を人気順（関連ピック数の降順）で返す。
// ピック数が同じ場合は投票ID昇順で順序を安定させる。
// 公開範囲がpublicの投票のみを対象とする。
func (r *PostgresVoteRepo) ListPopular(ctx context.Context, category model.Category, limit, offset int) ([]*model.Vote, error) {
	query := `SELECT v.id, v.user_id, v.title, v.content, v.category, v.is_multi_pick,
	          v.display_range, v.created_at, v.expired_at, v.updated_at
	          FROM votes v
	          LEFT JOIN vote_options vo ON vo.vote_id = v.id
	          LEFT JOIN picks p ON p.option_id = vo.id
	          WHERE v.display_range = 'public'`
	args := []any{}
	if category != "" {
		query += ` AND v.category = $1
		           GROUP BY v.id ORDER BY COUNT(p.id) DESC, v.id ASC LIMIT $2 OFFSET $3`
		args = append(args, category, limit, offset)
	} else {
		query += ` GROUP BY v.id ORDER BY COUNT(p.id) DESC, v.id ASC LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes by popularity: %w", err)
	}
	defer rows.Close()

	return scanVotes(rows)
}

// Search はタイトル・本文・投稿者ニックネームのいずれかによる部分一致検索を行う。
// 公開範囲がpublicの投票のみを対象とする。
func (r *PostgresVoteRepo) Search(ctx context.Context, kind model.SearchKind, keyword string, limit int) ([]*model.Vote, error) {
	var query string
	switch kind {
	case model.SearchKindTitle:
		query = `SELECT ` + voteColumns + ` FROM votes
		         WHERE display_range = 'public' AND title LIKE '%' || $1 || '%'
		         ORDER BY created_at DESC LIMIT $2`
	case model.SearchKindContent:
		query = `SELECT ` + voteColumns + ` FROM votes
		         WHERE display_range = 'public' AND content LIKE '%' || $1 || '%'
		         ORDER BY created_at DESC LIMIT $2`
	case model.SearchKindNickname:
		query = `SELECT v.id, v.user_id, v.title, v.content, v.category, v.is_multi_pick,
		         v.display_range, v.created_at, v.expired_at, v.updated_at
		         FROM votes v
		         JOIN users u ON u.user_id = v.user_id
		         WHERE v.display_range = 'public' AND u.nickname LIKE '%' || $1 || '%'
		         ORDER BY v.created_at DESC LIMIT $2`
	default:
		return nil, fmt.Errorf("unsupported search kind: %s", kind)
	}

	rows, err := r.db.QueryContext(ctx, query, keyword, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search votes: %w", err)
	}
	defer rows.Close()

	return scanVotes(rows)
}

// ListOptions は投票の選択肢一覧をcreated_at昇順で返す。
func (r *PostgresVoteRepo) ListOptions(ctx context.Context, voteID string) ([]model.VoteOption, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, vote_id, content, image_link, created_at
		 FROM vote_options WHERE vote_id = $1 ORDER BY created_at ASC, id ASC`,
		voteID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list vote options: %w", err)
	}
	defer rows.Close()

	var options []model.VoteOption
	for rows.Next() {
		var opt model.VoteOption
		if err := rows.Scan(&opt.ID, &opt.VoteID, &opt.Content, &opt.ImageLink, &opt.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vote option: %w", err)
		}
		options = append(options, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vote options: %w", err)
	}
	return options, nil
}

// FindOption は指定IDの選択肢を取得する。見つからない場合はnilを返す。
func (r *PostgresVoteRepo) FindOption(ctx context.Context, optionID string) (*model.VoteOption, error) {
	opt := &model.VoteOption{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, vote_id, content, image_link, created_at
		 FROM vote_options WHERE id = $1`,
		optionID,
	).Scan(&opt.ID, &opt.VoteID, &opt.Content, &opt.ImageLink, &opt.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find vote option: %w", err)
	}

	return opt, nil
}

// scanVotes は検索結果行をVoteのスライスに変換する。
func scanVotes(rows *sql.Rows) ([]*model.Vote, error) {
	var votes []*model.Vote
	for rows.Next() {
		vote := &model.Vote{}
		if err := rows.Scan(&vote.ID, &vote.UserID, &vote.Title, &vote.Content, &vote.Category,
			&vote.IsMultiPick, &vote.DisplayRange, &vote.CreatedAt, &vote.ExpiredAt, &vote.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		votes = append(votes, vote)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate votes: %w", err)
	}
	return votes, nil
}

// compile-time interface check
var _ VoteRepository = (*PostgresVoteRepo)(nil)
