// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/pickvote/internal/model"
)

// ErrDuplicateKey は一意制約違反を表す。
// 重複チェックの最終的な裁定者はストアの制約であり、サービス層の
// 事前チェックは最適化にすぎない。
var ErrDuplicateKey = errors.New("duplicate key")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID string) (*model.User, error)

	// Create はユーザーを作成する。
	// user_idが既に存在する場合はErrDuplicateKeyを返す。
	Create(ctx context.Context, user *model.User) error

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	// OAuth初回ログイン時の自動プロビジョニングに使用する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// UpdateProfile はニックネーム・メモ・誕生日を更新する。
	// 対象が存在しない場合は何も更新せずエラーを返す。
	UpdateProfile(ctx context.Context, user *model.User) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを一括削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// FollowRepository はフォローエッジの永続化インターフェース。
type FollowRepository interface {
	// FindByUsers は(from, to)ペアのフォローエッジを取得する。見つからない場合はnilを返す。
	FindByUsers(ctx context.Context, fromUserID, toUserID string) (*model.Follow, error)

	// Create はフォローエッジを作成する。
	// 同一ペアが既に存在する場合はErrDuplicateKeyを返す。
	Create(ctx context.Context, follow *model.Follow) error

	// Delete は指定IDのフォローエッジを削除する。
	Delete(ctx context.Context, id string) error

	// ListFollowers は指定ユーザーをフォローしているユーザーの一覧を返す。
	// created_at降順、limit/offsetで範囲を制限する。
	ListFollowers(ctx context.Context, userID string, limit, offset int) ([]model.FollowUser, error)

	// ListFollowing は指定ユーザーがフォローしているユーザーの一覧を返す。
	// created_at降順、limit/offsetで範囲を制限する。
	ListFollowing(ctx context.Context, userID string, limit, offset int) ([]model.FollowUser, error)
}

// VoteRepository は投票データの永続化インターフェース。
type VoteRepository interface {
	// FindByID は指定IDの投票を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Vote, error)

	// CreateWithOptions は投票と選択肢を同一トランザクションで作成する。
	CreateWithOptions(ctx context.Context, vote *model.Vote, options []model.VoteOption) error

	// Update は投票のタイトル・本文・カテゴリ・公開範囲・期限を更新する。
	Update(ctx context.Context, vote *model.Vote) error

	// Delete は指定IDの投票を削除する。選択肢・ピック・コメントはCASCADE削除される。
	Delete(ctx context.Context, id string) error

	// ListByCategory はカテゴリ内の投票一覧をcreated_at降順で返す。
	// categoryが空の場合は全カテゴリを対象とする。公開範囲がpublicの投票のみを返す。
	ListByCategory(ctx context.Context, category model.Category, limit, offset int) ([]*model.Vote, error)

	// ListPopular は投票一覧を人気順（関連ピック数の降順）で返す。
	// 同数の場合は投票ID昇順で順序を安定させる。categoryが空の場合は全カテゴリを対象とする。
	// 公開範囲がpublicの投票のみを返す。
	ListPopular(ctx context.Context, category model.Category, limit, offset int) ([]*model.Vote, error)

	// Search はタイトル・本文・投稿者ニックネームのいずれかによる部分一致検索を行う。
	// 公開範囲がpublicの投票のみを対象とする。
	Search(ctx context.Context, kind model.SearchKind, keyword string, limit int) ([]*model.Vote, error)

	// ListOptions は投票の選択肢一覧をcreated_at昇順で返す。
	ListOptions(ctx context.Context, voteID string) ([]model.VoteOption, error)

	// FindOption は指定IDの選択肢を取得する。見つからない場合はnilを返す。
	FindOption(ctx context.Context, optionID string) (*model.VoteOption, error)
}

// PickRepository はピックデータの永続化インターフェース。
type PickRepository interface {
	// ListByUserAndVote は指定ユーザーが指定投票の選択肢に対して持つピックを返す。
	ListByUserAndVote(ctx context.Context, userID, voteID string) ([]model.Pick, error)

	// Create はピックを作成する。
	// 同一ユーザー・同一選択肢のピックが既に存在する場合はErrDuplicateKeyを返す。
	Create(ctx context.Context, pick *model.Pick) error

	// ReplaceForVote は指定投票に対するユーザーの既存ピックを削除し、
	// 新しいピックを同一トランザクションで作成する。単一ピック投票の差し替えに使用する。
	ReplaceForVote(ctx context.Context, voteID string, pick *model.Pick) error

	// ResultsByVote は投票の選択肢ごとのピック集計を選択肢作成順で返す。
	ResultsByVote(ctx context.Context, voteID string) ([]model.OptionResult, error)
}

// CommentRepository はコメントデータの永続化インターフェース。
type CommentRepository interface {
	// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.VoteComment, error)

	// ListByVote は投票のコメント一覧をいいね数・投稿者ニックネーム付きで
	// created_at昇順で返す。
	ListByVote(ctx context.Context, voteID string) ([]model.CommentWithLikes, error)

	// Create はコメントを作成する。
	Create(ctx context.Context, comment *model.VoteComment) error

	// UpdateContent はコメント本文のみを更新する。投稿者・作成日時には触れない。
	UpdateContent(ctx context.Context, id, content string, updatedAt time.Time) error

	// Delete は指定IDのコメントを削除する。いいねはCASCADE削除される。
	Delete(ctx context.Context, id string) error

	// CreateLike はコメントへのいいねを作成する。
	// 同一ユーザーの重複いいねはErrDuplicateKeyを返す。
	CreateLike(ctx context.Context, like *model.CommentLike) error

	// DeleteLike は指定ユーザーのいいねを削除する。削除件数を返す。
	DeleteLike(ctx context.Context, commentID, userID string) (int64, error)
}
