// Package model はドメインモデルを定義する。
package model

import "time"

// VoteComment は投票に対するコメントを表す。
// 更新・削除は作成者本人のみが行える。
type VoteComment struct {
	ID        string
	VoteID    string
	UserID    string
	Content   string // サニタイズ済み
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CommentLike はコメントに対するいいねを表す。
// 同一ユーザーによる同一コメントへの重複いいねは許可しない。
type CommentLike struct {
	ID        string
	CommentID string
	UserID    string
	CreatedAt time.Time
}

// CommentWithLikes はコメントといいね数を結合したモデル。
// comment_likesテーブルと集計JOINして取得される。
type CommentWithLikes struct {
	VoteComment
	Nickname  string
	LikeCount int
}
