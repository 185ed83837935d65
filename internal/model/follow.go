// Package model はドメインモデルを定義する。
package model

import "time"

// Follow はユーザー間の有向フォロー関係（FromUser → ToUser）を表す。
// 同一ペアの重複エッジと自己フォローは許可しない。
type Follow struct {
	ID         string
	FromUserID string
	ToUserID   string
	CreatedAt  time.Time
}

// FollowUser はフォロー一覧に表示する相手ユーザーの射影。
type FollowUser struct {
	FollowID   string
	UserID     string
	Nickname   string
	FollowedAt time.Time
}
