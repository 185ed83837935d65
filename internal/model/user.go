// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// UserIDはユーザー自身が選択する一意な識別子（OAuthユーザーの場合は自動生成）。
type User struct {
	UserID       string
	PasswordHash string
	Email        string
	Nickname     string
	Memo         string
	Birthday     *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CachedUser はキャッシュに格納するユーザースナップショット。
// パスワードハッシュ等の秘匿情報は含めず、認証プリンシパルの構築に必要な
// 射影のみを持つ。
type CachedUser struct {
	UserID    string     `json:"user_id"`
	Email     string     `json:"email"`
	Nickname  string     `json:"nickname"`
	Memo      string     `json:"memo"`
	Birthday  *time.Time `json:"birthday,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// SnapshotOf はUserからキャッシュ用スナップショットを生成する。
func SnapshotOf(u *User) *CachedUser {
	return &CachedUser{
		UserID:    u.UserID,
		Email:     u.Email,
		Nickname:  u.Nickname,
		Memo:      u.Memo,
		Birthday:  u.Birthday,
		CreatedAt: u.CreatedAt,
	}
}

// Identity は外部IdPとの紐付け情報を表す。
// Kakao・Naver・Googleの複数IdPに対応する。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
