// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import "github.com/hitoshi/pickvote/internal/model"

// Role は認証プリンシパルに付与されるロールを表す。
type Role string

const (
	// RoleUser は一般ユーザーのロール。
	RoleUser Role = "ROLE_USER"
)

// Principal は認証済みユーザーを表すプリンシパル。
// セキュリティ層（セッションミドルウェア・ハンドラー）が消費する形に
// ユーザープロファイルをラップする。
type Principal struct {
	UserID      string
	DisplayName string
	Email       string
	Roles       []Role
}

// PrincipalFrom はキャッシュ済みユーザースナップショットからプリンシパルを構築する。
// 表示名はニックネームを優先し、未設定の場合はユーザーIDにフォールバックする。
func PrincipalFrom(snapshot *model.CachedUser) *Principal {
	displayName := snapshot.Nickname
	if displayName == "" {
		displayName = snapshot.UserID
	}
	return &Principal{
		UserID:      snapshot.UserID,
		DisplayName: displayName,
		Email:       snapshot.Email,
		Roles:       []Role{RoleUser},
	}
}

// HasRole はプリンシパルが指定ロールを持つかを返す。
func (p *Principal) HasRole(role Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}
