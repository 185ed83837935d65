// Package model はドメインモデルを定義する。
package model

import "time"

// Category は投票のカテゴリを表す。
type Category string

const (
	// CategoryFree は自由テーマのカテゴリ。
	CategoryFree Category = "free"
	// CategoryWorry は悩み相談のカテゴリ。
	CategoryWorry Category = "worry"
	// CategorySurvey はアンケートのカテゴリ。
	CategorySurvey Category = "survey"
	// CategoryEtc はその他のカテゴリ。
	CategoryEtc Category = "etc"
)

// ValidCategory はカテゴリ値がサポート対象かを返す。
func ValidCategory(c Category) bool {
	switch c {
	case CategoryFree, CategoryWorry, CategorySurvey, CategoryEtc:
		return true
	}
	return false
}

// DisplayRange は投票の公開範囲を表す。
type DisplayRange string

const (
	// DisplayRangePublic は全体公開。
	DisplayRangePublic DisplayRange = "public"
	// DisplayRangeFollower はフォロワー限定公開。
	DisplayRangeFollower DisplayRange = "follower"
	// DisplayRangePrivate は非公開。
	DisplayRangePrivate DisplayRange = "private"
)

// ValidDisplayRange は公開範囲値がサポート対象かを返す。
func ValidDisplayRange(d DisplayRange) bool {
	switch d {
	case DisplayRangePublic, DisplayRangeFollower, DisplayRangePrivate:
		return true
	}
	return false
}

// Vote は投票（ポール）を表す。
// ExpiredAtを過ぎた投票は暗黙的にクローズ状態となり、新規ピックを受け付けない。
type Vote struct {
	ID           string
	UserID       string
	Title        string
	Content      string // サニタイズ済みHTML
	Category     Category
	IsMultiPick  bool
	DisplayRange DisplayRange
	CreatedAt    time.Time
	ExpiredAt    time.Time
	UpdatedAt    time.Time
}

// IsClosed は基準時刻nowにおいて投票がクローズ済みかを返す。
func (v *Vote) IsClosed(now time.Time) bool {
	return !v.ExpiredAt.After(now)
}

// VoteOption は投票の選択肢を表す。選択肢は投票に所有される。
type VoteOption struct {
	ID        string
	VoteID    string
	Content   string
	ImageLink string
	CreatedAt time.Time
}

// Pick はユーザーによる選択肢の選択を表す。
// 選択肢ごとのピック数の集計が人気順ソートを駆動する。
type Pick struct {
	ID        string
	UserID    string
	OptionID  string
	CreatedAt time.Time
}

// OptionResult は選択肢ごとのピック集計結果を表す。
type OptionResult struct {
	OptionID  string
	Content   string
	ImageLink string
	PickCount int
}

// SearchKind は投票検索の種別を表す。
type SearchKind string

const (
	// SearchKindTitle はタイトルによる部分一致検索。
	SearchKindTitle SearchKind = "title"
	// SearchKindContent は本文による部分一致検索。
	SearchKindContent SearchKind = "content"
	// SearchKindNickname は投稿者ニックネームによる部分一致検索。
	SearchKindNickname SearchKind = "nickname"
)

// ValidSearchKind は検索種別がサポート対象かを返す。
func ValidSearchKind(k SearchKind) bool {
	switch k {
	case SearchKindTitle, SearchKindContent, SearchKindNickname:
		return true
	}
	return false
}
