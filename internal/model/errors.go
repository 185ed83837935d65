// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, vote, follow, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodeDuplicateUser     = "DUPLICATE_USER"
	ErrCodeLoginFailed       = "LOGIN_FAILED"
	ErrCodeOwnershipMismatch = "OWNERSHIP_MISMATCH"
	ErrCodeVoteNotFound      = "VOTE_NOT_FOUND"
	ErrCodeOptionNotFound    = "OPTION_NOT_FOUND"
	ErrCodeCommentNotFound   = "COMMENT_NOT_FOUND"
	ErrCodeFollowNotFound    = "FOLLOW_NOT_FOUND"
	ErrCodeDuplicateFollow   = "DUPLICATE_FOLLOW"
	ErrCodeSelfFollow        = "SELF_FOLLOW"
	ErrCodeVoteExpired       = "VOTE_EXPIRED"
	ErrCodeDuplicatePick     = "DUPLICATE_PICK"
	ErrCodeDuplicateLike     = "DUPLICATE_LIKE"
	ErrCodeInvalidCategory   = "INVALID_CATEGORY"
	ErrCodeInvalidVote       = "INVALID_VOTE"
	ErrCodeImageLinkBlocked  = "IMAGE_LINK_BLOCKED"
)

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("ユーザーが見つかりません: %s", userID),
		Category: "auth",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewDuplicateUserError は同一IDのユーザーが既に存在する場合のエラーを生成する。
func NewDuplicateUserError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUser,
		Message:  fmt.Sprintf("このユーザーIDは既に使用されています: %s", userID),
		Category: "auth",
		Action:   "別のユーザーIDを指定してください。",
	}
}

// NewLoginFailedError はログイン失敗エラーを生成する。
// ユーザー不在とパスワード不一致を区別しない。
func NewLoginFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeLoginFailed,
		Message:  "ユーザーIDまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewOwnershipMismatchError は他人のエンティティを変更しようとした場合のエラーを生成する。
func NewOwnershipMismatchError() *APIError {
	return &APIError{
		Code:     ErrCodeOwnershipMismatch,
		Message:  "この操作は作成者本人のみが実行できます。",
		Category: "auth",
		Action:   "自分が作成したコンテンツのみ変更できます。",
	}
}

// NewVoteNotFoundError は投票未検出エラーを生成する。
func NewVoteNotFoundError(voteID string) *APIError {
	return &APIError{
		Code:     ErrCodeVoteNotFound,
		Message:  fmt.Sprintf("指定された投票が見つかりません: %s", voteID),
		Category: "vote",
		Action:   "投票IDを確認してください。",
	}
}

// NewOptionNotFoundError は選択肢未検出エラーを生成する。
func NewOptionNotFoundError(optionID string) *APIError {
	return &APIError{
		Code:     ErrCodeOptionNotFound,
		Message:  fmt.Sprintf("指定された選択肢が見つかりません: %s", optionID),
		Category: "vote",
		Action:   "選択肢IDを確認してください。",
	}
}

// NewCommentNotFoundError はコメント未検出エラーを生成する。
func NewCommentNotFoundError(commentID string) *APIError {
	return &APIError{
		Code:     ErrCodeCommentNotFound,
		Message:  fmt.Sprintf("指定されたコメントが見つかりません: %s", commentID),
		Category: "vote",
		Action:   "コメントIDを確認してください。",
	}
}

// NewFollowNotFoundError はフォロー関係未検出エラーを生成する。
func NewFollowNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeFollowNotFound,
		Message:  "フォロー関係が見つかりません。",
		Category: "follow",
		Action:   "フォロー中のユーザーか確認してください。",
	}
}

// NewDuplicateFollowError は既にフォロー済みの相手を再フォローした場合のエラーを生成する。
func NewDuplicateFollowError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateFollow,
		Message:  "このユーザーは既にフォローしています。",
		Category: "follow",
		Action:   "フォロー一覧を確認してください。",
	}
}

// NewSelfFollowError は自分自身をフォローしようとした場合のエラーを生成する。
func NewSelfFollowError() *APIError {
	return &APIError{
		Code:     ErrCodeSelfFollow,
		Message:  "自分自身はフォローできません。",
		Category: "follow",
		Action:   "他のユーザーを指定してください。",
	}
}

// NewVoteExpiredError はクローズ済み投票への操作エラーを生成する。
func NewVoteExpiredError(voteID string) *APIError {
	return &APIError{
		Code:     ErrCodeVoteExpired,
		Message:  fmt.Sprintf("この投票は終了しています: %s", voteID),
		Category: "vote",
		Action:   "開催中の投票にのみピックできます。",
	}
}

// NewDuplicatePickError は同一選択肢への重複ピックエラーを生成する。
func NewDuplicatePickError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicatePick,
		Message:  "この選択肢は既にピック済みです。",
		Category: "vote",
		Action:   "別の選択肢を選んでください。",
	}
}

// NewDuplicateLikeError は同一コメントへの重複いいねエラーを生成する。
func NewDuplicateLikeError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateLike,
		Message:  "このコメントは既にいいね済みです。",
		Category: "vote",
		Action:   "いいねは1コメントにつき1回までです。",
	}
}

// NewInvalidCategoryError は無効なカテゴリエラーを生成する。
func NewInvalidCategoryError(category string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCategory,
		Message:  fmt.Sprintf("無効なカテゴリです: %s", category),
		Category: "validation",
		Action:   "カテゴリには free、worry、survey、etc のいずれかを指定してください。",
	}
}

// NewInvalidVoteError は投票内容の検証エラーを生成する。
func NewInvalidVoteError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidVote,
		Message:  fmt.Sprintf("投票内容が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewImageLinkBlockedError は画像リンクがセキュリティポリシーでブロックされた場合のエラーを生成する。
func NewImageLinkBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeImageLinkBlocked,
		Message:  "セキュリティポリシーにより、指定された画像リンクは使用できません。",
		Category: "validation",
		Action:   "公開されているWebサイトの画像URLを指定してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}
