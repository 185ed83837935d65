package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/pickvote/internal/middleware"
	"github.com/hitoshi/pickvote/internal/model"
	"github.com/hitoshi/pickvote/internal/security"
)

// birthdayLayout は誕生日フィールドの日付フォーマット。
const birthdayLayout = "2006-01-02"

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Resolve はキャッシュアサイドでユーザープロファイルを解決する。
	Resolve(ctx context.Context, userID string) (*model.CachedUser, error)
	// Register は新規ユーザーを登録する。
	Register(ctx context.Context, candidate *model.User, rawPassword string) error
	// UpdateProfile はニックネーム・メモ・誕生日を更新する。
	UpdateProfile(ctx context.Context, userID, nickname, memo string, birthday *time.Time) (*model.User, error)
}

// FollowServiceInterface はフォロー操作のサービスインターフェース。
type FollowServiceInterface interface {
	Follow(ctx context.Context, fromUserID, toUserID string) (*model.Follow, error)
	Unfollow(ctx context.Context, fromUserID, toUserID string) error
	ListFollowers(ctx context.Context, userID string, limit, offset int) ([]model.FollowUser, error)
	ListFollowing(ctx context.Context, userID string, limit, offset int) ([]model.FollowUser, error)
}

// UserHandler はユーザー管理とフォローのHTTPハンドラー。
type UserHandler struct {
	userService   UserServiceInterface
	followService FollowServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(userService UserServiceInterface, followService FollowServiceInterface) *UserHandler {
	return &UserHandler{
		userService:   userService,
		followService: followService,
	}
}

// registerRequest はユーザー登録リクエストのボディ。
type registerRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
}

// profileResponse はユーザープロファイルのAPIレスポンス。
// display_nameはニックネーム未設定時にユーザーIDへフォールバックする表示名。
type profileResponse struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Nickname    string `json:"nickname"`
	Memo        string `json:"memo"`
	Birthday    string `json:"birthday,omitempty"`
}

// Register は新規ユーザー登録を処理する。
// POST /api/users
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	if req.UserID == "" || req.Password == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "ユーザーIDとパスワードは必須です。",
			Category: "validation",
			Action:   "ユーザーIDとパスワードを入力してください。",
		})
		return
	}

	candidate := &model.User{
		UserID:   req.UserID,
		Email:    req.Email,
		Nickname: req.Nickname,
	}

	if err := h.userService.Register(r.Context(), candidate, req.Password); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{
		"user_id": candidate.UserID,
	})
}

// Me は現在のユーザーのプロファイルを返す。
// GET /api/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	snapshot, err := h.userService.Resolve(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toProfileResponse(snapshot))
}

// updateProfileRequest はプロファイル更新リクエストのボディ。
type updateProfileRequest struct {
	Nickname string `json:"nickname"`
	Memo     string `json:"memo"`
	Birthday string `json:"birthday"` // "2006-01-02"形式。空文字列はクリア
}

// UpdateProfile はプロファイルの更新を処理する。
// PATCH /api/users/me
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	var birthday *time.Time
	if req.Birthday != "" {
		parsed, err := time.Parse(birthdayLayout, req.Birthday)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
				Code:     "INVALID_REQUEST",
				Message:  "誕生日の形式が不正です。",
				Category: "validation",
				Action:   "YYYY-MM-DD形式で指定してください。",
			})
			return
		}
		birthday = &parsed
	}

	updated, err := h.userService.UpdateProfile(r.Context(), userID, req.Nickname, req.Memo, birthday)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := toProfileResponse(&model.CachedUser{
		UserID:   updated.UserID,
		Email:    updated.Email,
		Nickname: updated.Nickname,
		Memo:     updated.Memo,
		Birthday: updated.Birthday,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// followUserResponse はフォロー一覧のAPIレスポンス要素。
type followUserResponse struct {
	UserID     string    `json:"user_id"`
	Nickname   string    `json:"nickname"`
	FollowedAt time.Time `json:"followed_at"`
}

// ListFollowers は指定ユーザーのフォロワー一覧を返す。
// GET /api/users/{id}/followers
func (h *UserHandler) ListFollowers(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	limit, offset := parsePage(r)

	followers, err := h.followService.ListFollowers(r.Context(), userID, limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeFollowList(w, followers)
}

// ListFollowing は指定ユーザーのフォロー中一覧を返す。
// GET /api/users/{id}/following
func (h *UserHandler) ListFollowing(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	limit, offset := parsePage(r)

	following, err := h.followService.ListFollowing(r.Context(), userID, limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeFollowList(w, following)
}

// followRequest はフォロー作成リクエストのボディ。
type followRequest struct {
	ToUserID string `json:"to_user_id"`
}

// Follow はフォロー作成を処理する。
// POST /api/follows
func (h *UserHandler) Follow(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req followRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	if req.ToUserID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "フォロー対象のユーザーIDは必須です。",
			Category: "validation",
			Action:   "to_user_idを指定してください。",
		})
		return
	}

	follow, err := h.followService.Follow(r.Context(), userID, req.ToUserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{
		"to_user_id": follow.ToUserID,
	})
}

// Unfollow はフォロー解除を処理する。
// DELETE /api/follows/{toUserID}
func (h *UserHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	toUserID := chi.URLParam(r, "toUserID")

	if err := h.followService.Unfollow(r.Context(), userID, toUserID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- ヘルパー関数 ---

// toProfileResponse はキャッシュスナップショットからAPIレスポンスに変換する。
func toProfileResponse(snapshot *model.CachedUser) profileResponse {
	principal := security.PrincipalFrom(snapshot)
	resp := profileResponse{
		UserID:      snapshot.UserID,
		DisplayName: principal.DisplayName,
		Email:       snapshot.Email,
		Nickname:    snapshot.Nickname,
		Memo:        snapshot.Memo,
	}
	if snapshot.Birthday != nil {
		resp.Birthday = snapshot.Birthday.Format(birthdayLayout)
	}
	return resp
}

// writeFollowList はフォロー一覧レスポンスを書き込む。
func writeFollowList(w http.ResponseWriter, users []model.FollowUser) {
	items := make([]followUserResponse, 0, len(users))
	for _, u := range users {
		items = append(items, followUserResponse{
			UserID:     u.UserID,
			Nickname:   u.Nickname,
			FollowedAt: u.FollowedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"users": items,
	})
}

// parsePage はクエリパラメータからlimit/offsetを取得する。
// 未指定・不正値は0を返し、サービス層のデフォルトに委ねる。
func parsePage(r *http.Request) (limit, offset int) {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}
	return limit, offset
}
