package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/pickvote/internal/middleware"
	"github.com/hitoshi/pickvote/internal/model"
)

// CommentServiceInterface はコメントハンドラーが必要とするサービスインターフェース。
type CommentServiceInterface interface {
	List(ctx context.Context, voteID string) ([]model.CommentWithLikes, error)
	Save(ctx context.Context, voteID, authorID, content string) (*model.VoteComment, error)
	Update(ctx context.Context, commentID, actorID, content string) (*model.VoteComment, error)
	Delete(ctx context.Context, commentID, actorID string) error
	Like(ctx context.Context, commentID, userID string) error
	Unlike(ctx context.Context, commentID, userID string) error
}

// CommentHandler はコメント管理のHTTPハンドラー。
type CommentHandler struct {
	service CommentServiceInterface
}

// NewCommentHandler はCommentHandlerを生成する。
func NewCommentHandler(service CommentServiceInterface) *CommentHandler {
	return &CommentHandler{service: service}
}

// commentRequest はコメント作成・更新リクエストのボディ。
type commentRequest struct {
	Content string `json:"content"`
}

// commentResponse はコメント情報のAPIレスポンス。
type commentResponse struct {
	ID        string    `json:"id"`
	VoteID    string    `json:"vote_id"`
	UserID    string    `json:"user_id"`
	Nickname  string    `json:"nickname,omitempty"`
	Content   string    `json:"content"`
	LikeCount int       `json:"like_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// List は投票のコメント一覧をいいね数付きで返す。
// GET /api/votes/{id}/comments
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	voteID := chi.URLParam(r, "id")

	comments, err := h.service.List(r.Context(), voteID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]commentResponse, 0, len(comments))
	for _, c := range comments {
		items = append(items, commentResponse{
			ID:        c.ID,
			VoteID:    c.VoteID,
			UserID:    c.UserID,
			Nickname:  c.Nickname,
			Content:   c.Content,
			LikeCount: c.LikeCount,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"comments": items,
	})
}

// Create は投票へのコメント作成を処理する。
// POST /api/votes/{id}/comments
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	voteID := chi.URLParam(r, "id")

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	comment, err := h.service.Save(r.Context(), voteID, userID, req.Content)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(commentResponse{
		ID:        comment.ID,
		VoteID:    comment.VoteID,
		UserID:    comment.UserID,
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt,
		UpdatedAt: comment.UpdatedAt,
	})
}

// Update はコメントの更新を処理する。作成者本人のみが実行できる。
// PATCH /api/comments/{id}
func (h *CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	commentID := chi.URLParam(r, "id")

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	comment, err := h.service.Update(r.Context(), commentID, userID, req.Content)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(commentResponse{
		ID:        comment.ID,
		VoteID:    comment.VoteID,
		UserID:    comment.UserID,
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt,
		UpdatedAt: comment.UpdatedAt,
	})
}

// Delete はコメントの削除を処理する。作成者本人のみが実行できる。
// DELETE /api/comments/{id}
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	commentID := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), commentID, userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Like はコメントへのいいねを処理する。
// POST /api/comments/{id}/like
func (h *CommentHandler) Like(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	commentID := chi.URLParam(r, "id")

	if err := h.service.Like(r.Context(), commentID, userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

// Unlike はコメントへのいいね取り消しを処理する。冪等に動作する。
// DELETE /api/comments/{id}/like
func (h *CommentHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	commentID := chi.URLParam(r, "id")

	if err := h.service.Unlike(r.Context(), commentID, userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
