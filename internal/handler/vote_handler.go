package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/pickvote/internal/middleware"
	"github.com/hitoshi/pickvote/internal/model"
	"github.com/hitoshi/pickvote/internal/vote"
)

// VoteServiceInterface は投票ハンドラーが必要とするサービスインターフェース。
type VoteServiceInterface interface {
	Create(ctx context.Context, input vote.CreateInput) (*model.Vote, error)
	Get(ctx context.Context, voteID, viewerID string) (*vote.Detail, error)
	Update(ctx context.Context, voteID, actorID string, input vote.UpdateInput) (*model.Vote, error)
	Delete(ctx context.Context, voteID, actorID string) error
	ListByCategory(ctx context.Context, category model.Category, limit, offset int) ([]*model.Vote, error)
	ListPopular(ctx context.Context, category model.Category, limit, offset int) ([]*model.Vote, error)
	Search(ctx context.Context, kind model.SearchKind, keyword string, limit int) ([]*model.Vote, error)
}

// PickServiceInterface はピック操作のサービスインターフェース。
type PickServiceInterface interface {
	Cast(ctx context.Context, userID, voteID, optionID string) (*model.Pick, error)
	Results(ctx context.Context, voteID string) ([]model.OptionResult, error)
}

// defaultVoteListLimit は投票一覧のデフォルト件数。
const defaultVoteListLimit = 20

// maxVoteListLimit は投票一覧の最大件数。
const maxVoteListLimit = 100

// VoteHandler は投票管理のHTTPハンドラー。
type VoteHandler struct {
	voteService VoteServiceInterface
	pickService PickServiceInterface
	// imageClient はSSRF防止機能付きのHTTPクライアント。画像プロキシで使用する。
	imageClient *http.Client
}

// NewVoteHandler はVoteHandlerを生成する。
func NewVoteHandler(voteService VoteServiceInterface, pickService PickServiceInterface, imageClient *http.Client) *VoteHandler {
	return &VoteHandler{
		voteService: voteService,
		pickService: pickService,
		imageClient: imageClient,
	}
}

// optionRequest は選択肢入力のボディ。
type optionRequest struct {
	Content   string `json:"content"`
	ImageLink string `json:"image_link"`
}

// createVoteRequest は投票作成リクエストのボディ。
type createVoteRequest struct {
	Title        string          `json:"title"`
	Content      string          `json:"content"`
	Category     string          `json:"category"`
	DisplayRange string          `json:"display_range"`
	IsMultiPick  bool            `json:"is_multi_pick"`
	ExpiredAt    time.Time       `json:"expired_at"`
	Options      []optionRequest `json:"options"`
}

// voteResponse は投票情報のAPIレスポンス。
type voteResponse struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	Category     string    `json:"category"`
	DisplayRange string    `json:"display_range"`
	IsMultiPick  bool      `json:"is_multi_pick"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiredAt    time.Time `json:"expired_at"`
}

// optionResultResponse は選択肢ごとのピック集計のAPIレスポンス要素。
type optionResultResponse struct {
	OptionID  string `json:"option_id"`
	Content   string `json:"content"`
	ImageLink string `json:"image_link,omitempty"`
	PickCount int    `json:"pick_count"`
}

// voteDetailResponse は投票詳細のAPIレスポンス。
type voteDetailResponse struct {
	voteResponse
	Closed  bool                   `json:"closed"`
	Options []optionResultResponse `json:"options"`
}

// Create は投票作成を処理する。
// POST /api/votes
func (h *VoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req createVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	options := make([]vote.OptionInput, 0, len(req.Options))
	for _, o := range req.Options {
		options = append(options, vote.OptionInput{
			Content:   o.Content,
			ImageLink: o.ImageLink,
		})
	}

	created, err := h.voteService.Create(r.Context(), vote.CreateInput{
		UserID:       userID,
		Title:        req.Title,
		Content:      req.Content,
		Category:     model.Category(req.Category),
		DisplayRange: model.DisplayRange(req.DisplayRange),
		IsMultiPick:  req.IsMultiPick,
		ExpiredAt:    req.ExpiredAt,
		Options:      options,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toVoteResponse(created))
}

// List は投票一覧を返す。
// GET /api/votes?category=xxx&sort=popular&limit=n&offset=n
// sort=popularの場合はピック数降順、それ以外は新着順。
// kind/keywordが指定された場合は検索モードで動作する。
func (h *VoteHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := model.Category(q.Get("category"))
	limit, offset := parsePage(r)
	limit = clampVoteListLimit(limit)

	// 検索モード
	if kind := q.Get("kind"); kind != "" {
		votes, err := h.voteService.Search(r.Context(), model.SearchKind(kind), q.Get("keyword"), limit)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeVoteList(w, votes)
		return
	}

	var votes []*model.Vote
	var err error
	if q.Get("sort") == "popular" {
		votes, err = h.voteService.ListPopular(r.Context(), category, limit, offset)
	} else {
		votes, err = h.voteService.ListByCategory(r.Context(), category, limit, offset)
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeVoteList(w, votes)
}

// Get は投票詳細を選択肢ごとのピック集計付きで返す。
// 公開範囲がprivate・followerの投票は閲覧者の資格をサービス層で判定する。
// GET /api/votes/{id}
func (h *VoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	voteID := chi.URLParam(r, "id")

	detail, err := h.voteService.Get(r.Context(), voteID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := voteDetailResponse{
		voteResponse: toVoteResponse(detail.Vote),
		Closed:       detail.Closed,
		Options:      make([]optionResultResponse, 0, len(detail.Options)),
	}
	for _, o := range detail.Options {
		resp.Options = append(resp.Options, optionResultResponse{
			OptionID:  o.OptionID,
			Content:   o.Content,
			ImageLink: o.ImageLink,
			PickCount: o.PickCount,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// updateVoteRequest は投票更新リクエストのボディ。
type updateVoteRequest struct {
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	Category     string    `json:"category"`
	DisplayRange string    `json:"display_range"`
	ExpiredAt    time.Time `json:"expired_at"`
}

// Update は投票の更新を処理する。作成者本人のみが実行できる。
// PATCH /api/votes/{id}
func (h *VoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	voteID := chi.URLParam(r, "id")

	var req updateVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	updated, err := h.voteService.Update(r.Context(), voteID, userID, vote.UpdateInput{
		Title:        req.Title,
		Content:      req.Content,
		Category:     model.Category(req.Category),
		DisplayRange: model.DisplayRange(req.DisplayRange),
		ExpiredAt:    req.ExpiredAt,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toVoteResponse(updated))
}

// Delete は投票の削除を処理する。作成者本人のみが実行できる。
// DELETE /api/votes/{id}
func (h *VoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	voteID := chi.URLParam(r, "id")

	if err := h.voteService.Delete(r.Context(), voteID, userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// castPickRequest はピック登録リクエストのボディ。
type castPickRequest struct {
	OptionID string `json:"option_id"`
}

// CastPick はピック登録を処理する。
// POST /api/votes/{id}/picks
func (h *VoteHandler) CastPick(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	voteID := chi.URLParam(r, "id")

	var req castPickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	if req.OptionID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "選択肢IDは必須です。",
			Category: "validation",
			Action:   "option_idを指定してください。",
		})
		return
	}

	pick, err := h.pickService.Cast(r.Context(), userID, voteID, req.OptionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{
		"option_id": pick.OptionID,
	})
}

// Results は投票の集計結果を返す。
// GET /api/votes/{id}/results
func (h *VoteHandler) Results(w http.ResponseWriter, r *http.Request) {
	voteID := chi.URLParam(r, "id")

	results, err := h.pickService.Results(r.Context(), voteID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]optionResultResponse, 0, len(results))
	for _, o := range results {
		items = append(items, optionResultResponse{
			OptionID:  o.OptionID,
			Content:   o.Content,
			ImageLink: o.ImageLink,
			PickCount: o.PickCount,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"results": items,
	})
}

// ProxyImage は選択肢画像をSSRF防止クライアント経由で取得して返す。
// GET /api/image-proxy?url=xxx
// 保存後にリンク先が危険なIPへ向け直されてもDialer検証でブロックされる。
func (h *VoteHandler) ProxyImage(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "urlパラメータは必須です。",
			Category: "validation",
			Action:   "取得する画像のURLを指定してください。",
		})
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, rawURL, nil)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewImageLinkBlockedError())
		return
	}

	resp, err := h.imageClient.Do(req)
	if err != nil {
		slog.Warn("image proxy fetch blocked or failed",
			slog.String("error", err.Error()),
		)
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewImageLinkBlockedError())
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		writeAPIErrorResponse(w, http.StatusBadGateway, &model.APIError{
			Code:     "IMAGE_FETCH_FAILED",
			Message:  "画像の取得に失敗しました。",
			Category: "system",
			Action:   "画像URLを確認してください。",
		})
		return
	}

	w.Header().Set("Content-Type", resp.Header.Get("Content-Type"))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	io.Copy(w, resp.Body)
}

// --- ヘルパー関数 ---

// toVoteResponse はmodel.VoteからAPIレスポンスに変換する。
func toVoteResponse(v *model.Vote) voteResponse {
	return voteResponse{
		ID:           v.ID,
		UserID:       v.UserID,
		Title:        v.Title,
		Content:      v.Content,
		Category:     string(v.Category),
		DisplayRange: string(v.DisplayRange),
		IsMultiPick:  v.IsMultiPick,
		CreatedAt:    v.CreatedAt,
		ExpiredAt:    v.ExpiredAt,
	}
}

// writeVoteList は投票一覧レスポンスを書き込む。
func writeVoteList(w http.ResponseWriter, votes []*model.Vote) {
	items := make([]voteResponse, 0, len(votes))
	for _, v := range votes {
		items = append(items, toVoteResponse(v))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"votes": items,
	})
}

// clampVoteListLimit は投票一覧のlimitをデフォルト・最大値の範囲に正規化する。
func clampVoteListLimit(limit int) int {
	if limit <= 0 {
		return defaultVoteListLimit
	}
	if limit > maxVoteListLimit {
		return maxVoteListLimit
	}
	return limit
}
