package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/pickvote/internal/cache"
	"github.com/hitoshi/pickvote/internal/model"
	"github.com/hitoshi/pickvote/internal/repository"
)

// mockUserRepo はUserRepositoryのモック実装。
type mockUserRepo struct {
	findByIDFunc           func(ctx context.Context, userID string) (*model.User, error)
	createFunc             func(ctx context.Context, user *model.User) error
	createWithIdentityFunc func(ctx context.Context, user *model.User, identity *model.Identity) error
	updateProfileFunc      func(ctx context.Context, user *model.User) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, userID string) (*model.User, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	if m.createWithIdentityFunc != nil {
		return m.createWithIdentityFunc(ctx, user, identity)
	}
	return nil
}

func (m *mockUserRepo) UpdateProfile(ctx context.Context, user *model.User) error {
	if m.updateProfileFunc != nil {
		return m.updateProfileFunc(ctx, user)
	}
	return nil
}

// mockUserCache はUserCacheのモック実装。
type mockUserCache struct {
	getFunc    func(ctx context.Context, userID string) (*model.CachedUser, error)
	setFunc    func(ctx context.Context, snapshot *model.CachedUser) error
	deleteFunc func(ctx context.Context, userID string) error

	setCalls    []*model.CachedUser
	deleteCalls []string
}

func (m *mockUserCache) Get(ctx context.Context, userID string) (*model.CachedUser, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, userID)
	}
	return nil, cache.ErrCacheMiss
}

func (m *mockUserCache) Set(ctx context.Context, snapshot *model.CachedUser) error {
	m.setCalls = append(m.setCalls, snapshot)
	if m.setFunc != nil {
		return m.setFunc(ctx, snapshot)
	}
	return nil
}

func (m *mockUserCache) Delete(ctx context.Context, userID string) error {
	m.deleteCalls = append(m.deleteCalls, userID)
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, userID)
	}
	return nil
}

// mockCacheMetrics はCacheMetricsのモック実装。
type mockCacheMetrics struct {
	hits, misses, cacheErrors int
}

func (m *mockCacheMetrics) RecordCacheHit()   { m.hits++ }
func (m *mockCacheMetrics) RecordCacheMiss()  { m.misses++ }
func (m *mockCacheMetrics) RecordCacheError() { m.cacheErrors++ }

func testUser(userID string) *model.User {
	return &model.User{
		UserID:    userID,
		Email:     userID + "@example.com",
		Nickname:  "テスト太郎",
		CreatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

// TestResolve_CacheHit_ReturnsSnapshotWithoutStore はキャッシュヒット時に
// ストアへアクセスしないことを検証する。
func TestResolve_CacheHit_ReturnsSnapshotWithoutStore(t *testing.T) {
	storeCalled := false
	userRepo := &mockUserRepo{
		findByIDFunc: func(ctx context.Context, userID string) (*model.User, error) {
			storeCalled = true
			return testUser(userID), nil
		},
	}
	userCache := &mockUserCache{
		getFunc: func(ctx context.Context, userID string) (*model.CachedUser, error) {
			return &model.CachedUser{UserID: userID, Nickname: "キャッシュ済み"}, nil
		},
	}
	metrics := &mockCacheMetrics{}
	svc := NewService(userRepo, userCache, metrics)

	snapshot, err := svc.Resolve(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Resolve() がエラーを返した: %v", err)
	}

	if snapshot.Nickname != "キャッシュ済み" {
		t.Errorf("Nickname = %q, want キャッシュ済み", snapshot.Nickname)
	}
	if storeCalled {
		t.Error("キャッシュヒット時にストアが参照された")
	}
	if metrics.hits != 1 {
		t.Errorf("hits = %d, want 1", metrics.hits)
	}
}

// TestResolve_CacheHit_RefreshesTTL はヒット時もキャッシュを書き直して
// TTLをリフレッシュすることを検証する。
func TestResolve_CacheHit_RefreshesTTL(t *testing.T) {
	userCache := &mockUserCache{
		getFunc: func(ctx context.Context, userID string) (*model.CachedUser, error) {
			return &model.CachedUser{UserID: userID}, nil
		},
	}
	svc := NewService(&mockUserRepo{}, userCache, nil)

	_, err := svc.Resolve(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Resolve() がエラーを返した: %v", err)
	}

	if len(userCache.setCalls) != 1 {
		t.Fatalf("Set の呼び出し回数 = %d, want 1", len(userCache.setCalls))
	}
	if userCache.setCalls[0].UserID != "alice" {
		t.Errorf("Set されたUserID = %q, want alice", userCache.setCalls[0].UserID)
	}
}

// TestResolve_CacheMiss_FallsBackToStoreAndPopulates はミス時にストアから
// 読み込んでキャッシュを再投入することを検証する。
func TestResolve_CacheMiss_FallsBackToStoreAndPopulates(t *testing.T) {
	userRepo := &mockUserRepo{
		findByIDFunc: func(ctx context.Context, userID string) (*model.User, error) {
			return testUser(userID), nil
		},
	}
	userCache := &mockUserCache{}
	metrics := &mockCacheMetrics{}
	svc := NewService(userRepo, userCache, metrics)

	snapshot, err := svc.Resolve(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Resolve() がエラーを返した: %v", err)
	}

	if snapshot.UserID != "alice" {
		t.Errorf("UserID = %q, want alice", snapshot.UserID)
	}
	if snapshot.Email != "alice@example.com" {
		t.Errorf("Email = %q, want alice@example.com", snapshot.Email)
	}
	if len(userCache.setCalls) != 1 {
		t.Errorf("Set の呼び出し回数 = %d, want 1", len(userCache.setCalls))
	}
	if metrics.misses != 1 {
		t.Errorf("misses = %d, want 1", metrics.misses)
	}
}

// TestResolve_CacheReadFailure_TreatedAsMiss はデシリアライズ失敗などの
// キャッシュ障害をミスとして扱い、ストアへフォールバックすることを検証する。
func TestResolve_CacheReadFailure_TreatedAsMiss(t *testing.T) {
	userRepo := &mockUserRepo{
		findByIDFunc: func(ctx context.Context, userID string) (*model.User, error) {
			return testUser(userID), nil
		},
	}
	userCache := &mockUserCache{
		getFunc: func(ctx context.Context, userID string) (*model.CachedUser, error) {
			return nil, errors.New("connection refused")
		},
	}
	metrics := &mockCacheMetrics{}
	svc := NewService(userRepo, userCache, metrics)

	snapshot, err := svc.Resolve(context.Background(), "alice")
	if err != nil {
		t.Fatalf("キャッシュ障害時でも Resolve() は成功すべき: %v", err)
	}
	if snapshot.UserID != "alice" {
		t.Errorf("UserID = %q, want alice", snapshot.UserID)
	}
	if metrics.cacheErrors != 1 {
		t.Errorf("cacheErrors = %d, want 1", metrics.cacheErrors)
	}
}

// TestResolve_NotFound_ReturnsUserNotFoundWithoutPopulate はストアにも
// 存在しない場合にUSER_NOT_FOUNDを返し、キャッシュに触れないことを検証する。
func TestResolve_NotFound_ReturnsUserNotFoundWithoutPopulate(t *testing.T) {
	userCache := &mockUserCache{}
	svc := NewService(&mockUserRepo{}, userCache, nil)

	_, err := svc.Resolve(context.Background(), "ghost")
	if err == nil {
		t.Fatal("不在ユーザーの解決はエラーを返すべき")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("APIError ではないエラーが返された: %v", err)
	}
	if apiErr.Code != model.ErrCodeUserNotFound {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeUserNotFound)
	}
	if len(userCache.setCalls) != 0 {
		t.Error("不在ユーザーの解決でキャッシュに書き込まれた")
	}
}

// TestResolve_PopulateFailure_DoesNotFailRead はキャッシュ書き込み失敗が
// 読み取りを失敗させないことを検証する（ソフト障害契約）。
func TestResolve_PopulateFailure_DoesNotFailRead(t *testing.T) {
	userRepo := &mockUserRepo{
		findByIDFunc: func(ctx context.Context, userID string) (*model.User, error) {
			return testUser(userID), nil
		},
	}
	userCache := &mockUserCache{
		setFunc: func(ctx context.Context, snapshot *model.CachedUser) error {
			return errors.New("connection refused")
		},
	}
	svc := NewService(userRepo, userCache, nil)

	snapshot, err := svc.Resolve(context.Background(), "alice")
	if err != nil {
		t.Fatalf("キャッシュ書き込み失敗で Resolve() が失敗した: %v", err)
	}
	if snapshot.UserID != "alice" {
		t.Errorf("UserID = %q, want alice", snapshot.UserID)
	}
}

// TestRegister_Succeeds_HashesPassword は登録時にパスワードがbcryptで
// ハッシュ化されることを検証する。
func TestRegister_Succeeds_HashesPassword(t *testing.T) {
	var created *model.User
	userRepo := &mockUserRepo{
		createFunc: func(ctx context.Context, user *model.User) error {
			created = user
			return nil
		},
	}
	svc := NewService(userRepo, &mockUserCache{}, nil)

	candidate := &model.User{UserID: "alice", Email: "alice@example.com"}
	if err := svc.Register(context.Background(), candidate, "secret-password"); err != nil {
		t.Fatalf("Register() がエラーを返した: %v", err)
	}

	if created == nil {
		t.Fatal("Create が呼び出されなかった")
	}
	if created.PasswordHash == "secret-password" || created.PasswordHash == "" {
		t.Error("パスワードが平文のまま保存されている、または空である")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("secret-password")); err != nil {
		t.Errorf("保存されたハッシュが元のパスワードと一致しない: %v", err)
	}
}

// TestRegister_ExistingUser_ReturnsDuplicate は既存IDの登録が
// DUPLICATE_USERで失敗することを検証する。
func TestRegister_ExistingUser_ReturnsDuplicate(t *testing.T) {
	userRepo := &mockUserRepo{
		findByIDFunc: func(ctx context.Context, userID string) (*model.User, error) {
			return testUser(userID), nil
		},
	}
	svc := NewService(userRepo, &mockUserCache{}, nil)

	err := svc.Register(context.Background(), &model.User{UserID: "alice"}, "pw")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeDuplicateUser {
		t.Errorf("err = %v, want DUPLICATE_USER", err)
	}
}

// TestRegister_ConcurrentDuplicate_MapsConstraintViolation は事前チェックを
// すり抜けた同時登録が一意制約違反としてDUPLICATE_USERに変換されることを検証する。
func TestRegister_ConcurrentDuplicate_MapsConstraintViolation(t *testing.T) {
	userRepo := &mockUserRepo{
		createFunc: func(ctx context.Context, user *model.User) error {
			return repository.ErrDuplicateKey
		},
	}
	svc := NewService(userRepo, &mockUserCache{}, nil)

	err := svc.Register(context.Background(), &model.User{UserID: "alice"}, "pw")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeDuplicateUser {
		t.Errorf("err = %v, want DUPLICATE_USER", err)
	}
}

// TestUpdateProfile_Succeeds_InvalidatesCache はプロフィール更新後に
// キャッシュエントリが削除されることを検証する。
func TestUpdateProfile_Succeeds_InvalidatesCache(t *testing.T) {
	var updated *model.User
	userRepo := &mockUserRepo{
		findByIDFunc: func(ctx context.Context, userID string) (*model.User, error) {
			return testUser(userID), nil
		},
		updateProfileFunc: func(ctx context.Context, user *model.User) error {
			updated = user
			return nil
		},
	}
	userCache := &mockUserCache{}
	svc := NewService(userRepo, userCache, nil)

	birthday := time.Date(1995, 3, 14, 0, 0, 0, 0, time.UTC)
	got, err := svc.UpdateProfile(context.Background(), "alice", "新ニックネーム", "メモです", &birthday)
	if err != nil {
		t.Fatalf("UpdateProfile() がエラーを返した: %v", err)
	}

	if updated == nil {
		t.Fatal("UpdateProfile がリポジトリに伝播しなかった")
	}
	if got.Nickname != "新ニックネーム" {
		t.Errorf("Nickname = %q, want 新ニックネーム", got.Nickname)
	}
	if got.Birthday == nil || !got.Birthday.Equal(birthday) {
		t.Errorf("Birthday = %v, want %v", got.Birthday, birthday)
	}
	if len(userCache.deleteCalls) != 1 || userCache.deleteCalls[0] != "alice" {
		t.Errorf("キャッシュ無効化の呼び出し = %v, want [alice]", userCache.deleteCalls)
	}
}

// TestUpdateProfile_NotFound_ReturnsError は不在ユーザーの更新が
// USER_NOT_FOUNDで失敗することを検証する。
func TestUpdateProfile_NotFound_ReturnsError(t *testing.T) {
	svc := NewService(&mockUserRepo{}, &mockUserCache{}, nil)

	_, err := svc.UpdateProfile(context.Background(), "ghost", "nick", "", nil)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUserNotFound {
		t.Errorf("err = %v, want USER_NOT_FOUND", err)
	}
}

// TestUpdateProfile_CacheDeleteFailure_DoesNotFailUpdate はキャッシュ削除の
// 失敗が更新自体を失敗させないことを検証する。
func TestUpdateProfile_CacheDeleteFailure_DoesNotFailUpdate(t *testing.T) {
	userRepo := &mockUserRepo{
		findByIDFunc: func(ctx context.Context, userID string) (*model.User, error) {
			return testUser(userID), nil
		},
	}
	userCache := &mockUserCache{
		deleteFunc: func(ctx context.Context, userID string) error {
			return errors.New("connection refused")
		},
	}
	svc := NewService(userRepo, userCache, nil)

	if _, err := svc.UpdateProfile(context.Background(), "alice", "nick", "", nil); err != nil {
		t.Fatalf("キャッシュ削除失敗で UpdateProfile() が失敗した: %v", err)
	}
}

// TestVerifyPassword_CorrectPassword_ReturnsTrue は正しいパスワードの照合を検証する。
func TestVerifyPassword_CorrectPassword_ReturnsTrue(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-password"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	userRepo := &mockUserRepo{
		findByIDFunc: func(ctx context.Context, userID string) (*model.User, error) {
			u := testUser(userID)
			u.PasswordHash = string(hash)
			return u, nil
		},
	}
	svc := NewService(userRepo, &mockUserCache{}, nil)

	ok, err := svc.VerifyPassword(context.Background(), "alice", "secret-password")
	if err != nil {
		t.Fatalf("VerifyPassword() がエラーを返した: %v", err)
	}
	if !ok {
		t.Error("正しいパスワードで false が返された")
	}
}

// TestVerifyPassword_WrongPassword_ReturnsFalse は誤ったパスワードの照合を検証する。
func TestVerifyPassword_WrongPassword_ReturnsFalse(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-password"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	userRepo := &mockUserRepo{
		findByIDFunc: func(ctx context.Context, userID string) (*model.User, error) {
			u := testUser(userID)
			u.PasswordHash = string(hash)
			return u, nil
		},
	}
	svc := NewService(userRepo, &mockUserCache{}, nil)

	ok, err := svc.VerifyPassword(context.Background(), "alice", "wrong-password")
	if err != nil {
		t.Fatalf("VerifyPassword() がエラーを返した: %v", err)
	}
	if ok {
		t.Error("誤ったパスワードで true が返された")
	}
}

// TestVerifyPassword_UnknownUser_ReturnsFalse は不在ユーザーの照合が
// エラーにならず false を返すことを検証する。
func TestVerifyPassword_UnknownUser_ReturnsFalse(t *testing.T) {
	svc := NewService(&mockUserRepo{}, &mockUserCache{}, nil)

	ok, err := svc.VerifyPassword(context.Background(), "ghost", "pw")
	if err != nil {
		t.Fatalf("VerifyPassword() がエラーを返した: %v", err)
	}
	if ok {
		t.Error("不在ユーザーで true が返された")
	}
}
