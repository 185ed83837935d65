package auth

import (
	"context"
	"fmt"
	"net/url"
)

const (
	defaultNaverAuthURL     = "https://nid.naver.com/oauth2.0/authorize"
	defaultNaverTokenURL    = "https://nid.naver.com/oauth2.0/token"
	defaultNaverUserInfoURL = "https://openapi.naver.com/v1/nid/me"
)

// NaverOAuthConfig はNaver OAuthプロバイダーの設定。
type NaverOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

// NaverOAuthProvider はNaver OAuth 2.0による認証を提供する。
type NaverOAuthProvider struct {
	config NaverOAuthConfig
}

// NewNaverOAuthProvider はNaverOAuthProviderを生成する。
func NewNaverOAuthProvider(config NaverOAuthConfig) *NaverOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultNaverAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultNaverTokenURL
	}
	if config.UserInfoURL == "" {
		config.UserInfoURL = defaultNaverUserInfoURL
	}
	return &NaverOAuthProvider{config: config}
}

// Name はプロバイダー識別子を返す。
func (p *NaverOAuthProvider) Name() string { return "naver" }

// GetLoginURL はNaver OAuthの認証URLを生成する。
func (p *NaverOAuthProvider) GetLoginURL(state string) string {
	params := url.Values{
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.config.RedirectURL},
		"response_type": {"code"},
		"state":         {state},
	}
	return p.config.AuthURL + "?" + params.Encode()
}

// naverUserInfo はNaverのユーザー情報エンドポイントのレスポンス。
// ユーザー属性はresponseオブジェクトにネストされる。
type naverUserInfo struct {
	ResultCode string `json:"resultcode"`
	Response   struct {
		ID       string `json:"id"`
		Email    string `json:"email"`
		Nickname string `json:"nickname"`
	} `json:"response"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、ユーザー情報を取得する。
func (p *NaverOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	data := url.Values{
		"code":          {code},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"grant_type":    {"authorization_code"},
	}

	tokenResp, err := postTokenRequest(ctx, p.config.TokenURL, data)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	var userInfo naverUserInfo
	if err := getUserInfo(ctx, p.config.UserInfoURL, tokenResp.AccessToken, &userInfo); err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}

	if userInfo.Response.ID == "" {
		return nil, fmt.Errorf("empty id in user info response")
	}

	return &OAuthUserInfo{
		ProviderUserID: userInfo.Response.ID,
		Email:          userInfo.Response.Email,
		Nickname:       userInfo.Response.Nickname,
		Provider:       p.Name(),
	}, nil
}

// compile-time interface check
var _ OAuthProvider = (*NaverOAuthProvider)(nil)
