package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTwitchAuthURL  = "https://id.twitch.tv/oauth2/authorize"
	defaultTwitchTokenURL = "https://id.twitch.tv/oauth2/token"
	defaultTwitchUsersURL = "https://api.twitch.tv/helix/users"

	// ProviderTwitch はサインインに使う唯一のプロバイダー名。
	ProviderTwitch = "twitch"
)

// TwitchOAuthConfig はTwitch OAuthプロバイダーの設定。
type TwitchOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL  string
	TokenURL string
	UsersURL string

	HTTPClient *http.Client
}

// TwitchOAuthProvider はTwitch OAuth 2.0（認可コードフロー）による認証を提供する。
type TwitchOAuthProvider struct {
	config TwitchOAuthConfig
}

// NewTwitchOAuthProvider はTwitchOAuthProviderを生成する。
func NewTwitchOAuthProvider(config TwitchOAuthConfig) *TwitchOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultTwitchAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultTwitchTokenURL
	}
	if config.UsersURL == "" {
		config.UsersURL = defaultTwitchUsersURL
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &TwitchOAuthProvider{config: config}
}

// GetLoginURL はTwitchの認証URLを生成する。
func (p *TwitchOAuthProvider) GetLoginURL(state string) string {
	params := url.Values{
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.config.RedirectURL},
		"response_type": {"code"},
		"scope":         {"user:read:email"},
		"state":         {state},
	}
	return p.config.AuthURL + "?" + params.Encode()
}

type twitchTokenResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int      `json:"expires_in"`
	Scope        []string `json:"scope"`
	TokenType    string   `json:"token_type"`
}

// twitchUser はHelix Get Usersのレスポンス要素。
type twitchUser struct {
	ID              string `json:"id"`
	Login           string `json:"login"`
	DisplayName     string `json:"display_name"`
	ProfileImageURL string `json:"profile_image_url"`
}

type twitchUsersResponse struct {
	Data []twitchUser `json:"data"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、ユーザー情報を取得する。
func (p *TwitchOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	tokenResp, err := p.exchangeToken(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	user, err := p.fetchUser(ctx, tokenResp.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}

	return &OAuthUserInfo{
		ProviderUserID: user.ID,
		Name:           user.Login,
		DisplayName:    user.DisplayName,
		AvatarURL:      user.ProfileImageURL,
		Provider:       ProviderTwitch,
	}, nil
}

func (p *TwitchOAuthProvider) exchangeToken(ctx context.Context, code string) (*twitchTokenResponse, error) {
	data := url.Values{
		"code":          {code},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"redirect_uri":  {p.config.RedirectURL},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := p.do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}

	var tokenResp twitchTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}
	return &tokenResp, nil
}

// fetchUser はトークン所有者のTwitchユーザーを取得する。
// HelixはAuthorizationに加えてClient-Idヘッダーを要求する。
func (p *TwitchOAuthProvider) fetchUser(ctx context.Context, accessToken string) (*twitchUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.UsersURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create users request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Client-Id", p.config.ClientID)

	body, err := p.do(req)
	if err != nil {
		return nil, fmt.Errorf("users request: %w", err)
	}

	var usersResp twitchUsersResponse
	if err := json.Unmarshal(body, &usersResp); err != nil {
		return nil, fmt.Errorf("failed to parse users response: %w", err)
	}
	if len(usersResp.Data) == 0 || usersResp.Data[0].ID == "" {
		return nil, fmt.Errorf("empty user in users response")
	}
	return &usersResp.Data[0], nil
}

func (p *TwitchOAuthProvider) do(req *http.Request) ([]byte, error) {
	resp, err := p.config.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// compile-time interface check
var _ OAuthProvider = (*TwitchOAuthProvider)(nil)
