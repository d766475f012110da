package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	defaultGoogleAuthURL  = "https://accounts.google.com/o/oauth2/auth"
	defaultGoogleTokenURL = "https://oauth2.googleapis.com/token"
)

// GoogleFederatedConfig はGoogle連携サインインの設定。
type GoogleFederatedConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL  string
	TokenURL string
}

// GoogleFederated はGoogle OAuth 2.0の認可コードフローを処理し、
// IdPのsignInFederatedに渡すIDトークンを取得する。
type GoogleFederated struct {
	config GoogleFederatedConfig
}

// NewGoogleFederated はGoogleFederatedを生成する。
func NewGoogleFederated(config GoogleFederatedConfig) *GoogleFederated {
	if config.AuthURL == "" {
		config.AuthURL = defaultGoogleAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultGoogleTokenURL
	}
	return &GoogleFederated{config: config}
}

// GetLoginURL はGoogle同意画面の認可URLを生成する。
// スコープにはopenid, email, profileを含む。
func (g *GoogleFederated) GetLoginURL(state string) string {
	params := url.Values{
		"client_id":     {g.config.ClientID},
		"redirect_uri":  {g.config.RedirectURL},
		"response_type": {"code"},
		"scope":         {"openid email profile"},
		"state":         {state},
	}
	return g.config.AuthURL + "?" + params.Encode()
}

// ClassifyCallbackError はコールバックのerrorクエリパラメータをAuthErrorへ分類する。
// ユーザーが同意画面を中断した場合などに使用する。
func (g *GoogleFederated) ClassifyCallbackError(code string) error {
	return NewAuthError(classifyOAuthCode(code), code,
		fmt.Errorf("federated sign-in callback returned error: %s", code))
}

// googleTokenResponse はGoogleのトークンエンドポイントのレスポンス。
type googleTokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// googleTokenError はGoogleのトークンエンドポイントのエラーレスポンス。
type googleTokenError struct {
	Error string `json:"error"`
}

// ExchangeCode は認可コードをIDトークンに交換する。
// 失敗時はAuthErrorに分類されたエラーを返す。
func (g *GoogleFederated) ExchangeCode(ctx context.Context, code string) (string, error) {
	data := url.Values{
		"code":          {code},
		"client_id":     {g.config.ClientID},
		"client_secret": {g.config.ClientSecret},
		"redirect_uri":  {g.config.RedirectURL},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", NewAuthError(KindUnknown, "", fmt.Errorf("token request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewAuthError(KindUnknown, "", fmt.Errorf("failed to read token response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		var te googleTokenError
		_ = json.Unmarshal(body, &te)
		return "", NewAuthError(classifyOAuthCode(te.Error), te.Error,
			fmt.Errorf("token exchange failed with status %d", resp.StatusCode))
	}

	var tokenResp googleTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}

	if tokenResp.IDToken == "" {
		return "", fmt.Errorf("empty id token in response")
	}

	return tokenResp.IDToken, nil
}
