package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

const (
	defaultAccountsBaseURL = "https://identitytoolkit.googleapis.com/v1"
	defaultTokenBaseURL    = "https://securetoken.googleapis.com/v1"
)

// ClientConfig はIdP RESTクライアントの設定。
type ClientConfig struct {
	APIKey string

	// テスト用にオーバーライド可能なURL
	AccountsBaseURL string
	TokenBaseURL    string
}

// Client はホスト型認証サービスのREST APIに対するIdPアダプタ。
// 1つのClientが1つのIdPセッションスコープ（1ログイン分）を保持し、
// セッション状態が変化するたびに購読者へイベントを通知する。
// 通知は現在のセッション記述子（サインイン中）またはnil（サインアウト中）を渡す。
type Client struct {
	config     ClientConfig
	httpClient *http.Client

	mu           sync.Mutex
	session      *Session
	idToken      string
	refreshToken string
	listeners    map[int]func(*Session)
	nextListener int
}

// NewClient はClientを生成する。
func NewClient(config ClientConfig) *Client {
	if config.AccountsBaseURL == "" {
		config.AccountsBaseURL = defaultAccountsBaseURL
	}
	if config.TokenBaseURL == "" {
		config.TokenBaseURL = defaultTokenBaseURL
	}
	return &Client{
		config:     config,
		httpClient: http.DefaultClient,
		listeners:  make(map[int]func(*Session)),
	}
}

// Subscribe はセッション変化イベントの購読を登録し、解除関数を返す。
// 登録時点の状態（未サインインであればnil）を同期的に1回通知する。
func (c *Client) Subscribe(fn func(*Session)) func() {
	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	current := c.session
	c.mu.Unlock()

	fn(copySession(current))

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// RefreshToken は現在のIdPセッションのリフレッシュトークンを返す。
// セッション復元用にサーバーセッションへ保存される。未サインイン時は空文字。
func (c *Client) RefreshToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshToken
}

// signInResponse はsignInWithPassword / signUp / signInWithIdpのレスポンス。
type signInResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	PhotoURL     string `json:"photoUrl"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
}

// SignInWithCredential はメールアドレスとパスワードでサインインする。
// 成功時はセッション変化イベントが発火する。
// 失敗時はAuthErrorに分類されたエラーを返す。
func (c *Client) SignInWithCredential(ctx context.Context, email, password string) error {
	var resp signInResponse
	err := c.postAccounts(ctx, "accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return err
	}

	c.setSession(&Session{
		ID:          resp.LocalID,
		Email:       resp.Email,
		DisplayName: resp.DisplayName,
		PhotoURL:    resp.PhotoURL,
	}, resp.IDToken, resp.RefreshToken)
	return nil
}

// CreateAccount は新規アカウントを作成し、作成されたセッション記述子を返す。
// 成功時はセッション変化イベントも発火する。
func (c *Client) CreateAccount(ctx context.Context, email, password string) (*Session, error) {
	var resp signInResponse
	err := c.postAccounts(ctx, "accounts:signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	session := &Session{
		ID:    resp.LocalID,
		Email: resp.Email,
	}
	c.setSession(session, resp.IDToken, resp.RefreshToken)
	return copySession(session), nil
}

// UpdateDisplayName はIdP側の表示名を更新する（ベストエフォート）。
// セッション変化イベントは発火しない。
func (c *Client) UpdateDisplayName(ctx context.Context, name string) error {
	c.mu.Lock()
	idToken := c.idToken
	c.mu.Unlock()

	if idToken == "" {
		return fmt.Errorf("no active session")
	}

	err := c.postAccounts(ctx, "accounts:update", map[string]any{
		"idToken":           idToken,
		"displayName":       name,
		"returnSecureToken": false,
	}, &struct{}{})
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.session != nil {
		c.session.DisplayName = name
	}
	c.mu.Unlock()
	return nil
}

// SignInFederated はGoogle連携のIDトークンでサインインし、
// 連携アイデンティティのセッション記述子を返す。
// 成功時はセッション変化イベントも発火する。
func (c *Client) SignInFederated(ctx context.Context, idToken string) (*Session, error) {
	var resp signInResponse
	err := c.postAccounts(ctx, "accounts:signInWithIdp", map[string]any{
		"postBody":            "id_token=" + url.QueryEscape(idToken) + "&providerId=google.com",
		"requestUri":          "http://localhost",
		"returnSecureToken":   true,
		"returnIdpCredential": true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	session := &Session{
		ID:          resp.LocalID,
		Email:       resp.Email,
		DisplayName: resp.DisplayName,
		PhotoURL:    resp.PhotoURL,
	}
	c.setSession(session, resp.IDToken, resp.RefreshToken)
	return copySession(session), nil
}

// SignOut はローカルのIdPセッションを破棄する。
// セッション不在のイベントが発火する。リモート呼び出しは行わない。
func (c *Client) SignOut(ctx context.Context) error {
	c.setSession(nil, "", "")
	return nil
}

// refreshResponse はトークンリフレッシュエンドポイントのレスポンス。
type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
}

// lookupResponse はaccounts:lookupのレスポンス。
type lookupResponse struct {
	Users []struct {
		LocalID     string `json:"localId"`
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
		PhotoURL    string `json:"photoUrl"`
	} `json:"users"`
}

// RestoreSession は保存済みリフレッシュトークンからIdPセッションを復元する。
// アプリケーション起動後の最初のセッション確立（session-restore）に使用する。
// 成功時はセッション変化イベントが発火する。
func (c *Client) RestoreSession(ctx context.Context, refreshToken string) error {
	// 1. リフレッシュトークンをIDトークンに交換
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	endpoint := c.config.TokenBaseURL + "/token?key=" + url.QueryEscape(c.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create token refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.do(req)
	if err != nil {
		return err
	}

	var refreshed refreshResponse
	if err := json.Unmarshal(body, &refreshed); err != nil {
		return fmt.Errorf("failed to parse token refresh response: %w", err)
	}
	if refreshed.IDToken == "" || refreshed.UserID == "" {
		return fmt.Errorf("empty token in refresh response")
	}

	// 2. IDトークンでプロフィール属性を取得
	var looked lookupResponse
	if err := c.postAccounts(ctx, "accounts:lookup", map[string]any{
		"idToken": refreshed.IDToken,
	}, &looked); err != nil {
		return err
	}

	session := &Session{ID: refreshed.UserID}
	if len(looked.Users) > 0 {
		session.Email = looked.Users[0].Email
		session.DisplayName = looked.Users[0].DisplayName
		session.PhotoURL = looked.Users[0].PhotoURL
	}

	c.setSession(session, refreshed.IDToken, refreshed.RefreshToken)
	return nil
}

// setSession はセッション状態を更新し、全購読者へイベントを通知する。
func (c *Client) setSession(s *Session, idToken, refreshToken string) {
	c.mu.Lock()
	c.session = s
	c.idToken = idToken
	c.refreshToken = refreshToken
	fns := make([]func(*Session), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(copySession(s))
	}
}

// postAccounts はaccountsエンドポイントにJSONをPOSTし、レスポンスをデコードする。
func (c *Client) postAccounts(ctx context.Context, action string, payload map[string]any, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s?key=%s", c.config.AccountsBaseURL, action, url.QueryEscape(c.config.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// providerErrorBody はIdPのエラーレスポンス形式。
// messageには "WEAK_PASSWORD : Password should be ..." のような
// コード＋補足説明の形式が入ることがある。
type providerErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// do はHTTPリクエストを実行し、非2xxレスポンスをAuthErrorへ分類する。
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewAuthError(KindUnknown, "", fmt.Errorf("identity request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewAuthError(KindUnknown, "", fmt.Errorf("failed to read identity response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		code := parseProviderErrorCode(body)
		return nil, NewAuthError(classifyProviderCode(code), code,
			fmt.Errorf("identity request failed with status %d", resp.StatusCode))
	}

	return body, nil
}

// parseProviderErrorCode はエラーレスポンスから先頭のエラーコードを取り出す。
func parseProviderErrorCode(body []byte) string {
	var eb providerErrorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	msg := eb.Error.Message
	if i := strings.IndexAny(msg, " :"); i > 0 {
		msg = msg[:i]
	}
	return msg
}

// copySession はセッション記述子のコピーを返す。nilはnilのまま返す。
func copySession(s *Session) *Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
