// Package auth はログインセッション管理とIdP認証フローの調停を提供する。
// ログインごとにIdPスコープとリコンサイラのペアを生成し、
// サーバーセッションIDをキーとするレジストリで保持する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/roadwatch/internal/identity"
	"github.com/hitoshi/roadwatch/internal/model"
	"github.com/hitoshi/roadwatch/internal/reconciler"
	"github.com/hitoshi/roadwatch/internal/repository"
)

// IdentityScope は1ログイン分のIdPセッションスコープを表す。
// reconciler.Providerに加え、セッション復元用の操作を提供する。
type IdentityScope interface {
	reconciler.Provider

	// RefreshToken は現在のIdPセッションのリフレッシュトークンを返す。
	RefreshToken() string

	// RestoreSession は保存済みリフレッシュトークンからIdPセッションを復元する。
	RestoreSession(ctx context.Context, refreshToken string) error
}

// FederatedProvider はGoogle連携サインインの認可コードフローを処理する。
type FederatedProvider interface {
	// GetLoginURL は同意画面の認可URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをIDトークンに交換する。
	ExchangeCode(ctx context.Context, code string) (string, error)
	// ClassifyCallbackError はコールバックのerrorパラメータを分類する。
	ClassifyCallbackError(code string) error
}

// Metrics は認証フローの結果を記録するフック。未設定の場合は何も記録しない。
// リコンサイラのフックを含み、ログインごとのリコンサイラにも伝播される。
type Metrics interface {
	reconciler.Metrics

	RecordLoginSuccess(method string)
	RecordLoginFailure(method string, code string)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge      int           // セッション有効期間（秒）
	ScopeSweepInterval time.Duration // 期限切れスコープ掃除の間隔（0はデフォルト）
}

// defaultScopeSweepInterval は期限切れスコープ掃除のデフォルト間隔。
const defaultScopeSweepInterval = 10 * time.Minute

// loginScope はログイン1件分のIdPスコープとリコンサイラのペア。
// expiresAtはサーバーセッションの失効時刻で、掃除ループの判定に使う。
type loginScope struct {
	identity  IdentityScope
	rec       *reconciler.Reconciler
	expiresAt time.Time
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	newScope    func() IdentityScope
	federated   FederatedProvider
	profileRepo repository.ProfileRepository
	sessionRepo repository.SessionRepository
	logger      *slog.Logger
	config      ServiceConfig
	metrics     Metrics

	mu     sync.Mutex
	scopes map[string]*loginScope
	stopCh chan struct{}
}

// NewService はServiceを生成する。
// newScopeはログインごとに新しいIdPスコープを生成するファクトリ。
func NewService(
	newScope func() IdentityScope,
	federated FederatedProvider,
	profileRepo repository.ProfileRepository,
	sessionRepo repository.SessionRepository,
	logger *slog.Logger,
	config ServiceConfig,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if config.ScopeSweepInterval <= 0 {
		config.ScopeSweepInterval = defaultScopeSweepInterval
	}
	s := &Service{
		newScope:    newScope,
		federated:   federated,
		profileRepo: profileRepo,
		sessionRepo: sessionRepo,
		logger:      logger,
		config:      config,
		scopes:      make(map[string]*loginScope),
		stopCh:      make(chan struct{}),
	}

	go s.sweepLoop()

	return s
}

// SetMetrics はメトリクス収集のフックを設定する。
// ログイン処理の開始前に呼び出すこと。
func (s *Service) SetMetrics(m Metrics) {
	s.metrics = m
}

// Login はメールアドレスとパスワードでサインインし、サーバーセッションを発行する。
// 失敗時はidentity.AuthErrorに分類されたエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*model.Session, *model.User, error) {
	scope := s.buildScope()

	if err := scope.rec.Login(ctx, email, password); err != nil {
		scope.rec.Close()
		s.recordLogin("password", err)
		return nil, nil, err
	}

	session, user, err := s.establishSession(ctx, scope)
	s.recordLogin("password", err)
	return session, user, err
}

// Signup は新規アカウントを作成し、サーバーセッションを発行する。
func (s *Service) Signup(ctx context.Context, email, password, fullName string, accountType model.AccountType) (*model.Session, *model.User, error) {
	if !model.ValidAccountType(accountType) {
		return nil, nil, fmt.Errorf("invalid account type: %s", accountType)
	}

	scope := s.buildScope()

	if err := scope.rec.Signup(ctx, email, password, fullName, accountType); err != nil {
		scope.rec.Close()
		s.recordLogin("signup", err)
		return nil, nil, err
	}

	session, user, err := s.establishSession(ctx, scope)
	s.recordLogin("signup", err)
	return session, user, err
}

// GetGoogleLoginURL はGoogle同意画面の認可URLを生成する。
func (s *Service) GetGoogleLoginURL(state string) string {
	return s.federated.GetLoginURL(state)
}

// GoogleCallbackError はコールバックのerrorパラメータをAuthErrorへ分類する。
func (s *Service) GoogleCallbackError(code string) error {
	return s.federated.ClassifyCallbackError(code)
}

// HandleGoogleCallback はGoogle認可コードを処理し、サーバーセッションを発行する。
// 認可コードをIDトークンに交換し、連携サインインを実行する。
func (s *Service) HandleGoogleCallback(ctx context.Context, code string) (*model.Session, *model.User, error) {
	credential, err := s.federated.ExchangeCode(ctx, code)
	if err != nil {
		s.recordLogin("google", err)
		return nil, nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	scope := s.buildScope()

	if err := scope.rec.LoginWithGoogle(ctx, credential); err != nil {
		scope.rec.Close()
		s.recordLogin("google", err)
		return nil, nil, err
	}

	session, user, err := s.establishSession(ctx, scope)
	s.recordLogin("google", err)
	return session, user, err
}

// Logout はIdPセッションとサーバーセッションの両方を破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	s.mu.Lock()
	scope := s.scopes[sessionID]
	delete(s.scopes, sessionID)
	s.mu.Unlock()

	if scope != nil {
		if err := scope.rec.Logout(ctx); err != nil {
			s.logger.Warn("IdPサインアウトに失敗しました",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()),
			)
		}
		scope.rec.Close()
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	s.logger.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// CurrentUser はセッションIDから現在のユーザー射影を返す。
// レジストリにスコープが残っていてもセッション行の失効判定が先で、
// 期限切れ・削除済みのセッションは残存スコープごと破棄する。
// プロセス再起動などでレジストリにスコープが無い場合、保存済みの
// リフレッシュトークンからIdPセッションを復元する（session-restore）。
func (s *Service) CurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		s.evictScope(sessionID)
		return nil, fmt.Errorf("session not found or expired")
	}

	s.mu.Lock()
	scope := s.scopes[sessionID]
	s.mu.Unlock()

	if scope == nil {
		restored, err := s.restoreScope(ctx, session)
		if err != nil {
			return nil, err
		}
		scope = restored
	}

	user := scope.rec.User()
	if user == nil {
		return nil, fmt.Errorf("session not authenticated")
	}
	return user, nil
}

// evictScope はレジストリからスコープを取り除き、残っていれば閉じる。
func (s *Service) evictScope(sessionID string) {
	s.mu.Lock()
	scope := s.scopes[sessionID]
	delete(s.scopes, sessionID)
	s.mu.Unlock()

	if scope != nil {
		scope.rec.Close()
	}
}

// sweepLoop は期限切れセッションの残存スコープを定期的に破棄する。
func (s *Service) sweepLoop() {
	ticker := time.NewTicker(s.config.ScopeSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepExpiredScopes()
		case <-s.stopCh:
			return
		}
	}
}

// sweepExpiredScopes は失効時刻を過ぎたスコープをレジストリから取り除いて閉じる。
// ログアウトせずに放置されたセッションのスコープが溜まり続けるのを防ぐ。
func (s *Service) sweepExpiredScopes() {
	now := time.Now()

	var expired []*loginScope
	s.mu.Lock()
	for id, scope := range s.scopes {
		if now.After(scope.expiresAt) {
			delete(s.scopes, id)
			expired = append(expired, scope)
		}
	}
	s.mu.Unlock()

	for _, scope := range expired {
		scope.rec.Close()
	}

	if len(expired) > 0 {
		s.logger.Info("expired login scopes swept", slog.Int("count", len(expired)))
	}
}

// Close は掃除ループを停止し、保持中の全ログインスコープを閉じる。
func (s *Service) Close() {
	close(s.stopCh)

	s.mu.Lock()
	scopes := make([]*loginScope, 0, len(s.scopes))
	for _, scope := range s.scopes {
		scopes = append(scopes, scope)
	}
	s.scopes = make(map[string]*loginScope)
	s.mu.Unlock()

	for _, scope := range scopes {
		scope.rec.Close()
	}
}

// buildScope は新しいIdPスコープとリコンサイラのペアを生成する。
func (s *Service) buildScope() *loginScope {
	idScope := s.newScope()
	rec := reconciler.New(idScope, s.profileRepo, s.logger)
	if s.metrics != nil {
		rec.SetMetrics(s.metrics)
	}
	return &loginScope{identity: idScope, rec: rec}
}

// recordLogin はログイン試行の結果をメトリクスに記録する。
func (s *Service) recordLogin(method string, err error) {
	if s.metrics == nil {
		return
	}
	if err == nil {
		s.metrics.RecordLoginSuccess(method)
		return
	}
	code := "unknown"
	var authErr *identity.AuthError
	if errors.As(err, &authErr) {
		code = authErr.Code
	}
	s.metrics.RecordLoginFailure(method, code)
}

// establishSession はサインイン済みスコープに対してサーバーセッションを発行し、
// スコープをレジストリに登録する。
func (s *Service) establishSession(ctx context.Context, scope *loginScope) (*model.Session, *model.User, error) {
	user := scope.rec.User()
	if user == nil {
		scope.rec.Close()
		return nil, nil, fmt.Errorf("sign-in did not produce a user projection")
	}

	sessionID, err := generateSessionID()
	if err != nil {
		scope.rec.Close()
		return nil, nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:           sessionID,
		UserID:       user.ID,
		RefreshToken: scope.identity.RefreshToken(),
		ExpiresAt:    time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt:    time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		scope.rec.Close()
		return nil, nil, fmt.Errorf("failed to save session: %w", err)
	}

	scope.expiresAt = session.ExpiresAt

	s.mu.Lock()
	s.scopes[sessionID] = scope
	s.mu.Unlock()

	s.logger.Info("session established",
		slog.String("session_id", sessionID),
		slog.String("user_id", user.ID),
	)

	return session, user, nil
}

// restoreScope は検証済みセッション行のリフレッシュトークンからIdPスコープを復元する。
func (s *Service) restoreScope(ctx context.Context, session *model.Session) (*loginScope, error) {
	if session.RefreshToken == "" {
		return nil, fmt.Errorf("session has no refresh token")
	}

	scope := s.buildScope()
	if err := scope.identity.RestoreSession(ctx, session.RefreshToken); err != nil {
		scope.rec.Close()
		return nil, fmt.Errorf("failed to restore identity session: %w", err)
	}
	scope.rec.Wait()
	scope.expiresAt = session.ExpiresAt

	s.mu.Lock()
	// 競合した場合は先に登録された方を優先する
	if existing, ok := s.scopes[session.ID]; ok {
		s.mu.Unlock()
		scope.rec.Close()
		return existing, nil
	}
	s.scopes[session.ID] = scope
	s.mu.Unlock()

	s.logger.Info("identity session restored",
		slog.String("session_id", session.ID),
		slog.String("user_id", session.UserID),
	)

	return scope, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
