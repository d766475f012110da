// Package reconciler はIdPセッションとプロファイルレコードを照合し、
// アプリケーションが参照する唯一のユーザー射影を管理する。
//
// 射影はセッションイベント観測時に即座に（楽観的に）構築され、
// 非同期のプロファイル取得が解決した時点でレコード由来の値に置き換わる。
// プロファイルストアの失敗は記録されるのみで、認証の成立を妨げない。
//
// プロバイダは自身の状態変化に対してセッションイベントを同期的に
// 発火しうるため、SignupやLoginWithGoogleではイベント由来の粗い射影が
// リッチな射影より先に適用されることがある。同一IDのマージ規則により
// 最終的な射影は適用順序に依存しない。
package reconciler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/roadwatch/internal/identity"
	"github.com/hitoshi/roadwatch/internal/model"
)

// State はリコンサイラの状態を表す。
type State int

const (
	// StateInitializing は最初のセッションイベント受信前の状態。
	StateInitializing State = iota
	// StateAuthenticatedOptimistic はセッション情報のみから射影を構築した状態。
	StateAuthenticatedOptimistic
	// StateAuthenticatedReconciled はプロファイルレコードを反映済みの状態。
	StateAuthenticatedReconciled
	// StateUnauthenticated はセッション不在の状態。
	StateUnauthenticated
)

// String はStateの文字列表現を返す。
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAuthenticatedOptimistic:
		return "authenticated_optimistic"
	case StateAuthenticatedReconciled:
		return "authenticated_reconciled"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Provider はリコンサイラが必要とするIdPアダプタのインターフェース。
type Provider interface {
	// Subscribe はセッション変化イベントの購読を登録し、解除関数を返す。
	Subscribe(fn func(*identity.Session)) func()
	// SignInWithCredential はメールアドレスとパスワードでサインインする。
	SignInWithCredential(ctx context.Context, email, password string) error
	// CreateAccount は新規アカウントを作成し、セッション記述子を返す。
	CreateAccount(ctx context.Context, email, password string) (*identity.Session, error)
	// UpdateDisplayName はIdP側の表示名を更新する（ベストエフォート）。
	UpdateDisplayName(ctx context.Context, name string) error
	// SignInFederated は連携資格情報でサインインし、セッション記述子を返す。
	SignInFederated(ctx context.Context, credential string) (*identity.Session, error)
	// SignOut はIdPセッションを破棄する。
	SignOut(ctx context.Context) error
}

// ProfileStore はリコンサイラが必要とするプロファイルストアのインターフェース。
type ProfileStore interface {
	// GetProfile は指定IDのプロファイルレコードを取得する。見つからない場合はnilを返す。
	GetProfile(ctx context.Context, id string) (*model.ProfileRecord, error)
	// SetProfile はプロファイルレコードを保存する。
	SetProfile(ctx context.Context, id string, record *model.ProfileRecord) error
}

// Metrics は照合の結果を記録するフック。未設定の場合は何も記録しない。
type Metrics interface {
	RecordReconciliation()
	RecordProfileSyncFailure()
}

// Reconciler は唯一のユーザー射影とloadingフラグを所有する。
// 射影を変更する書き手はこの型のみで、他のコンポーネントは読み取りのみを行う。
type Reconciler struct {
	provider Provider
	store    ProfileStore
	logger   *slog.Logger
	metrics  Metrics

	mu      sync.Mutex
	user    *model.User
	state   State
	loading bool

	unsubscribe func()
	tasks       sync.WaitGroup
}

// New はReconcilerを生成し、IdPのセッション変化ストリームを購読する。
// 購読はCloseで解除される。
func New(provider Provider, store ProfileStore, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reconciler{
		provider: provider,
		store:    store,
		logger:   logger,
		state:    StateInitializing,
		loading:  true,
	}
	r.unsubscribe = provider.Subscribe(r.handleSessionChange)
	return r
}

// SetMetrics はメトリクス収集のフックを設定する。
// 購読開始前（生成直後）に呼び出すこと。
func (r *Reconciler) SetMetrics(m Metrics) {
	r.metrics = m
}

// Close は購読を解除し、追跡中のバックグラウンドタスクの完了を待つ。
func (r *Reconciler) Close() {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
	r.tasks.Wait()
}

// Wait は進行中のプロファイル取得・保存タスクの完了を待つ。
// テストで非同期処理の決定的な待ち合わせに使用する。
func (r *Reconciler) Wait() {
	r.tasks.Wait()
}

// User は現在のユーザー射影のコピーを返す。未認証時はnil。
func (r *Reconciler) User() *model.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.user == nil {
		return nil
	}
	u := *r.user
	return &u
}

// Loading は最初のセッションイベントが未処理かどうかを返す。
func (r *Reconciler) Loading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loading
}

// IsAuthenticated はユーザー射影が存在するかどうかを返す。
func (r *Reconciler) IsAuthenticated() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.user != nil
}

// State は現在の状態を返す。
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Login はIdPに資格情報の検証を委譲する。
// 射影の更新は後続のセッション変化イベントに委ねる。
// 失敗時はidentity.AuthErrorに分類されたエラーを返す。
func (r *Reconciler) Login(ctx context.Context, email, password string) error {
	return r.provider.SignInWithCredential(ctx, email, password)
}

// Signup は新規アカウントを作成し、呼び出し元が与えた表示名と
// アカウント種別で即座にローカル射影を設定する。
// プロファイルレコードの永続化は非同期に行われ、失敗しても
// サインアップ自体の成功は覆らない（記録のみ）。
func (r *Reconciler) Signup(ctx context.Context, email, password, fullName string, accountType model.AccountType) error {
	sess, err := r.provider.CreateAccount(ctx, email, password)
	if err != nil {
		return err
	}

	// IdP側の表示名設定はベストエフォート
	if err := r.provider.UpdateDisplayName(ctx, fullName); err != nil {
		r.logger.Warn("IdPの表示名更新に失敗しました",
			slog.String("user_id", sess.ID),
			slog.String("error", err.Error()),
		)
	}

	userEmail := sess.Email
	if userEmail == "" {
		userEmail = email
	}

	// セッションエコーより豊かな射影を同期的に設定する。
	// 後続のエコーはReconcileの同一IDマージ規則により表示名を劣化させない。
	r.mu.Lock()
	r.user = &model.User{
		ID:          sess.ID,
		Email:       userEmail,
		FullName:    fullName,
		AccountType: accountType,
	}
	r.state = StateAuthenticatedOptimistic
	r.loading = false
	r.mu.Unlock()

	now := time.Now()
	record := &model.ProfileRecord{
		UserID:      sess.ID,
		Email:       email,
		FullName:    fullName,
		AccountType: accountType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	r.tasks.Add(1)
	go func() {
		defer r.tasks.Done()
		if err := r.store.SetProfile(context.Background(), sess.ID, record); err != nil {
			r.logger.Error("プロファイルレコードの保存に失敗しました（サインアップは成立済み）",
				slog.String("user_id", sess.ID),
				slog.String("error", err.Error()),
			)
			if r.metrics != nil {
				r.metrics.RecordProfileSyncFailure()
			}
		}
	}()

	return nil
}

// LoginWithGoogle は連携資格情報でサインインし、連携アイデンティティから
// 即座に楽観的射影を設定する。その後のプロファイルレコードの取得・作成・
// 反映はすべて非同期で、いずれが失敗しても操作自体は成功として扱う。
// 連携サインインの交換そのものの失敗のみが呼び出し元へ伝播する。
func (r *Reconciler) LoginWithGoogle(ctx context.Context, credential string) error {
	sess, err := r.provider.SignInFederated(ctx, credential)
	if err != nil {
		return err
	}

	fullName := sess.DisplayName
	if fullName == "" {
		fullName = fallbackFederatedName
	}

	r.mu.Lock()
	r.user = &model.User{
		ID:          sess.ID,
		Email:       sess.Email,
		FullName:    fullName,
		AccountType: model.AccountTypeIndividual,
		Avatar:      sess.PhotoURL,
	}
	r.state = StateAuthenticatedOptimistic
	r.loading = false
	r.mu.Unlock()

	sessCopy := *sess
	r.tasks.Add(1)
	go func() {
		defer r.tasks.Done()
		ctx := context.Background()

		record, err := r.store.GetProfile(ctx, sessCopy.ID)
		if err != nil {
			r.logger.Warn("プロファイルの取得に失敗しました（楽観的射影を維持します）",
				slog.String("user_id", sessCopy.ID),
				slog.String("error", err.Error()),
			)
			return
		}

		if record == nil {
			now := time.Now()
			seeded := &model.ProfileRecord{
				UserID:      sessCopy.ID,
				Email:       sessCopy.Email,
				FullName:    fullName,
				AccountType: model.AccountTypeIndividual,
				Avatar:      sessCopy.PhotoURL,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := r.store.SetProfile(ctx, sessCopy.ID, seeded); err != nil {
				r.logger.Warn("プロファイルレコードの作成に失敗しました（楽観的射影を維持します）",
					slog.String("user_id", sessCopy.ID),
					slog.String("error", err.Error()),
				)
				if r.metrics != nil {
					r.metrics.RecordProfileSyncFailure()
				}
			}
			return
		}

		r.applyRecord(&sessCopy, record)
	}()

	return nil
}

// Logout はIdPにサインアウトを委譲する。
// 射影のクリアは後続のセッション不在イベントに委ねる。
func (r *Reconciler) Logout(ctx context.Context) error {
	return r.provider.SignOut(ctx)
}

// handleSessionChange はIdPのセッション変化イベントを処理する。
// イベントはIdPアダプタが発行した順に処理される。
func (r *Reconciler) handleSessionChange(s *identity.Session) {
	if s == nil {
		r.mu.Lock()
		r.user = nil
		r.state = StateUnauthenticated
		r.loading = false
		r.mu.Unlock()
		return
	}

	r.mu.Lock()
	sameID := r.user != nil && r.user.ID == s.ID
	r.user = Reconcile(r.user, s, nil)
	// 既に照合済みの同一ユーザーに対するエコーでは状態を巻き戻さない
	if !(sameID && r.state == StateAuthenticatedReconciled) {
		r.state = StateAuthenticatedOptimistic
	}
	r.loading = false
	r.mu.Unlock()

	sessCopy := *s
	r.tasks.Add(1)
	go func() {
		defer r.tasks.Done()

		record, err := r.store.GetProfile(context.Background(), sessCopy.ID)
		if err != nil {
			// オフラインや権限不足は致命的でない。楽観的射影のまま続行する。
			r.logger.Warn("プロファイルの取得に失敗しました（楽観的射影を維持します）",
				slog.String("user_id", sessCopy.ID),
				slog.String("error", err.Error()),
			)
			return
		}
		if record == nil {
			return
		}

		r.applyRecord(&sessCopy, record)
	}()
}

// applyRecord はプロファイルレコードを射影に反映する。
// サインアウト済み、または別ユーザーのセッションに切り替わっている場合、
// 遅延して到着した取得結果は破棄する。
func (r *Reconciler) applyRecord(sess *identity.Session, record *model.ProfileRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.user == nil || r.user.ID != sess.ID {
		r.logger.Info("古いプロファイル取得結果を破棄しました",
			slog.String("fetched_user_id", sess.ID),
		)
		return
	}

	r.user = Reconcile(r.user, sess, record)
	r.state = StateAuthenticatedReconciled
	if r.metrics != nil {
		r.metrics.RecordReconciliation()
	}
}
