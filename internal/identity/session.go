package identity

// Session はIdPが主張する認証済みセッションの記述子を表す。
// リコンサイラはこれを読み取り専用の入力として扱い、決して変更しない。
type Session struct {
	ID          string
	Email       string
	DisplayName string
	PhotoURL    string
}
