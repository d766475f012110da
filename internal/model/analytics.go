package model

import "time"

// DriverDailyStat は1日単位の運転スコアとトリップ数を表す。
type DriverDailyStat struct {
	UserID string
	Day    time.Time
	Score  int
	Trips  int
}

// SpeedSample は速度と制限速度の計測点を表す。
type SpeedSample struct {
	UserID    string
	SampledAt time.Time
	SpeedKph  int
	LimitKph  int
}

// DrivingEventKind は運転挙動イベントの種別を表す。
type DrivingEventKind string

const (
	EventSmooth          DrivingEventKind = "smooth"
	EventModerateBraking DrivingEventKind = "moderate_braking"
	EventHarsh           DrivingEventKind = "harsh"
)

// BehaviorBreakdown は運転挙動の構成比（パーセント）を表す。
type BehaviorBreakdown struct {
	SmoothPct          int
	ModerateBrakingPct int
	HarshPct           int
}

// DriverReport はドライバー分析画面に表示する集計結果を表す。
type DriverReport struct {
	OverallScore int
	ScoreChange  int
	Daily        []DriverDailyStat
	Speed        []SpeedSample
	Behavior     BehaviorBreakdown
}
