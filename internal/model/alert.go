package model

import "time"

// AlertType はアラートの種別を表す。
type AlertType string

const (
	AlertTypeTraffic     AlertType = "traffic"
	AlertTypeEnforcement AlertType = "enforcement"
	AlertTypeWeather     AlertType = "weather"
	AlertTypeSafety      AlertType = "safety"
)

// ValidAlertType は既知のアラート種別かどうかを返す。
func ValidAlertType(t AlertType) bool {
	switch t {
	case AlertTypeTraffic, AlertTypeEnforcement, AlertTypeWeather, AlertTypeSafety:
		return true
	}
	return false
}

// AlertSeverity はアラートの深刻度を表す。
type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "info"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityCritical AlertSeverity = "critical"
)

// ValidAlertSeverity は既知のアラート深刻度かどうかを返す。
func ValidAlertSeverity(s AlertSeverity) bool {
	switch s {
	case AlertSeverityInfo, AlertSeverityWarning, AlertSeverityCritical:
		return true
	}
	return false
}

// AlertFilter はアラート一覧のフィルタ条件を表す。
type AlertFilter string

const (
	AlertFilterAll      AlertFilter = "all"
	AlertFilterUnread   AlertFilter = "unread"
	AlertFilterCritical AlertFilter = "critical"
)

// ValidAlertFilter は既知のフィルタかどうかを返す。
func ValidAlertFilter(f AlertFilter) bool {
	switch f {
	case AlertFilterAll, AlertFilterUnread, AlertFilterCritical:
		return true
	}
	return false
}

// Alert は交通・取締・気象・安全に関する通知を表す。
// SourceGUIDは外部アドバイザリフィード由来のアラートの同一性判定に使用する。
// ユーザー報告のアラートではSourceGUIDは空。
type Alert struct {
	ID          string
	Type        AlertType
	Title       string
	Message     string
	Location    string
	Severity    AlertSeverity
	IsVerified  bool
	SourceGUID  string
	PublishedAt time.Time
	CreatedAt   time.Time
}

// AlertState はユーザーごとのアラート既読状態を表す。
type AlertState struct {
	UserID    string
	AlertID   string
	IsRead    bool
	UpdatedAt time.Time
}

// AlertWithState はアラートとユーザーの既読状態を結合した構造体。
type AlertWithState struct {
	Alert
	IsRead bool
}
