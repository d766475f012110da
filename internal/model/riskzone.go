package model

import "time"

// ZoneSeverity はリスクゾーンの深刻度を表す。
type ZoneSeverity string

const (
	SeverityLow    ZoneSeverity = "low"
	SeverityMedium ZoneSeverity = "medium"
	SeverityHigh   ZoneSeverity = "high"
)

// ValidZoneSeverity は既知の深刻度かどうかを返す。
func ValidZoneSeverity(s ZoneSeverity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// ZoneType はリスクゾーンの種別を表す。
type ZoneType string

const (
	ZoneTypeAccident      ZoneType = "accident"
	ZoneTypeRoadCondition ZoneType = "road_condition"
	ZoneTypeWeather       ZoneType = "weather"
	ZoneTypeConstruction  ZoneType = "construction"
)

// ValidZoneType は既知のゾーン種別かどうかを返す。
func ValidZoneType(t ZoneType) bool {
	switch t {
	case ZoneTypeAccident, ZoneTypeRoadCondition, ZoneTypeWeather, ZoneTypeConstruction:
		return true
	}
	return false
}

// RiskZone は報告の蓄積によって形成される危険区域を表す。
// Reportsは累計報告数。深刻度は報告数に応じて再計算される。
type RiskZone struct {
	ID             string
	Name           string
	Type           ZoneType
	Severity       ZoneSeverity
	Description    string
	Reports        int
	LastReportedAt time.Time
	LocX           float64
	LocY           float64
	CreatedAt      time.Time
}
