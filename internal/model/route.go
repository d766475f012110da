package model

// RouteOption は出発地から目的地への経路候補を表す。
// RiskScoreは0〜100で、経路上のアクティブなリスクゾーンから導出される。
type RouteOption struct {
	ID            string
	Name          string
	DistanceKm    float64
	DurationMin   int
	DelayMin      int
	RiskScore     int
	IsRecommended bool
	Features      []string
}
