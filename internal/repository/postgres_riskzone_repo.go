package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/roadwatch/internal/model"
)

// PostgresRiskZoneRepo はPostgreSQLを使用したリスクゾーンリポジトリ。
type PostgresRiskZoneRepo struct {
	db *sql.DB
}

// NewPostgresRiskZoneRepo はPostgresRiskZoneRepoを生成する。
func NewPostgresRiskZoneRepo(db *sql.DB) *PostgresRiskZoneRepo {
	return &PostgresRiskZoneRepo{db: db}
}

const riskZoneColumns = `id, name, zone_type, severity, description, reports, last_reported_at, loc_x, loc_y, created_at`

func scanRiskZone(scan func(dest ...any) error) (*model.RiskZone, error) {
	zone := &model.RiskZone{}
	err := scan(
		&zone.ID, &zone.Name, &zone.Type, &zone.Severity, &zone.Description,
		&zone.Reports, &zone.LastReportedAt, &zone.LocX, &zone.LocY, &zone.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return zone, nil
}

// FindByID は指定IDのリスクゾーンを取得する。見つからない場合はnilを返す。
func (r *PostgresRiskZoneRepo) FindByID(ctx context.Context, id string) (*model.RiskZone, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+riskZoneColumns+` FROM risk_zones WHERE id = $1`,
		id,
	)
	zone, err := scanRiskZone(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("リスクゾーンの取得に失敗しました: %w", err)
	}
	return zone, nil
}

// List はリスクゾーン一覧をlast_reported_at降順で返す。
// severityが空でない場合は深刻度で絞り込む。
func (r *PostgresRiskZoneRepo) List(ctx context.Context, severity model.ZoneSeverity, limit int) ([]*model.RiskZone, error) {
	query := `SELECT ` + riskZoneColumns + ` FROM risk_zones`
	args := []any{}
	if severity != "" {
		query += ` WHERE severity = $1`
		args = append(args, severity)
	}
	query += fmt.Sprintf(` ORDER BY last_reported_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("リスクゾーン一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var zones []*model.RiskZone
	for rows.Next() {
		zone, err := scanRiskZone(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("リスクゾーンの読み取りに失敗しました: %w", err)
		}
		zones = append(zones, zone)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("リスクゾーン一覧の走査に失敗しました: %w", err)
	}
	return zones, nil
}

// ListHighSeverity は深刻度highのゾーン一覧を返す。
func (r *PostgresRiskZoneRepo) ListHighSeverity(ctx context.Context) ([]*model.RiskZone, error) {
	return r.List(ctx, model.SeverityHigh, 1000)
}

// Create はリスクゾーンを作成する。
func (r *PostgresRiskZoneRepo) Create(ctx context.Context, zone *model.RiskZone) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO risk_zones (id, name, zone_type, severity, description, reports, last_reported_at, loc_x, loc_y, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		zone.ID, zone.Name, zone.Type, zone.Severity, zone.Description,
		zone.Reports, zone.LastReportedAt, zone.LocX, zone.LocY, zone.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("リスクゾーンの作成に失敗しました: %w", err)
	}
	return nil
}

// AddReport は報告数を加算し、深刻度と最終報告日時を更新する。
// 更新後のゾーンを返す。ゾーンが存在しない場合はnilを返す。
func (r *PostgresRiskZoneRepo) AddReport(ctx context.Context, id string, severity model.ZoneSeverity, reportedAt time.Time) (*model.RiskZone, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE risk_zones
		 SET reports = reports + 1, severity = $2, last_reported_at = $3
		 WHERE id = $1
		 RETURNING `+riskZoneColumns,
		id, severity, reportedAt,
	)
	zone, err := scanRiskZone(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("リスクゾーンの報告更新に失敗しました: %w", err)
	}
	return zone, nil
}

// DeleteStale は最終報告日時が指定日時より古いゾーンを削除し、削除件数を返す。
func (r *PostgresRiskZoneRepo) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM risk_zones WHERE last_reported_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("古いリスクゾーンの削除に失敗しました: %w", err)
	}
	return result.RowsAffected()
}

// compile-time interface check
var _ RiskZoneRepository = (*PostgresRiskZoneRepo)(nil)
