package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"pharmunit/model"
)

// 文字列比較で時系列順になるよう、UTC・固定桁で保存する
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const packageUnitColumns = `
	id, product_code, generation_id, unit_name, unit_value,
	is_base_unit, is_active, effective_from, effective_to, version
`

type packageUnitRow struct {
	ID            int64          `db:"id"`
	ProductCode   string         `db:"product_code"`
	GenerationID  string         `db:"generation_id"`
	UnitName      string         `db:"unit_name"`
	UnitValue     int            `db:"unit_value"`
	IsBaseUnit    int            `db:"is_base_unit"`
	IsActive      int            `db:"is_active"`
	EffectiveFrom string         `db:"effective_from"`
	EffectiveTo   sql.NullString `db:"effective_to"`
	Version       int            `db:"version"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.ParseInLocation(timeLayout, s, time.UTC)
}

func (r packageUnitRow) toModel() (model.UnitDefinition, error) {
	from, err := parseTime(r.EffectiveFrom)
	if err != nil {
		return model.UnitDefinition{}, fmt.Errorf("invalid effective_from %q (id=%d): %w", r.EffectiveFrom, r.ID, err)
	}
	d := model.UnitDefinition{
		ID:            r.ID,
		ProductCode:   r.ProductCode,
		GenerationID:  r.GenerationID,
		UnitName:      r.UnitName,
		UnitValue:     r.UnitValue,
		IsBaseUnit:    r.IsBaseUnit == 1,
		IsActive:      r.IsActive == 1,
		EffectiveFrom: from,
		Version:       r.Version,
	}
	if r.EffectiveTo.Valid {
		to, err := parseTime(r.EffectiveTo.String)
		if err != nil {
			return model.UnitDefinition{}, fmt.Errorf("invalid effective_to %q (id=%d): %w", r.EffectiveTo.String, r.ID, err)
		}
		d.EffectiveTo = &to
	}
	return d, nil
}

func rowsToModels(rows []packageUnitRow) ([]model.UnitDefinition, error) {
	defs := make([]model.UnitDefinition, 0, len(rows))
	for _, r := range rows {
		d, err := r.toModel()
		if err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return defs, nil
}

// GetActivePackageUnits は製品の有効な世代を、単位の値の大きい順で取得します。
func GetActivePackageUnits(ctx context.Context, dbtx DBTX, productCode string) ([]model.UnitDefinition, error) {
	var rows []packageUnitRow
	q := `SELECT ` + packageUnitColumns + ` FROM package_units
		WHERE product_code = ? AND is_active = 1
		ORDER BY unit_value DESC`
	if err := dbtx.SelectContext(ctx, &rows, q, productCode); err != nil {
		return nil, fmt.Errorf("failed to get active package units for %s: %w", productCode, err)
	}
	return rowsToModels(rows)
}

// GetPackageUnitsAsOf は指定日時に有効だった世代を取得します。
// 切り替え時刻ちょうどの場合は新しい世代を優先します。
func GetPackageUnitsAsOf(ctx context.Context, dbtx DBTX, productCode string, at time.Time) ([]model.UnitDefinition, error) {
	var rows []packageUnitRow
	ts := formatTime(at)
	q := `SELECT ` + packageUnitColumns + ` FROM package_units
		WHERE product_code = ?
		  AND effective_from = (
			SELECT MAX(effective_from) FROM package_units
			WHERE product_code = ?
			  AND effective_from <= ?
			  AND (effective_to IS NULL OR effective_to >= ?)
		  )
		ORDER BY unit_value DESC`
	if err := dbtx.SelectContext(ctx, &rows, q, productCode, productCode, ts, ts); err != nil {
		return nil, fmt.Errorf("failed to get package units for %s as of %s: %w", productCode, ts, err)
	}
	return rowsToModels(rows)
}

// GetPackageUnitHistory は製品の全世代を新しい順に取得します。
func GetPackageUnitHistory(ctx context.Context, dbtx DBTX, productCode string) ([]model.UnitDefinition, error) {
	var rows []packageUnitRow
	q := `SELECT ` + packageUnitColumns + ` FROM package_units
		WHERE product_code = ?
		ORDER BY effective_from DESC, unit_value DESC`
	if err := dbtx.SelectContext(ctx, &rows, q, productCode); err != nil {
		return nil, fmt.Errorf("failed to get package unit history for %s: %w", productCode, err)
	}
	return rowsToModels(rows)
}

// DeactivatePackageUnits は有効な世代を無効化し、effective_to を設定します。
func DeactivatePackageUnits(ctx context.Context, dbtx DBTX, productCode string, at time.Time) error {
	const q = `UPDATE package_units SET is_active = 0, effective_to = ?
		WHERE product_code = ? AND is_active = 1`
	if _, err := dbtx.ExecContext(ctx, q, formatTime(at), productCode); err != nil {
		return fmt.Errorf("failed to deactivate package units for %s: %w", productCode, err)
	}
	return nil
}

// InsertPackageUnitGenerationInTx は新しい世代をまとめて挿入します。
// version は常に 1、effective_to は NULL で登録されます。
func InsertPackageUnitGenerationInTx(ctx context.Context, tx *sqlx.Tx, productCode string, defs []model.UnitDefinition, effectiveFrom time.Time) (string, error) {
	if len(defs) == 0 {
		return "", fmt.Errorf("no package units to insert for %s", productCode)
	}

	generationID := uuid.NewString()
	from := formatTime(effectiveFrom)
	rows := make([]packageUnitRow, len(defs))
	for i, d := range defs {
		base := 0
		if d.IsBaseUnit {
			base = 1
		}
		rows[i] = packageUnitRow{
			ProductCode:   productCode,
			GenerationID:  generationID,
			UnitName:      d.UnitName,
			UnitValue:     d.UnitValue,
			IsBaseUnit:    base,
			IsActive:      1,
			EffectiveFrom: from,
			Version:       1,
		}
	}

	const q = `
		INSERT INTO package_units (
			product_code, generation_id, unit_name, unit_value,
			is_base_unit, is_active, effective_from, effective_to, version
		) VALUES (
			:product_code, :generation_id, :unit_name, :unit_value,
			:is_base_unit, :is_active, :effective_from, NULL, :version
		)`
	if _, err := tx.NamedExecContext(ctx, q, rows); err != nil {
		return "", fmt.Errorf("failed to insert package unit generation for %s: %w", productCode, err)
	}
	return generationID, nil
}

// PackageUnitStore は packaging.Service が利用する永続化の窓口です。
type PackageUnitStore struct {
	db *sqlx.DB
}

func NewPackageUnitStore(db *sqlx.DB) *PackageUnitStore {
	return &PackageUnitStore{db: db}
}

func (s *PackageUnitStore) FindActive(ctx context.Context, productCode string) ([]model.UnitDefinition, error) {
	return GetActivePackageUnits(ctx, s.db, productCode)
}

func (s *PackageUnitStore) FindAsOf(ctx context.Context, productCode string, at time.Time) ([]model.UnitDefinition, error) {
	return GetPackageUnitsAsOf(ctx, s.db, productCode, at)
}

func (s *PackageUnitStore) FindHistory(ctx context.Context, productCode string) ([]model.UnitDefinition, error) {
	return GetPackageUnitHistory(ctx, s.db, productCode)
}

func (s *PackageUnitStore) DeactivateActive(ctx context.Context, productCode string, at time.Time) error {
	return DeactivatePackageUnits(ctx, s.db, productCode, at)
}

func (s *PackageUnitStore) InsertGeneration(ctx context.Context, productCode string, defs []model.UnitDefinition, effectiveFrom time.Time) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for %s: %w", productCode, err)
	}
	defer tx.Rollback()

	if _, err := InsertPackageUnitGenerationInTx(ctx, tx, productCode, defs, effectiveFrom); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit package unit generation for %s: %w", productCode, err)
	}
	return nil
}
