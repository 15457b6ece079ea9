package packaging

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pharmunit/metrics"
	"pharmunit/model"
	"pharmunit/units"
)

// Store は包装単位の世代を永続化する外部コラボレータです。
// 同一製品で有効な世代が2つにならないことの保証はストア側の責務です。
type Store interface {
	FindActive(ctx context.Context, productCode string) ([]model.UnitDefinition, error)
	FindAsOf(ctx context.Context, productCode string, at time.Time) ([]model.UnitDefinition, error)
	DeactivateActive(ctx context.Context, productCode string, at time.Time) error
	InsertGeneration(ctx context.Context, productCode string, defs []model.UnitDefinition, effectiveFrom time.Time) error
}

// HistoryStore は世代履歴を返せるストアです。
type HistoryStore interface {
	FindHistory(ctx context.Context, productCode string) ([]model.UnitDefinition, error)
}

const storageFailedMessage = "storage operation failed"

// Service は検証・変換・ストアを組み合わせて、製品単位の操作を提供します。
type Service struct {
	store Store
	log   zerolog.Logger
	now   func() time.Time
}

type Option func(*Service)

// WithClock は現在時刻の取得元を差し替えます。
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(store Store, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store: store,
		log:   logger.With().Str("component", "packaging").Logger(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetCurrent は有効な単位構成を返します。ストアのエラーはログに残し、空を返します。
func (s *Service) GetCurrent(ctx context.Context, productCode string) []model.UnitDefinition {
	if strings.TrimSpace(productCode) == "" {
		return []model.UnitDefinition{}
	}
	defs, err := s.store.FindActive(ctx, productCode)
	if err != nil {
		s.log.Error().Err(err).Str("product_code", productCode).Msg("failed to read active package units")
		metrics.StoreFailures.WithLabelValues("find_active").Inc()
		return []model.UnitDefinition{}
	}
	if defs == nil {
		return []model.UnitDefinition{}
	}
	return defs
}

// GetAsOf は指定日時に有効だった単位構成を返します。GetCurrent と同じくフェイルオープンです。
func (s *Service) GetAsOf(ctx context.Context, productCode string, at time.Time) []model.UnitDefinition {
	if strings.TrimSpace(productCode) == "" {
		return []model.UnitDefinition{}
	}
	defs, err := s.store.FindAsOf(ctx, productCode, at)
	if err != nil {
		s.log.Error().Err(err).
			Str("product_code", productCode).
			Time("as_of", at).
			Msg("failed to read package units as of date")
		metrics.StoreFailures.WithLabelValues("find_as_of").Inc()
		return []model.UnitDefinition{}
	}
	if defs == nil {
		return []model.UnitDefinition{}
	}
	return defs
}

// GetHistory は世代ごとにまとめた履歴を新しい順で返します。
func (s *Service) GetHistory(ctx context.Context, productCode string) []model.Generation {
	hs, ok := s.store.(HistoryStore)
	if !ok || strings.TrimSpace(productCode) == "" {
		return []model.Generation{}
	}
	rows, err := hs.FindHistory(ctx, productCode)
	if err != nil {
		s.log.Error().Err(err).Str("product_code", productCode).Msg("failed to read package unit history")
		metrics.StoreFailures.WithLabelValues("find_history").Inc()
		return []model.Generation{}
	}
	return groupGenerations(rows)
}

// Replace は単位構成を検証し、現在の世代を無効化したうえで新しい世代を登録します。
// 無効化と登録の間は有効な世代が存在しない状態になります。
func (s *Service) Replace(ctx context.Context, productCode string, candidates []model.UnitDefinition) model.ReplaceResult {
	if strings.TrimSpace(productCode) == "" {
		metrics.ObserveOperation("replace", metrics.ResultInvalid)
		return model.ReplaceResult{Error: ErrProductCodeRequired.Error(), Err: ErrProductCodeRequired}
	}

	v := units.Validate(candidates)
	if !v.IsValid {
		metrics.ObserveOperation("replace", metrics.ResultInvalid)
		return model.ReplaceResult{
			Error:    strings.Join(v.Errors, "; "),
			Warnings: v.Warnings,
			Err:      ErrInvalidConfiguration,
		}
	}

	now := s.now()
	if err := s.store.DeactivateActive(ctx, productCode, now); err != nil {
		return s.storageFailure("replace", productCode, "deactivate", err)
	}
	if err := s.store.InsertGeneration(ctx, productCode, candidates, now); err != nil {
		return s.storageFailure("replace", productCode, "insert", err)
	}

	// 書き込み側と読み取り側で既定値がずれないよう、登録後に読み直した内容を返す
	current, err := s.store.FindActive(ctx, productCode)
	if err != nil {
		return s.storageFailure("replace", productCode, "reload", err)
	}
	if current == nil {
		current = []model.UnitDefinition{}
	}

	s.log.Info().
		Str("product_code", productCode).
		Int("units", len(current)).
		Time("effective_from", now).
		Msg("package units replaced")
	metrics.ObserveOperation("replace", metrics.ResultSuccess)

	return model.ReplaceResult{Success: true, Units: current, Warnings: v.Warnings}
}

// Delete は有効な世代を無効化するだけの論理削除です。履歴は残ります。
func (s *Service) Delete(ctx context.Context, productCode string) model.DeleteResult {
	if strings.TrimSpace(productCode) == "" {
		metrics.ObserveOperation("delete", metrics.ResultInvalid)
		return model.DeleteResult{Error: ErrProductCodeRequired.Error(), Err: ErrProductCodeRequired}
	}
	if err := s.store.DeactivateActive(ctx, productCode, s.now()); err != nil {
		s.log.Error().Err(err).Str("product_code", productCode).Msg("failed to deactivate package units")
		metrics.StoreFailures.WithLabelValues("deactivate").Inc()
		metrics.ObserveOperation("delete", metrics.ResultError)
		return model.DeleteResult{Error: storageFailedMessage, Err: errors.Join(ErrStorage, err)}
	}
	metrics.ObserveOperation("delete", metrics.ResultSuccess)
	return model.DeleteResult{Success: true}
}

// Validate は units.Validate の薄いラッパーです。
func (s *Service) Validate(defs []model.UnitDefinition) model.ValidationResult {
	return units.Validate(defs)
}

func (s *Service) ToDisplay(baseQuantity float64, defs []model.UnitDefinition) model.DisplayResult {
	return units.ToDisplay(baseQuantity, defs)
}

func (s *Service) ToBaseQuantity(input string, defs []model.UnitDefinition) model.ParseResult {
	res := units.ToBaseQuantity(input, defs)
	if len(res.Errors) > 0 {
		metrics.ParseAdvisories.Add(float64(len(res.Errors)))
	}
	return res
}

// DisplayForProduct は有効な単位構成を1回だけ読み込み、数量を包装表記にします。
func (s *Service) DisplayForProduct(ctx context.Context, productCode string, baseQuantity float64) model.DisplayResult {
	return s.ToDisplay(baseQuantity, s.GetCurrent(ctx, productCode))
}

// DisplayAsOf は過去の帳票用に、その時点の単位構成で数量を表記します。
// 置き換え済みの世代は is_active が false なので、その時点で有効だったものとして扱います。
func (s *Service) DisplayAsOf(ctx context.Context, productCode string, at time.Time, baseQuantity float64) model.DisplayResult {
	return s.ToDisplay(baseQuantity, effectiveAt(s.GetAsOf(ctx, productCode, at)))
}

func effectiveAt(defs []model.UnitDefinition) []model.UnitDefinition {
	out := make([]model.UnitDefinition, len(defs))
	for i, d := range defs {
		d.IsActive = true
		out[i] = d
	}
	return out
}

func (s *Service) ParseForProduct(ctx context.Context, productCode string, input string) model.ParseResult {
	return s.ToBaseQuantity(input, s.GetCurrent(ctx, productCode))
}

func (s *Service) storageFailure(op, productCode, step string, err error) model.ReplaceResult {
	s.log.Error().Err(err).
		Str("product_code", productCode).
		Str("step", step).
		Msg("package unit storage operation failed")
	metrics.StoreFailures.WithLabelValues(step).Inc()
	metrics.ObserveOperation(op, metrics.ResultError)
	return model.ReplaceResult{Error: storageFailedMessage, Err: errors.Join(ErrStorage, err)}
}

func groupGenerations(rows []model.UnitDefinition) []model.Generation {
	gens := []model.Generation{}
	index := make(map[string]int)
	for _, r := range rows {
		key := r.GenerationID
		if key == "" {
			key = r.EffectiveFrom.UTC().Format(time.RFC3339Nano)
		}
		i, ok := index[key]
		if !ok {
			gens = append(gens, model.Generation{
				GenerationID:  r.GenerationID,
				ProductCode:   r.ProductCode,
				EffectiveFrom: r.EffectiveFrom,
				EffectiveTo:   r.EffectiveTo,
				IsActive:      r.IsActive,
				Version:       r.Version,
			})
			i = len(gens) - 1
			index[key] = i
		}
		gens[i].Units = append(gens[i].Units, r)
	}
	return gens
}
