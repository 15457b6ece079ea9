package packaging

import (
	"context"
	"fmt"
	"io"
	"strings"

	"pharmunit/metrics"
	"pharmunit/model"
	"pharmunit/parsers"
)

// ImportCSV は包装単位CSVを読み込み、製品ごとに Replace を実行します。
// 1製品の失敗で取込全体は止めません。
func (s *Service) ImportCSV(ctx context.Context, r io.Reader, enc parsers.Encoding) (model.ImportSummary, error) {
	parsed, err := parsers.ParseUnitCSV(r, enc)
	if err != nil {
		return model.ImportSummary{}, fmt.Errorf("failed to parse unit csv: %w", err)
	}

	summary := model.ImportSummary{
		Products: make([]model.ImportProductResult, 0, len(parsed.Batches)),
		Skipped:  parsed.Skipped,
	}
	for _, batch := range parsed.Batches {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if len(batch.RowErrors) > 0 {
			// 一部の行が読めなかった製品は、欠けた構成で置き換えないよう取込しない
			s.log.Warn().
				Str("product_code", batch.ProductCode).
				Int("rejected_rows", len(batch.RowErrors)).
				Msg("unit csv rows rejected; keeping current units")
			metrics.ObserveOperation("import", metrics.ResultInvalid)
			summary.Failed++
			summary.Products = append(summary.Products, model.ImportProductResult{
				ProductCode: batch.ProductCode,
				Error:       "rejected rows: " + strings.Join(batch.RowErrors, "; "),
			})
			continue
		}

		res := s.Replace(ctx, batch.ProductCode, batch.Units)
		pr := model.ImportProductResult{
			ProductCode: batch.ProductCode,
			Success:     res.Success,
			Error:       res.Error,
			Warnings:    res.Warnings,
			UnitCount:   len(res.Units),
		}
		if res.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
		summary.Products = append(summary.Products, pr)
	}

	s.log.Info().
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("skipped_rows", len(summary.Skipped)).
		Msg("unit csv import finished")
	return summary, nil
}
