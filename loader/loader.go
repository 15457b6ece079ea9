package loader

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"pharmunit/database"
	"pharmunit/model"
	"pharmunit/packaging"
	"pharmunit/parsers"
)

// FileResult は取込フォルダ内の1ファイル分の結果です。
type FileResult struct {
	Filename string               `json:"filename"`
	Encoding parsers.Encoding     `json:"encoding"`
	Summary  *model.ImportSummary `json:"summary,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// InitDatabase はデータベーススキーマを適用します。
func InitDatabase(db *sqlx.DB) error {
	log.Info().Msg("Applying database schema...")
	if _, err := db.Exec(database.Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	log.Info().Msg("Schema applied successfully.")
	return nil
}

// ImportFolder は取込フォルダ直下の *.csv をファイル名順に取り込みます。
// フォルダが空文字の場合は何もしません。
func ImportFolder(ctx context.Context, svc *packaging.Service, folder string) ([]FileResult, error) {
	folder = strings.ReplaceAll(strings.Trim(strings.TrimSpace(folder), "\""), "\\", "/")
	if folder == "" {
		return []FileResult{}, nil
	}

	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("could not read import folder %s: %w", folder, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	results := make([]FileResult, 0, len(names))
	for _, name := range names {
		path := filepath.Join(folder, name)
		log.Info().Str("file", path).Msg("Loading unit csv...")
		results = append(results, importFile(ctx, svc, path))
	}
	return results, nil
}

func importFile(ctx context.Context, svc *packaging.Service, path string) FileResult {
	result := FileResult{Filename: filepath.Base(path)}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Error = fmt.Sprintf("could not open file: %v", err)
		log.Warn().Err(err).Str("file", path).Msg("skipping unit csv")
		return result
	}

	// 拡張子では判別できないので、UTF-8 として不正なら Shift-JIS とみなす
	result.Encoding = parsers.EncodingUTF8
	if !utf8.Valid(data) {
		result.Encoding = parsers.EncodingShiftJIS
	}

	summary, err := svc.ImportCSV(ctx, bytes.NewReader(data), result.Encoding)
	if err != nil {
		result.Error = err.Error()
		log.Warn().Err(err).Str("file", path).Msg("unit csv import failed")
		return result
	}
	result.Summary = &summary
	return result
}
