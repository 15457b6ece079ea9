package parsers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"pharmunit/model"
)

// UnitCSVRow は包装単位CSVの1行です。
type UnitCSVRow struct {
	Line        int
	ProductCode string
	UnitName    string
	UnitValue   int
	IsBaseUnit  bool
}

// UnitCSVBatch は1製品分の単位構成です。CSV内での出現順を保ちます。
// RowErrors があるバッチは単位構成が欠けているので、取り込んではいけません。
type UnitCSVBatch struct {
	ProductCode string
	Units       []model.UnitDefinition
	RowErrors   []string
}

// UnitCSVResult は解析結果です。読み飛ばした行は Skipped に理由付きで入ります。
type UnitCSVResult struct {
	Batches []UnitCSVBatch
	Skipped []string
}

var unitCSVHeaders = []string{"product_code", "unit_name", "unit_value", "is_base_unit"}

// ParseUnitCSV は product_code,unit_name,unit_value,is_base_unit 形式のCSVを解析し、
// 製品ごとの単位構成にまとめます。
func ParseUnitCSV(r io.Reader, enc Encoding) (UnitCSVResult, error) {
	reader := csv.NewReader(decodeReader(r, enc))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return UnitCSVResult{}, fmt.Errorf("csv file is empty")
	}
	if err != nil {
		return UnitCSVResult{}, fmt.Errorf("failed to read csv header: %w", err)
	}

	colIndex, err := getColIndex(header, unitCSVHeaders)
	if err != nil {
		return UnitCSVResult{}, err
	}

	result := UnitCSVResult{Batches: []UnitCSVBatch{}, Skipped: []string{}}
	batchIndex := make(map[string]int)
	line := 1

	for {
		line++
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			result.Skipped = append(result.Skipped, fmt.Sprintf("line %d: %v", line, err))
			log.Warn().Err(err).Int("line", line).Msg("skipping unreadable unit csv row")
			continue
		}

		get := func(key string) string {
			if idx, ok := colIndex[key]; ok && idx < len(rec) {
				return strings.TrimSpace(rec[idx])
			}
			return ""
		}

		batchFor := func(code string) *UnitCSVBatch {
			i, ok := batchIndex[code]
			if !ok {
				result.Batches = append(result.Batches, UnitCSVBatch{ProductCode: code})
				i = len(result.Batches) - 1
				batchIndex[code] = i
			}
			return &result.Batches[i]
		}

		row, err := toUnitCSVRow(line, get)
		if err != nil {
			result.Skipped = append(result.Skipped, err.Error())
			log.Warn().Int("line", line).Msg(err.Error())
			// 製品コードが読めた行の失敗はその製品の取込を止める
			if code := get("product_code"); code != "" {
				b := batchFor(code)
				b.RowErrors = append(b.RowErrors, err.Error())
			}
			continue
		}

		b := batchFor(row.ProductCode)
		b.Units = append(b.Units, model.UnitDefinition{
			ProductCode: row.ProductCode,
			UnitName:    row.UnitName,
			UnitValue:   row.UnitValue,
			IsBaseUnit:  row.IsBaseUnit,
		})
	}

	return result, nil
}

func toUnitCSVRow(line int, get func(string) string) (UnitCSVRow, error) {
	code := get("product_code")
	if code == "" {
		return UnitCSVRow{}, fmt.Errorf("line %d: product_code is empty", line)
	}

	// 単位名と値の妥当性はバリデータに任せ、ここでは整数かどうかだけ見る
	value, err := strconv.Atoi(get("unit_value"))
	if err != nil {
		return UnitCSVRow{}, fmt.Errorf("line %d: unit_value %q is not an integer", line, get("unit_value"))
	}

	base, err := parseFlag(get("is_base_unit"))
	if err != nil {
		return UnitCSVRow{}, fmt.Errorf("line %d: %w", line, err)
	}

	return UnitCSVRow{
		Line:        line,
		ProductCode: code,
		UnitName:    get("unit_name"),
		UnitValue:   value,
		IsBaseUnit:  base,
	}, nil
}

func parseFlag(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "y", "○":
		return true, nil
	case "", "0", "false", "no", "n":
		return false, nil
	default:
		return false, fmt.Errorf("is_base_unit %q is not a boolean", s)
	}
}
