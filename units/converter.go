package units

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"pharmunit/model"
)

const (
	errEmptyInput       = "input must not be empty"
	errUnparseableInput = "unparseable input format"
)

var (
	digitsOnlyRegex = regexp.MustCompile(`^[0-9]+$`)
	// 数字列の直後に、数字でも空白でもない文字列が続くもの (例: "12箱")
	unitTokenRegex = regexp.MustCompile(`([0-9]+)([^0-9\s\p{Zs}]+)`)
)

// ToDisplay は基本単位数量を、大きい包装単位から順に分解します。
// 最小単位に満たない端数は内訳に含めず切り捨てます。
func ToDisplay(baseQuantity float64, defs []model.UnitDefinition) model.DisplayResult {
	qty, ok := normalizeQuantity(baseQuantity)
	if !ok {
		return model.DisplayResult{BaseQuantity: 0, Breakdown: []model.BreakdownItem{}, DisplayText: "0"}
	}

	result := model.DisplayResult{
		BaseQuantity: qty,
		Breakdown:    []model.BreakdownItem{},
	}

	remaining := qty
	for _, u := range activeDescending(defs) {
		v := int64(u.UnitValue)
		if v > remaining {
			continue
		}
		q := remaining / v
		remaining -= q * v
		result.Breakdown = append(result.Breakdown, model.BreakdownItem{
			UnitName:  u.UnitName,
			UnitValue: u.UnitValue,
			Quantity:  q,
		})
	}

	if len(result.Breakdown) == 0 {
		result.DisplayText = strconv.FormatInt(qty, 10)
		return result
	}
	result.DisplayText = joinBreakdown(result.Breakdown)
	return result
}

// ToBaseQuantity は "1箱 5盒 3粒" のような入力を基本単位数量に変換します。
// 未登録の単位はエラーに記録し、残りのトークンの解析は続けます。
func ToBaseQuantity(input string, defs []model.UnitDefinition) model.ParseResult {
	result := model.ParseResult{
		ParsedInput: []model.ParsedToken{},
		Errors:      []string{},
	}

	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		result.Errors = append(result.Errors, errEmptyInput)
		return result
	}

	if digitsOnlyRegex.MatchString(trimmed) {
		n, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("quantity out of range: %q", trimmed))
			return result
		}
		result.BaseQuantity = n
		result.DisplayText = strconv.FormatInt(n, 10)
		return result
	}

	// ToDisplay と同じく、有効かつ値が正の単位だけを対象にする
	byName := make(map[string]model.UnitDefinition)
	for _, d := range activeDescending(defs) {
		byName[d.UnitName] = d
	}

	var total int64
	matches := unitTokenRegex.FindAllStringSubmatch(trimmed, -1)
	for _, m := range matches {
		token, digits, name := m[0], m[1], m[2]

		u, ok := byName[name]
		if !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("unknown unit name: %q", name))
			continue
		}

		q, err := strconv.ParseInt(digits, 10, 64)
		if err != nil || q > (math.MaxInt64-total)/int64(u.UnitValue) {
			result.Errors = append(result.Errors, fmt.Sprintf("quantity out of range: %q", token))
			continue
		}

		total += q * int64(u.UnitValue)
		result.ParsedInput = append(result.ParsedInput, model.ParsedToken{UnitName: name, Quantity: q})
	}

	if len(matches) == 0 && len(result.Errors) == 0 {
		result.Errors = append(result.Errors, errUnparseableInput)
	}

	result.BaseQuantity = total
	parts := make([]string, len(result.ParsedInput))
	for i, p := range result.ParsedInput {
		parts[i] = fmt.Sprintf("%d%s", p.Quantity, p.UnitName)
	}
	result.DisplayText = strings.Join(parts, " ")
	return result
}

// normalizeQuantity は負数・小数・NaN・範囲外を不正として扱います。
func normalizeQuantity(v float64) (int64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v != math.Trunc(v) {
		return 0, false
	}
	// 2^63 ちょうどは int64 に収まらない
	if v >= math.MaxInt64 {
		return 0, false
	}
	return int64(v), true
}

func joinBreakdown(items []model.BreakdownItem) string {
	parts := make([]string, len(items))
	for i, b := range items {
		parts[i] = fmt.Sprintf("%d%s", b.Quantity, b.UnitName)
	}
	return strings.Join(parts, " ")
}
