package units

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"pharmunit/model"
)

// MaxUnitNameLength は単位名の最大文字数(ルーン数)です。
const MaxUnitNameLength = 50

const errEmptyConfiguration = "configuration must not be empty"

// Validate は単位構成を検証します。
// 入力スライスは並べ替えず、同じ入力には常に同じ結果を返します。
func Validate(defs []model.UnitDefinition) model.ValidationResult {
	result := model.ValidationResult{
		Errors:   []string{},
		Warnings: []string{},
	}

	if len(defs) == 0 {
		result.Errors = append(result.Errors, errEmptyConfiguration)
		return result
	}

	nameCount := make(map[string]int)
	valueCount := make(map[int]int)
	var dupNames []string
	var dupValues []int
	baseUnits := 0

	for i, d := range defs {
		name := strings.TrimSpace(d.UnitName)
		switch {
		case name == "":
			result.Errors = append(result.Errors, fmt.Sprintf("unit #%d: unit name must not be empty", i+1))
		case utf8.RuneCountInString(d.UnitName) > MaxUnitNameLength:
			result.Errors = append(result.Errors,
				fmt.Sprintf("unit %q: unit name must be at most %d characters", d.UnitName, MaxUnitNameLength))
		}

		if d.UnitValue <= 0 {
			result.Errors = append(result.Errors,
				fmt.Sprintf("unit %q: unit value must be a positive integer (got %d)", d.UnitName, d.UnitValue))
		}

		nameCount[d.UnitName]++
		if nameCount[d.UnitName] == 2 {
			dupNames = append(dupNames, d.UnitName)
		}
		valueCount[d.UnitValue]++
		if valueCount[d.UnitValue] == 2 {
			dupValues = append(dupValues, d.UnitValue)
		}

		if d.IsBaseUnit {
			baseUnits++
			if d.UnitValue != 1 {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("base unit %q has value %d, expected 1", d.UnitName, d.UnitValue))
			}
		}
	}

	if len(dupNames) > 0 {
		quoted := make([]string, len(dupNames))
		for i, n := range dupNames {
			quoted[i] = strconv.Quote(n)
		}
		result.Errors = append(result.Errors, "duplicate unit names: "+strings.Join(quoted, ", "))
	}
	if len(dupValues) > 0 {
		vals := make([]string, len(dupValues))
		for i, v := range dupValues {
			vals[i] = strconv.Itoa(v)
		}
		result.Errors = append(result.Errors, "duplicate unit values: "+strings.Join(vals, ", "))
	}

	if baseUnits != 1 {
		result.Errors = append(result.Errors, fmt.Sprintf("exactly one base unit is required (found %d)", baseUnits))
	}

	// 割り切れない組み合わせは警告のみ。エラーがある構成では判定しない。
	if len(result.Errors) == 0 {
		sorted := make([]model.UnitDefinition, len(defs))
		copy(sorted, defs)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].UnitValue > sorted[j].UnitValue
		})
		for i := 0; i+1 < len(sorted); i++ {
			larger, smaller := sorted[i], sorted[i+1]
			if larger.UnitValue%smaller.UnitValue != 0 {
				result.Warnings = append(result.Warnings, fmt.Sprintf(
					"%q(%d) is not a multiple of %q(%d); package decomposition may be inexact",
					larger.UnitName, larger.UnitValue, smaller.UnitName, smaller.UnitValue))
			}
		}
	}

	result.IsValid = len(result.Errors) == 0
	return result
}
