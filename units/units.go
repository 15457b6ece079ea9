package units

import (
	"fmt"
	"sort"
	"strings"

	"pharmunit/model"
)

// FormatPackageSpec は単位構成から包装仕様の文字列を生成します。
// 例: 盒=1000, 排=10, 粒=1 → "1盒=100排, 1排=10粒"
func FormatPackageSpec(defs []model.UnitDefinition) string {
	active := activeDescending(defs)
	if len(active) == 0 {
		return ""
	}
	if len(active) == 1 {
		return active[0].UnitName
	}

	parts := make([]string, 0, len(active)-1)
	for i := 0; i+1 < len(active); i++ {
		larger, smaller := active[i], active[i+1]
		if larger.UnitValue%smaller.UnitValue == 0 {
			parts = append(parts, fmt.Sprintf("1%s=%d%s", larger.UnitName, larger.UnitValue/smaller.UnitValue, smaller.UnitName))
		} else {
			// 割り切れない場合は最小単位換算で表示する
			base := active[len(active)-1]
			parts = append(parts, fmt.Sprintf("1%s=%d%s", larger.UnitName, larger.UnitValue/base.UnitValue, base.UnitName))
		}
	}
	return strings.Join(parts, ", ")
}

// BaseUnit は有効な基本単位を返します。見つからない場合は最小の単位を返します。
func BaseUnit(defs []model.UnitDefinition) (model.UnitDefinition, bool) {
	active := activeDescending(defs)
	if len(active) == 0 {
		return model.UnitDefinition{}, false
	}
	for _, d := range active {
		if d.IsBaseUnit {
			return d, true
		}
	}
	return active[len(active)-1], true
}

// activeDescending は有効かつ値が正の単位を、値の大きい順に並べたコピーを返します。
func activeDescending(defs []model.UnitDefinition) []model.UnitDefinition {
	active := make([]model.UnitDefinition, 0, len(defs))
	for _, d := range defs {
		if d.IsActive && d.UnitValue > 0 {
			active = append(active, d)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].UnitValue > active[j].UnitValue
	})
	return active
}
