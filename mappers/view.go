package mappers

import (
	"pharmunit/model"
	"pharmunit/units"
)

// ToUnitSetView は、有効な単位構成を画面表示用の model.UnitSetView に変換します。
func ToUnitSetView(productCode string, defs []model.UnitDefinition) model.UnitSetView {
	if defs == nil {
		defs = []model.UnitDefinition{}
	}
	view := model.UnitSetView{
		ProductCode:          productCode,
		Units:                defs,
		FormattedPackageSpec: units.FormatPackageSpec(defs),
	}
	if base, ok := units.BaseUnit(defs); ok {
		view.BaseUnitName = base.UnitName
	}
	return view
}
