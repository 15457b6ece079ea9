package units

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmunit/model"
)

func def(name string, value int, base bool) model.UnitDefinition {
	return model.UnitDefinition{UnitName: name, UnitValue: value, IsBaseUnit: base, IsActive: true, Version: 1}
}

// 盒=1000粒, 排=10粒
func boxStripPill() []model.UnitDefinition {
	return []model.UnitDefinition{def("盒", 1000, false), def("排", 10, false), def("粒", 1, true)}
}

func TestToDisplay_BoxStripPill(t *testing.T) {
	got := ToDisplay(1635, boxStripPill())

	assert.Equal(t, int64(1635), got.BaseQuantity)
	assert.Equal(t, "1盒 63排 5粒", got.DisplayText)
	assert.Equal(t, []model.BreakdownItem{
		{UnitName: "盒", UnitValue: 1000, Quantity: 1},
		{UnitName: "排", UnitValue: 10, Quantity: 63},
		{UnitName: "粒", UnitValue: 1, Quantity: 5},
	}, got.Breakdown)
}

func TestToDisplay_NoUnits(t *testing.T) {
	got := ToDisplay(42, nil)

	assert.Equal(t, int64(42), got.BaseQuantity)
	assert.Empty(t, got.Breakdown)
	assert.Equal(t, "42", got.DisplayText)
}

func TestToDisplay_IgnoresInactiveUnits(t *testing.T) {
	defs := boxStripPill()
	defs[0].IsActive = false

	got := ToDisplay(1635, defs)
	assert.Equal(t, "163排 5粒", got.DisplayText)
}

func TestToDisplay_UnsortedInput(t *testing.T) {
	defs := []model.UnitDefinition{def("粒", 1, true), def("盒", 1000, false), def("排", 10, false)}

	got := ToDisplay(2010, defs)
	assert.Equal(t, "2盒 1排", got.DisplayText)
	assert.Len(t, got.Breakdown, 2)
}

func TestToDisplay_InvalidQuantity(t *testing.T) {
	tests := []struct {
		name string
		qty  float64
	}{
		{"negative", -5},
		{"fraction", 3.5},
		{"NaN", math.NaN()},
		{"+Inf", math.Inf(1)},
		{"-Inf", math.Inf(-1)},
		{"too large", math.MaxFloat64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToDisplay(tt.qty, boxStripPill())
			assert.Equal(t, model.DisplayResult{BaseQuantity: 0, Breakdown: []model.BreakdownItem{}, DisplayText: "0"}, got)
		})
	}
}

func TestToDisplay_DropsRemainderBelowSmallestUnit(t *testing.T) {
	// 基本単位のない構成では、最小単位未満の端数は捨てられる
	defs := []model.UnitDefinition{def("箱", 12, false), def("袋", 5, false)}

	got := ToDisplay(13, defs)
	assert.Equal(t, int64(13), got.BaseQuantity)
	assert.Equal(t, []model.BreakdownItem{{UnitName: "箱", UnitValue: 12, Quantity: 1}}, got.Breakdown)
	assert.Equal(t, "1箱", got.DisplayText)

	got = ToDisplay(28, defs)
	assert.Equal(t, "2箱", got.DisplayText, "remaining 4 is smaller than 袋 and is dropped")
}

func TestToDisplay_EmptyBreakdownFallsBackToInteger(t *testing.T) {
	defs := []model.UnitDefinition{def("箱", 12, false), def("袋", 5, false)}

	// どの単位にも満たない数量は、空文字ではなく基本単位数量そのものを表示する。
	// 何も捨てていないので、その文字列は同じ数量に読み戻せる。
	assert.Equal(t, "0", ToDisplay(0, defs).DisplayText)
	assert.Equal(t, "3", ToDisplay(3, defs).DisplayText)
	assert.Empty(t, ToDisplay(3, defs).Breakdown)

	only := []model.UnitDefinition{def("盒", 1000, false)}
	disp := ToDisplay(5, only)
	assert.Equal(t, "5", disp.DisplayText)
	back := ToBaseQuantity(disp.DisplayText, only)
	assert.Empty(t, back.Errors)
	assert.Equal(t, int64(5), back.BaseQuantity)
}

func TestToDisplay_BreakdownNeverExceedsQuantity(t *testing.T) {
	sets := map[string][]model.UnitDefinition{
		"divisible":     boxStripPill(),
		"non-divisible": {def("箱", 7, false), def("袋", 3, false)},
		"single":        {def("瓶", 30, false)},
	}
	for name, defs := range sets {
		smallest := defs[len(defs)-1].UnitValue
		for q := 0; q <= 3000; q++ {
			got := ToDisplay(float64(q), defs)
			var sum int64
			for _, b := range got.Breakdown {
				sum += b.Quantity * int64(b.UnitValue)
			}
			require.LessOrEqual(t, sum, int64(q), "%s q=%d", name, q)
			require.Less(t, int64(q)-sum, int64(smallest), "%s q=%d", name, q)
		}
	}
}

func TestRoundTrip_ExactlyRepresentable(t *testing.T) {
	sets := [][]model.UnitDefinition{
		boxStripPill(),
		{def("箱", 7, false), def("袋", 3, false)},
	}
	for _, defs := range sets {
		for q := 1; q <= 2000; q++ {
			disp := ToDisplay(float64(q), defs)
			var sum int64
			for _, b := range disp.Breakdown {
				sum += b.Quantity * int64(b.UnitValue)
			}
			if sum != int64(q) {
				continue
			}
			parsed := ToBaseQuantity(disp.DisplayText, defs)
			require.Empty(t, parsed.Errors, "q=%d text=%q", q, disp.DisplayText)
			require.Equal(t, int64(q), parsed.BaseQuantity, "q=%d text=%q", q, disp.DisplayText)
		}
	}
}

func TestToBaseQuantity_Tokens(t *testing.T) {
	got := ToBaseQuantity("1盒 5排 3粒", boxStripPill())

	assert.Equal(t, int64(1053), got.BaseQuantity)
	assert.Empty(t, got.Errors)
	assert.Equal(t, []model.ParsedToken{
		{UnitName: "盒", Quantity: 1},
		{UnitName: "排", Quantity: 5},
		{UnitName: "粒", Quantity: 3},
	}, got.ParsedInput)
	assert.Equal(t, "1盒 5排 3粒", got.DisplayText)
}

func TestToBaseQuantity_UnknownUnitDoesNotAbort(t *testing.T) {
	got := ToBaseQuantity("1箱 2盒", boxStripPill())

	assert.Equal(t, int64(2000), got.BaseQuantity)
	require.Len(t, got.Errors, 1)
	assert.Contains(t, got.Errors[0], "箱")
	assert.Equal(t, `unknown unit name: "箱"`, got.Errors[0])
	assert.Equal(t, "2盒", got.DisplayText)
}

func TestToBaseQuantity_EncounterOrderIsKept(t *testing.T) {
	got := ToBaseQuantity("3粒 1盒 2粒", boxStripPill())

	assert.Equal(t, int64(1005), got.BaseQuantity)
	assert.Equal(t, []model.ParsedToken{
		{UnitName: "粒", Quantity: 3},
		{UnitName: "盒", Quantity: 1},
		{UnitName: "粒", Quantity: 2},
	}, got.ParsedInput)
	assert.Equal(t, "3粒 1盒 2粒", got.DisplayText)
}

func TestToBaseQuantity_Cases(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantQty    int64
		wantErrors []string
		wantTokens int
	}{
		{"digits only", "1234", 1234, []string{}, 0},
		{"digits with surrounding space", "  56 ", 56, []string{}, 0},
		{"empty", "", 0, []string{"input must not be empty"}, 0},
		{"blank", "   ", 0, []string{"input must not be empty"}, 0},
		{"no separators", "1盒5排", 1050, []string{}, 2},
		{"ideographic space", "1盒　5排", 1050, []string{}, 2},
		{"case sensitive", "2Box", 0, []string{`unknown unit name: "Box"`}, 0},
		{"letters only", "abc", 0, []string{"unparseable input format"}, 0},
		{"unit before digits", "盒1", 0, []string{"unparseable input format"}, 0},
		{"full-width digits", "１盒", 0, []string{"unparseable input format"}, 0},
		{"leading symbol", "#1盒", 1000, []string{}, 1},
		{"leading word", "約2排", 20, []string{}, 1},
		{"trailing bare digits", "1盒 25", 1000, []string{}, 1},
		{"overflow digits", "99999999999999999999", 0, []string{`quantity out of range: "99999999999999999999"`}, 0},
		{"overflow token", "9999999999999999盒", 0, []string{`quantity out of range: "9999999999999999盒"`}, 0},
		{"two unknown", "1箱 2袋", 0, []string{`unknown unit name: "箱"`, `unknown unit name: "袋"`}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToBaseQuantity(tt.input, boxStripPill())
			assert.Equal(t, tt.wantQty, got.BaseQuantity)
			assert.Equal(t, tt.wantErrors, got.Errors)
			assert.Len(t, got.ParsedInput, tt.wantTokens)
		})
	}
}

func TestToBaseQuantity_InactiveUnitIsUnknown(t *testing.T) {
	defs := boxStripPill()
	defs[0].IsActive = false

	got := ToBaseQuantity("1盒 1排", defs)
	assert.Equal(t, int64(10), got.BaseQuantity)
	assert.Equal(t, []string{`unknown unit name: "盒"`}, got.Errors)
}

func TestToBaseQuantity_NoUnits(t *testing.T) {
	got := ToBaseQuantity("3盒", nil)
	assert.Equal(t, int64(0), got.BaseQuantity)
	assert.Equal(t, []string{`unknown unit name: "盒"`}, got.Errors)
	assert.Equal(t, "", got.DisplayText)
}

func TestToBaseQuantity_NonPositiveUnitsAreUnknown(t *testing.T) {
	defs := append(boxStripPill(), def("袋", -5, false), def("空", 0, false))

	got := ToBaseQuantity("2袋 3空 1盒", defs)
	assert.Equal(t, int64(1000), got.BaseQuantity)
	assert.Equal(t, []string{`unknown unit name: "袋"`, `unknown unit name: "空"`}, got.Errors)
	assert.Equal(t, "1盒", got.DisplayText)

	// 表示側も同じ単位集合を使う
	assert.Equal(t, "1盒", ToDisplay(1000, defs).DisplayText)
}
