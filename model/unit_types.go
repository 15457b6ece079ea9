package model

import "time"

// UnitDefinition は製品ごとの包装単位1件を表します。
// 同じ製品・同じ effectiveFrom を持つ定義の集合が1つの世代になります。
type UnitDefinition struct {
	ID            int64      `json:"id,omitempty"`
	ProductCode   string     `json:"productCode"`
	GenerationID  string     `json:"generationId,omitempty"`
	UnitName      string     `json:"unitName"`
	UnitValue     int        `json:"unitValue"`
	IsBaseUnit    bool       `json:"isBaseUnit"`
	IsActive      bool       `json:"isActive"`
	EffectiveFrom time.Time  `json:"effectiveFrom"`
	EffectiveTo   *time.Time `json:"effectiveTo"`
	Version       int        `json:"version"`
}

// Generation は履歴表示用に、1世代分の単位定義をまとめたものです。
type Generation struct {
	GenerationID  string           `json:"generationId"`
	ProductCode   string           `json:"productCode"`
	EffectiveFrom time.Time        `json:"effectiveFrom"`
	EffectiveTo   *time.Time       `json:"effectiveTo"`
	IsActive      bool             `json:"isActive"`
	Version       int              `json:"version"`
	Units         []UnitDefinition `json:"units"`
}

// ValidationResult は単位構成の検証結果です。
type ValidationResult struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

type BreakdownItem struct {
	UnitName  string `json:"unitName"`
	UnitValue int    `json:"unitValue"`
	Quantity  int64  `json:"quantity"`
}

// DisplayResult は基本単位数量を包装単位に分解した結果です。
type DisplayResult struct {
	BaseQuantity int64           `json:"baseQuantity"`
	Breakdown    []BreakdownItem `json:"breakdown"`
	DisplayText  string          `json:"displayText"`
}

type ParsedToken struct {
	UnitName string `json:"unitName"`
	Quantity int64  `json:"quantity"`
}

// ParseResult は包装表記の文字列を基本単位数量に変換した結果です。
// Errors があっても、解釈できたトークン分は BaseQuantity に含まれます。
type ParseResult struct {
	BaseQuantity int64         `json:"baseQuantity"`
	ParsedInput  []ParsedToken `json:"parsedInput"`
	DisplayText  string        `json:"displayText"`
	Errors       []string      `json:"errors"`
}

// ReplaceResult は単位構成の置き換え結果です。
type ReplaceResult struct {
	Success  bool             `json:"success"`
	Error    string           `json:"error,omitempty"`
	Units    []UnitDefinition `json:"units,omitempty"`
	Warnings []string         `json:"warnings,omitempty"`
	Err      error            `json:"-"`
}

type DeleteResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Err     error  `json:"-"`
}

// UnitSetView は画面表示用に、有効な単位構成と包装仕様をまとめたものです。
type UnitSetView struct {
	ProductCode          string           `json:"productCode"`
	Units                []UnitDefinition `json:"units"`
	BaseUnitName         string           `json:"baseUnitName"`
	FormattedPackageSpec string           `json:"formattedPackageSpec"`
}

// ImportProductResult はCSV取込における1製品分の結果です。
type ImportProductResult struct {
	ProductCode string   `json:"productCode"`
	Success     bool     `json:"success"`
	Error       string   `json:"error,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
	UnitCount   int      `json:"unitCount"`
}

// ImportSummary はCSV取込全体の結果です。
type ImportSummary struct {
	Products  []ImportProductResult `json:"products"`
	Skipped   []string              `json:"skipped"`
	Succeeded int                   `json:"succeeded"`
	Failed    int                   `json:"failed"`
}
