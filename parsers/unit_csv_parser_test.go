package parsers

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

const unitCSV = `product_code,unit_name,unit_value,is_base_unit
4987123456789,盒,1000,0
4987123456789,排,10,0
4987123456789,粒,1,1
4987000000001,錠,1,true
4987000000001,シート,14,false
`

func TestParseUnitCSV_GroupsByProduct(t *testing.T) {
	res, err := ParseUnitCSV(strings.NewReader(unitCSV), EncodingUTF8)
	require.NoError(t, err)

	require.Len(t, res.Batches, 2)
	assert.Empty(t, res.Skipped)

	first := res.Batches[0]
	assert.Equal(t, "4987123456789", first.ProductCode)
	require.Len(t, first.Units, 3)
	assert.Equal(t, "盒", first.Units[0].UnitName)
	assert.Equal(t, 1000, first.Units[0].UnitValue)
	assert.True(t, first.Units[2].IsBaseUnit)

	second := res.Batches[1]
	assert.Equal(t, "4987000000001", second.ProductCode)
	require.Len(t, second.Units, 2)
	assert.True(t, second.Units[0].IsBaseUnit)
	assert.False(t, second.Units[1].IsBaseUnit)
}

func TestParseUnitCSV_BOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte(unitCSV)...)

	res, err := ParseUnitCSV(bytes.NewReader(data), EncodingUTF8)
	require.NoError(t, err)
	assert.Len(t, res.Batches, 2)
}

func TestParseUnitCSV_ShiftJIS(t *testing.T) {
	data := "product_code,unit_name,unit_value,is_base_unit\nP1,箱,100,0\nP1,シート,10,0\nP1,錠,1,1\n"
	encoded, _, err := transform.Bytes(japanese.ShiftJIS.NewEncoder(), []byte(data))
	require.NoError(t, err)

	res, err := ParseUnitCSV(bytes.NewReader(encoded), EncodingShiftJIS)
	require.NoError(t, err)
	require.Len(t, res.Batches, 1)
	require.Len(t, res.Batches[0].Units, 3)
	assert.Equal(t, "箱", res.Batches[0].Units[0].UnitName)
	assert.Equal(t, "シート", res.Batches[0].Units[1].UnitName)
}

func TestParseUnitCSV_ColumnOrderFollowsHeader(t *testing.T) {
	data := "is_base_unit,unit_value,unit_name,product_code\n1,1,錠,P1\n"

	res, err := ParseUnitCSV(strings.NewReader(data), EncodingUTF8)
	require.NoError(t, err)
	require.Len(t, res.Batches, 1)
	assert.Equal(t, "錠", res.Batches[0].Units[0].UnitName)
	assert.Equal(t, "P1", res.Batches[0].Units[0].ProductCode)
}

func TestParseUnitCSV_SkipsBadRows(t *testing.T) {
	data := `product_code,unit_name,unit_value,is_base_unit
P1,箱,abc,0
,錠,1,1
P1,袋,5,maybe
P1,錠,1,1
`
	res, err := ParseUnitCSV(strings.NewReader(data), EncodingUTF8)
	require.NoError(t, err)

	require.Len(t, res.Skipped, 3)
	assert.Contains(t, res.Skipped[0], "line 2")
	assert.Contains(t, res.Skipped[0], "not an integer")
	assert.Contains(t, res.Skipped[1], "product_code is empty")
	assert.Contains(t, res.Skipped[2], "not a boolean")

	require.Len(t, res.Batches, 1)
	assert.Len(t, res.Batches[0].Units, 1)
	// 空の product_code の行はどの製品にも紐付けられない
	assert.Equal(t, []string{res.Skipped[0], res.Skipped[2]}, res.Batches[0].RowErrors)
}

func TestParseUnitCSV_ProductWithOnlyBadRows(t *testing.T) {
	data := "product_code,unit_name,unit_value,is_base_unit\nP1,錠,1,1\nP2,箱,x,0\n"

	res, err := ParseUnitCSV(strings.NewReader(data), EncodingUTF8)
	require.NoError(t, err)
	require.Len(t, res.Batches, 2)
	assert.Empty(t, res.Batches[0].RowErrors)
	assert.Equal(t, "P2", res.Batches[1].ProductCode)
	assert.Empty(t, res.Batches[1].Units)
	assert.Len(t, res.Batches[1].RowErrors, 1)
}

func TestParseUnitCSV_HeaderErrors(t *testing.T) {
	_, err := ParseUnitCSV(strings.NewReader(""), EncodingUTF8)
	assert.EqualError(t, err, "csv file is empty")

	_, err = ParseUnitCSV(strings.NewReader("product_code,unit_name\nP1,錠\n"), EncodingUTF8)
	assert.EqualError(t, err, "required header not found: unit_value")
}

func TestParseEncoding(t *testing.T) {
	for in, want := range map[string]Encoding{
		"":          EncodingUTF8,
		"UTF-8":     EncodingUTF8,
		"sjis":      EncodingShiftJIS,
		"Shift_JIS": EncodingShiftJIS,
	} {
		got, err := ParseEncoding(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseEncoding("euc-jp")
	assert.Error(t, err)
}
