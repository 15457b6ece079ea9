package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"pharmunit/database"
	"pharmunit/mappers"
	"pharmunit/packaging"
	"pharmunit/parsers"
)

func newService(t *testing.T) *packaging.Service {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, InitDatabase(db))
	// 2回目の適用でも失敗しない
	require.NoError(t, InitDatabase(db))

	return packaging.NewService(database.NewPackageUnitStore(db), zerolog.Nop())
}

func TestImportFolder(t *testing.T) {
	svc := newService(t)
	dir := t.TempDir()

	utf8CSV := "\xEF\xBB\xBFproduct_code,unit_name,unit_value,is_base_unit\nP1,箱,100,0\nP1,錠,1,1\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_units.csv"), []byte(utf8CSV), 0644))

	sjis, _, err := transform.Bytes(japanese.ShiftJIS.NewEncoder(),
		[]byte("product_code,unit_name,unit_value,is_base_unit\nP2,シート,14,0\nP2,錠,1,1\n"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_units.CSV"), sjis, 0644))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive.csv"), 0755))

	results, err := ImportFolder(context.Background(), svc, dir)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "a_units.csv", results[0].Filename)
	assert.Equal(t, parsers.EncodingUTF8, results[0].Encoding)
	assert.Equal(t, parsers.EncodingShiftJIS, results[1].Encoding)
	for _, r := range results {
		require.NotNil(t, r.Summary, r.Error)
		assert.Equal(t, 1, r.Summary.Succeeded)
	}

	p2 := svc.GetCurrent(context.Background(), "P2")
	require.Len(t, p2, 2)
	assert.Equal(t, "シート", p2[0].UnitName)
	assert.Equal(t, "1箱=100錠", packagingSpec(svc, "P1"))
}

func TestImportFolder_EmptyAndMissing(t *testing.T) {
	svc := newService(t)

	results, err := ImportFolder(context.Background(), svc, "")
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = ImportFolder(context.Background(), svc, filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestImportFolder_BadFileDoesNotStopOthers(t *testing.T) {
	svc := newService(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1.csv"), []byte("code,name\nP1,x\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2.csv"),
		[]byte("product_code,unit_name,unit_value,is_base_unit\nP3,包,1,1\n"), 0644))

	results, err := ImportFolder(context.Background(), svc, dir)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Contains(t, results[0].Error, "required header not found")
	require.NotNil(t, results[1].Summary)
	assert.Len(t, svc.GetCurrent(context.Background(), "P3"), 1)
}

func packagingSpec(svc *packaging.Service, code string) string {
	return mappers.ToUnitSetView(code, svc.GetCurrent(context.Background(), code)).FormattedPackageSpec
}
