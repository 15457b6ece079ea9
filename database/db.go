package database

import (
	"context"
	"database/sql"
	_ "embed"
)

// Schema はパッケージ単位テーブルの DDL です。
//
//go:embed schema.sql
var Schema string

type DBTX interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	Rebind(query string) string
}
