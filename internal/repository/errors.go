package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

var (
	// ErrDuplicateGatewayID is returned by Create when (gateway, gateway_id) already exists.
	ErrDuplicateGatewayID = errors.New("transaction with gateway id already exists")
	// ErrReferentialViolation is returned by Create when a linked organization or user does not exist.
	ErrReferentialViolation = errors.New("linked account does not exist")
	// ErrStaleVersion is returned by Replace when the row changed since it was read.
	ErrStaleVersion = errors.New("transaction was modified concurrently")
)

const (
	mysqlDuplicateEntry   = 1062
	mysqlNoReferencedRow  = 1452
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDuplicateEntry
	}

	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		return pe.Code == pgUniqueViolation
	}

	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	return false
}

func isForeignKeyViolation(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}

	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlNoReferencedRow
	}

	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		return pe.Code == pgForeignKeyViolation
	}

	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}

	return false
}
