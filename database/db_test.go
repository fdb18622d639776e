package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDuplicateKey(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'INV-1' for key 'uk_invoices_number'"}
	assert.True(t, IsDuplicateKey(dup))
	assert.True(t, IsDuplicateKey(fmt.Errorf("create invoice: %w", dup)))
	assert.False(t, IsDuplicateKey(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"}))
	assert.False(t, IsDuplicateKey(errors.New("duplicate")))
	assert.False(t, IsDuplicateKey(nil))
}

func TestIsDuplicateKeyOn(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry '7' for key 'invoices.uk_invoices_order'"}
	assert.True(t, IsDuplicateKeyOn(fmt.Errorf("create invoice: %w", dup), "uk_invoices_order"))
	legacy := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry '7' for key 'uk_invoices_order'"}
	assert.True(t, IsDuplicateKeyOn(legacy, "uk_invoices_order"))
	assert.False(t, IsDuplicateKeyOn(dup, "uk_invoices_invoice_number"))
	assert.False(t, IsDuplicateKeyOn(&mysql.MySQLError{Number: 1213, Message: "'uk_invoices_order'"}, "uk_invoices_order"))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("load order: %w", sql.ErrNoRows)))
	assert.False(t, IsNotFound(errors.New("no rows")))
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)

	up, down, err := CreateMigration(dir, "add_refunds", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20261017100000_add_refunds.up.sql"), up)
	assert.Equal(t, filepath.Join(dir, "20261017100000_add_refunds.down.sql"), down)
	for _, path := range []string{up, down} {
		_, err := os.Stat(path)
		assert.NoError(t, err)
	}
}
