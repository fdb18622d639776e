package database

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

const versionTimeFormat = "20060102150405"

// MigrateUp applies every pending migration found in dir. It returns false when the schema was
// already current.
func MigrateUp(dir string, dsn string) (bool, error) {
	m, err := migrate.New(
		fmt.Sprintf("file://%s", dir),
		fmt.Sprintf("%s://%s", driverName, dsn),
	)
	if err != nil {
		return false, err
	}
	defer m.Close()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateMigration writes an empty up/down pair named after the current time.
func CreateMigration(dir string, name string, now time.Time) (string, string, error) {
	version := now.Format(versionTimeFormat)
	up := fmt.Sprintf("%s/%s_%s.up.sql", dir, version, name)
	down := fmt.Sprintf("%s/%s_%s.down.sql", dir, version, name)

	if err := os.WriteFile(up, []byte{}, 0644); err != nil {
		return "", "", err
	}
	if err := os.WriteFile(down, []byte{}, 0644); err != nil {
		return "", "", err
	}
	return up, down, nil
}
