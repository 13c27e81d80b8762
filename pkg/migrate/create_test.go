package migrate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAtWritesValidMigration(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

	path, err := createAt(dir, "  Add Courier Vehicle-Type ", at)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20261017093000_add_courier_vehicle_type.sql"), path)

	_, err = createAt(dir, "add courier vehicle type", at)
	assert.ErrorContains(t, err, "already exists")

	versions, err := Versions(dir)
	require.NoError(t, err)
	assert.Equal(t, []int64{20261017093000}, versions)
}

func TestCreateAtRejectsEmptySlug(t *testing.T) {
	_, err := createAt(t.TempDir(), "!!!", time.Now())
	assert.Error(t, err)
}

func TestVersionsRejectsBadFiles(t *testing.T) {
	write := func(t *testing.T, dir, name, body string) {
		t.Helper()
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	valid := "-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n"

	dir := t.TempDir()
	write(t, dir, "latest.sql", valid)
	_, err := Versions(dir)
	assert.ErrorContains(t, err, "invalid migration filename")

	dir = t.TempDir()
	write(t, dir, "20261017093000_a.sql", valid)
	write(t, dir, "20261017093000_b.sql", valid)
	_, err = Versions(dir)
	assert.ErrorContains(t, err, "duplicate migration version")

	dir = t.TempDir()
	write(t, dir, "20261017093000_a.sql", "-- +goose Up\nSELECT 1;\n")
	_, err = Versions(dir)
	assert.ErrorContains(t, err, "-- +goose Down")

	dir = t.TempDir()
	write(t, dir, "20261399093000_a.sql", valid)
	_, err = Versions(dir)
	assert.ErrorContains(t, err, "expected YYYYMMDDHHMMSS")
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("20261001090000")
	require.NoError(t, err)
	assert.Equal(t, int64(20261001090000), v)

	_, err = ParseVersion("")
	assert.Error(t, err)
	_, err = ParseVersion("2026-10-01")
	assert.Error(t, err)
}
