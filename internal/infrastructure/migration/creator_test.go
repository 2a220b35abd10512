package migration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/clinic/pharmacy/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add lot barcode", "add_lot_barcode"},
		{"Add-Lot-Barcode", "add_lot_barcode"},
		{"ADD__LOT__BARCODE", "add_lot_barcode"},
		{"  index   expiry ", "index_expiry"},
		{"réception 2", "rception_2"},
		{"!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Slug(tt.input))
		})
	}
}

func TestCreate(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)

	f, err := Create(dir, "add lot barcode", "barcode column on lots", now)
	require.NoError(t, err)
	assert.Equal(t, "20260304103000", f.Version)
	assert.Equal(t, filepath.Join(dir, "20260304103000_add_lot_barcode.up.sql"), f.UpPath)

	up, err := os.ReadFile(f.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "barcode column on lots")
	down, err := os.ReadFile(f.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "(Rollback)")

	_, err = Create(dir, "add lot barcode", "again", now)
	assert.Error(t, err, "existing files are never overwritten")
}

func TestCreate_RejectsEmptyName(t *testing.T) {
	_, err := Create(t.TempDir(), "???", "", time.Now())
	assert.Error(t, err)
}

func TestList_EmbeddedSchema(t *testing.T) {
	names, err := List(migrations.FS)
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "20260301090000_create_catalog_and_lots", names[0])
	for _, n := range names {
		_, err := migrations.FS.Open(n + ".down.sql")
		assert.NoError(t, err, "%s has no rollback", n)
	}
}

func TestList_Directory(t *testing.T) {
	dir := t.TempDir()
	_, err := Create(dir, "second", "", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	_, err = Create(dir, "first", "", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	names, err := List(DirFS(dir))
	require.NoError(t, err)
	assert.Equal(t, []string{"20260301000000_first", "20260302000000_second"}, names)
}
