package schema

import (
	"strings"
	"testing"
)

func TestMigrations_VersionsContiguous(t *testing.T) {
	if len(Migrations) == 0 {
		t.Fatal("no migrations defined")
	}
	for i, m := range Migrations {
		want := i + 1
		if m.Version != want {
			t.Errorf("Migrations[%d].Version = %d, want %d (versions must be contiguous and ordered)", i, m.Version, want)
		}
		if strings.TrimSpace(m.Name) == "" {
			t.Errorf("Migrations[%d] has no name", i)
		}
		if strings.TrimSpace(m.SQL) == "" {
			t.Errorf("Migrations[%d] has no SQL", i)
		}
	}
}

func TestMigrations_CoreTablesPresent(t *testing.T) {
	var all strings.Builder
	for _, m := range Migrations {
		all.WriteString(m.SQL)
	}
	combined := all.String()

	for _, want := range []string{"CREATE TABLE IF NOT EXISTS creators", "CREATE TABLE IF NOT EXISTS payments"} {
		if !strings.Contains(combined, want) {
			t.Errorf("migration list missing %q", want)
		}
	}
}
