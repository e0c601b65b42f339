package database

import "testing"

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		wantVersion string
		wantUp      bool
		wantOK      bool
	}{
		{
			name:        "valid up migration",
			filename:    "20260815_100000_initial_schema.up.sql",
			wantVersion: "20260815_100000",
			wantUp:      true,
			wantOK:      true,
		},
		{
			name:        "valid down migration",
			filename:    "20260815_100000_initial_schema.down.sql",
			wantVersion: "20260815_100000",
			wantUp:      false,
			wantOK:      true,
		},
		{
			name:     "missing direction suffix",
			filename: "20260815_100000_initial_schema.sql",
			wantOK:   false,
		},
		{
			name:     "not a sql file",
			filename: "embed.go",
			wantOK:   false,
		},
		{
			name:     "too few parts for a version",
			filename: "schema.up.sql",
			wantOK:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if version != tt.wantVersion {
				t.Errorf("version = %q, want %q", version, tt.wantVersion)
			}
			if isUp != tt.wantUp {
				t.Errorf("isUp = %v, want %v", isUp, tt.wantUp)
			}
		})
	}
}

func TestExtractMigrationName(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"20260815_100000_initial_schema.up.sql", "initial_schema"},
		{"20260815_100000_add_app_catalogue.down.sql", "add_app_catalogue"},
		{"odd.sql", "odd"},
	}

	for _, tt := range tests {
		if got := extractMigrationName(tt.filename); got != tt.want {
			t.Errorf("extractMigrationName(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}
