package apps

import "testing"

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantPkg string
		wantOK  bool
	}{
		{"exact match", "Netflix", "com.netflix.ninja", true},
		{"exact match with plus", "Disney+", "com.disney.disneyplus", true},
		{"exact match with space", "Prime Video", "com.amazon.avod.thirdpartyclient", true},
		{"lowercase", "netflix", "com.netflix.ninja", true},
		{"uppercase", "YOUTUBE", "com.google.android.youtube.tv", true},
		{"mixed case", "hBo MaX", "com.hbo.hbonow", true},
		{"package passes through", "com.example.sideloaded", "com.example.sideloaded", true},
		{"unknown app", "Quibi", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg, ok := Resolve(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if pkg != tt.wantPkg {
				t.Errorf("Resolve(%q) = %q, want %q", tt.input, pkg, tt.wantPkg)
			}
		})
	}
}

func TestKnownApps(t *testing.T) {
	names := KnownApps()
	if len(names) != len(packageCatalogue) {
		t.Fatalf("KnownApps returned %d names, want %d", len(names), len(packageCatalogue))
	}
	for _, name := range names {
		if _, ok := Resolve(name); !ok {
			t.Errorf("catalogue name %q does not resolve", name)
		}
	}
}
