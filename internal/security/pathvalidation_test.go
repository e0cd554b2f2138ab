package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	// Create directories for symlink tests
	safeDir := filepath.Join(tmpDir, "safe")
	unsafeDir := filepath.Join(tmpDir, "unsafe")
	if err := os.MkdirAll(safeDir, 0755); err != nil {
		t.Fatalf("Failed to create safe directory: %v", err)
	}
	if err := os.MkdirAll(unsafeDir, 0755); err != nil {
		t.Fatalf("Failed to create unsafe directory: %v", err)
	}

	unsafeFile := filepath.Join(unsafeDir, "site_dem.tif")
	if err := os.WriteFile(unsafeFile, []byte("dem"), 0644); err != nil {
		t.Fatalf("Failed to create unsafe file: %v", err)
	}

	// Create a symlink inside safe directory pointing to unsafe directory
	symlinkPath := filepath.Join(safeDir, "evil-symlink")
	if err := os.Symlink(unsafeDir, symlinkPath); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	tests := []struct {
		name      string
		filePath  string
		safeDir   string
		wantError bool
	}{
		{
			name:      "valid path within directory",
			filePath:  filepath.Join(tmpDir, "site_ComposedHillshade.tif"),
			safeDir:   tmpDir,
			wantError: false,
		},
		{
			name:      "valid nested path not yet created",
			filePath:  filepath.Join(tmpDir, "site_r1", "intermediate_results", "dem", "site_dem.tif"),
			safeDir:   tmpDir,
			wantError: false,
		},
		{
			name:      "path traversal with ..",
			filePath:  filepath.Join(tmpDir, "..", "site_dem.tif"),
			safeDir:   tmpDir,
			wantError: true,
		},
		{
			name:      "absolute path outside safe dir",
			filePath:  "/etc/passwd",
			safeDir:   tmpDir,
			wantError: true,
		},
		{
			name:      "symlink escape attack - following symlink to outside dir",
			filePath:  filepath.Join(symlinkPath, "site_dem.tif"),
			safeDir:   safeDir,
			wantError: true,
		},
		{
			name:      "symlink escape attack - new file under symlink",
			filePath:  filepath.Join(symlinkPath, "new", "site_dem.tif"),
			safeDir:   safeDir,
			wantError: true,
		},
		{
			name:      "safe dir does not exist",
			filePath:  filepath.Join(tmpDir, "missing", "a.tif"),
			safeDir:   filepath.Join(tmpDir, "missing"),
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.filePath, tt.safeDir)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidatePathWithinDirectory() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestContainedIn(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		root      string
		wantError bool
	}{
		{"direct child", "/out/site_r1/site_ComposedHillshade.tif", "/out/site_r1", false},
		{"nested", "/out/site_r1/intermediate_results/las/Terrain_site_las.las", "/out/site_r1", false},
		{"root itself", "/out/site_r1", "/out/site_r1", false},
		{"sibling with shared prefix", "/out/site_r10/x.tif", "/out/site_r1", true},
		{"dot dot", "/out/site_r1/../x.tif", "/out/site_r1", true},
		{"relative escape", "../x.tif", ".", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ContainedIn(tt.filePath, tt.root)
			if (err != nil) != tt.wantError {
				t.Errorf("ContainedIn() error = %v, wantError %v", err, tt.wantError)
			}
			if err != nil && !errors.Is(err, ErrPathEscape) {
				t.Errorf("ContainedIn() error = %v, want ErrPathEscape", err)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"PNOA_2016_LR_532-4660", "PNOA_2016_LR_532-4660"},
		{"site survey (v2)", "site_survey_v2"},
		{"../../etc", "etc"},
		{"a_ b", "a_b"},
		{"", "unknown"},
		{"***", "unknown"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
