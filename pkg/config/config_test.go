package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ekaya-inc/sqlguard/pkg/engine"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() must validate, got: %v", err)
	}

	if !cfg.Checkers.NoFilter.Enabled {
		t.Error("no_filter must be enabled by default")
	}
	if cfg.Checkers.NoFilter.IncludeSelect {
		t.Error("no_filter.include_select must default to false")
	}
	if cfg.Checkers.Comment.Enabled {
		t.Error("comment checker must ship disabled")
	}
	if !cfg.Checkers.Comment.AllowHints {
		t.Error("comment.allow_hints must default to true")
	}
	if cfg.Checkers.DDLOperation.Enabled {
		t.Error("ddl_operation checker must ship disabled")
	}
	if cfg.Checkers.DeepOffset.MaxOffset != 10000 {
		t.Errorf("expected max_offset=10000, got %d", cfg.Checkers.DeepOffset.MaxOffset)
	}
	if cfg.Checkers.LargePageSize.MaxPageSize != 1000 {
		t.Errorf("expected max_page_size=1000, got %d", cfg.Checkers.LargePageSize.MaxPageSize)
	}
	if len(cfg.Checkers.DangerousFunction.Functions) == 0 {
		t.Error("dangerous_function must ship with a built-in blacklist")
	}
	if !cfg.Template.Generic.Enabled {
		t.Error("template.generic must be enabled by default")
	}
	if cfg.Template.OrderBy.Enabled || cfg.Template.LimitOffset.Enabled || cfg.Template.Aggregate.Enabled {
		t.Error("template context sub-checks must ship disabled")
	}
	if !cfg.Dedup.Enabled {
		t.Error("dedup must be enabled by default")
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
parser:
  cache_size: 64
checkers:
  deep_offset:
    max_offset: 500
  denied_table:
    tables:
      - audit_log
      - tmp_*
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	t.Setenv("SQLGUARD_MAX_OFFSET", "20000")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// YAML overrides the default
	if cfg.Parser.CacheSize != 64 {
		t.Errorf("expected cache_size=64 (from yaml), got %d", cfg.Parser.CacheSize)
	}

	// Env overrides YAML
	if cfg.Checkers.DeepOffset.MaxOffset != 20000 {
		t.Errorf("expected max_offset=20000 (from env), got %d", cfg.Checkers.DeepOffset.MaxOffset)
	}

	// Fields absent from the file keep their defaults
	if cfg.Checkers.LargePageSize.MaxPageSize != 1000 {
		t.Errorf("expected default max_page_size=1000, got %d", cfg.Checkers.LargePageSize.MaxPageSize)
	}
	if cfg.Dedup.Capacity != engine.DefaultDedupCapacity {
		t.Errorf("expected default dedup capacity, got %d", cfg.Dedup.Capacity)
	}

	if len(cfg.Checkers.DeniedTable.Tables) != 2 || cfg.Checkers.DeniedTable.Tables[1] != "tmp_*" {
		t.Errorf("unexpected denied tables: %v", cfg.Checkers.DeniedTable.Tables)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for a missing config file")
	}
}

func TestParse_MergesOverDefaults(t *testing.T) {
	data := []byte(`
checkers:
  no_filter:
    enabled: false
  always_true:
    severity: CRITICAL
    patterns:
      - "2=2"
  set_operation:
    allow:
      - UNION_ALL
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}

	if cfg.Checkers.NoFilter.Enabled {
		t.Error("no_filter should be disabled by the document")
	}
	if !cfg.Checkers.AlwaysTrue.Enabled {
		t.Error("always_true should keep its default enabled state")
	}
	if got := cfg.Checkers.AlwaysTrue.SeverityOr(engine.SeverityHigh); got != engine.SeverityCritical {
		t.Errorf("expected severity override CRITICAL, got %v", got)
	}
	if len(cfg.Checkers.AlwaysTrue.Patterns) != 1 || cfg.Checkers.AlwaysTrue.Patterns[0] != "2=2" {
		t.Errorf("unexpected custom patterns: %v", cfg.Checkers.AlwaysTrue.Patterns)
	}
	if !cfg.Checkers.SetOperation.Allowed("UNION ALL") {
		t.Error("UNION ALL should be allow-listed via UNION_ALL")
	}
	if cfg.Checkers.SetOperation.Allowed("UNION") {
		t.Error("UNION alone is not allow-listed")
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("checkers: [not a map")); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestValidate_RejectsBadSeverity(t *testing.T) {
	cfg := Default()
	cfg.Checkers.DeniedTable.Severity = "SEVERE"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for unknown severity name")
	}
	if !strings.Contains(err.Error(), "checkers.denied_table.severity") {
		t.Errorf("error should name the offending field, got: %v", err)
	}
}

func TestValidate_RejectsUnknownAllowlistEntry(t *testing.T) {
	cfg := Default()
	cfg.Checkers.SetOperation.Allow = []string{"UNION", "JOIN"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for unknown set operator")
	}
	if !strings.Contains(err.Error(), `"JOIN"`) {
		t.Errorf("error should name the entry, got: %v", err)
	}
}

func TestValidate_RejectsNonPositiveThresholds(t *testing.T) {
	cfg := Default()
	cfg.Checkers.DeepOffset.MaxOffset = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for max_offset=0")
	}

	cfg = Default()
	cfg.Checkers.LargePageSize.MaxPageSize = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative max_page_size")
	}
}

func TestValidate_RequiredFieldShape(t *testing.T) {
	cfg := Default()
	cfg.Checkers.RequiredField.Tables = map[string][]string{"orders": {}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for a table with no required columns")
	}

	cfg = Default()
	cfg.Checkers.RequiredField.EnforceForUnknownTables = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for enforce_for_unknown_tables without global_fields")
	}

	cfg.Checkers.RequiredField.GlobalFields = []string{"tenant_id"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_CompilesOriginPatterns(t *testing.T) {
	cfg := Default()
	cfg.Checkers.Unconditioned.ExemptOrigins = []string{"*.getById", "UserMapper.*"}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}

	compiled := cfg.Checkers.Unconditioned.CompiledOrigins()
	if len(compiled) != 2 {
		t.Fatalf("expected 2 compiled patterns, got %d", len(compiled))
	}
	if !compiled[0].MatchString("OrderMapper.getById") {
		t.Error("*.getById should match OrderMapper.getById")
	}
	if compiled[0].MatchString("OrderMapper.getByIdAndStatus") {
		t.Error("*.getById must be anchored at the end")
	}
	if !compiled[1].MatchString("UserMapper.deleteAll") {
		t.Error("UserMapper.* should match UserMapper.deleteAll")
	}
	if compiled[1].MatchString("AdminUserMapper.deleteAll") {
		t.Error("UserMapper.* must be anchored at the start")
	}
}

func TestValidate_RejectsEmptyOriginPattern(t *testing.T) {
	cfg := Default()
	cfg.Checkers.Unconditioned.ExemptOrigins = []string{"  "}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for a blank origin pattern")
	}
}

func TestSeverityOr(t *testing.T) {
	tests := []struct {
		severity string
		def      engine.Severity
		want     engine.Severity
	}{
		{"", engine.SeverityHigh, engine.SeverityHigh},
		{"LOW", engine.SeverityHigh, engine.SeverityLow},
		{"critical", engine.SeverityMedium, engine.SeverityCritical},
		{"bogus", engine.SeverityMedium, engine.SeverityMedium},
	}
	for _, tt := range tests {
		cc := CheckerConfig{Severity: tt.severity}
		if got := cc.SeverityOr(tt.def); got != tt.want {
			t.Errorf("SeverityOr(%q, %v) = %v, want %v", tt.severity, tt.def, got, tt.want)
		}
	}
}

func TestAllowedKeywordNormalization(t *testing.T) {
	meta := MetadataStatementConfig{Allow: []string{"desc"}}
	if !meta.Allowed("DESCRIBE") {
		t.Error("DESC in the allowlist must also allow DESCRIBE")
	}
	if meta.Allowed("SHOW") {
		t.Error("SHOW is not allow-listed")
	}

	ddl := DDLOperationConfig{Allow: []string{"create"}}
	if !ddl.Allowed("CREATE") {
		t.Error("create should be allow-listed case-insensitively")
	}
}

func TestDedupTTL(t *testing.T) {
	d := DedupConfig{TTLMillis: 250}
	if got := d.TTL(); got != 250*time.Millisecond {
		t.Errorf("TTL() = %v, want 250ms", got)
	}
}
