package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/sqlguard/pkg/engine"
	"github.com/ekaya-inc/sqlguard/pkg/sql"
)

// Config holds all configuration for sqlguard.
// Configuration can come from a YAML file (Load), raw YAML bytes (Parse),
// or in-code construction starting from Default(). Environment variables
// override file values for the operational knobs that carry env tags.
// Validation is fail-fast: a process that cannot trust its checker
// configuration must refuse to start, not run under-protected.
type Config struct {
	// Parser configures the SQL parse facade.
	Parser ParserConfig `yaml:"parser"`

	// Dedup configures the per-call-path verdict deduplication cache.
	Dedup DedupConfig `yaml:"dedup"`

	// Checkers toggles and tunes the rule chain, in execution order.
	Checkers CheckersConfig `yaml:"checkers"`

	// Template toggles the template-level injection sub-checks.
	Template TemplateConfig `yaml:"template"`
}

// ParserConfig controls the parse facade shared by every validation run.
type ParserConfig struct {
	// CacheSize bounds the parsed-AST LRU cache. Zero uses the built-in
	// default.
	CacheSize int `yaml:"cache_size" env:"SQLGUARD_PARSER_CACHE_SIZE"`
}

// DedupConfig sizes the deduplication cache handed to callers.
type DedupConfig struct {
	// Enabled lets deployments turn deduplication off wholesale without
	// touching call sites.
	Enabled bool `yaml:"enabled"`

	// Capacity bounds the number of cached fingerprints before LRU
	// eviction. Zero uses the built-in default.
	Capacity int `yaml:"capacity" env:"SQLGUARD_DEDUP_CAPACITY"`

	// TTLMillis is how long a cached verdict stays fresh. The window
	// should cover one logical operation (tens to low hundreds of
	// milliseconds), never longer. Zero uses the built-in default.
	TTLMillis int `yaml:"ttl_millis" env:"SQLGUARD_DEDUP_TTL_MS"`
}

// TTL returns the configured freshness window as a duration.
func (d DedupConfig) TTL() time.Duration {
	return time.Duration(d.TTLMillis) * time.Millisecond
}

// CheckerConfig is the toggle and severity override every checker carries.
// An empty Severity keeps the checker's built-in severity.
type CheckerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Severity string `yaml:"severity"`
}

// SeverityOr resolves the configured severity override, falling back to
// the checker's built-in default. Unknown names also fall back, so run
// Validate first to surface typos as startup errors.
func (c CheckerConfig) SeverityOr(def engine.Severity) engine.Severity {
	if c.Severity == "" {
		return def
	}
	sev, err := engine.ParseSeverity(c.Severity)
	if err != nil {
		return def
	}
	return sev
}

// CommentConfig controls the SQL comment checker.
type CommentConfig struct {
	CheckerConfig `yaml:",inline"`

	// AllowHints exempts optimizer hints (/*+ ... */) from the comment
	// check.
	AllowHints bool `yaml:"allow_hints"`
}

// MetadataStatementConfig controls the metadata-statement checker.
type MetadataStatementConfig struct {
	CheckerConfig `yaml:",inline"`

	// Allow lists metadata statement kinds that are permitted, drawn from
	// SHOW, DESCRIBE and USE. Empty means every metadata statement is
	// flagged.
	Allow []string `yaml:"allow"`
}

// Allowed reports whether the given metadata statement kind is
// allow-listed. DESC and DESCRIBE are the same kind.
func (m MetadataStatementConfig) Allowed(keyword string) bool {
	return containsKeyword(m.Allow, keyword)
}

// DDLOperationConfig controls the DDL-operation checker.
type DDLOperationConfig struct {
	CheckerConfig `yaml:",inline"`

	// Allow lists DDL kinds that are permitted, drawn from CREATE, ALTER,
	// DROP and TRUNCATE. Empty means every DDL statement is flagged.
	Allow []string `yaml:"allow"`
}

// Allowed reports whether the given DDL kind is allow-listed.
func (d DDLOperationConfig) Allowed(keyword string) bool {
	return containsKeyword(d.Allow, keyword)
}

// SetOperationConfig controls the set-operation checker.
type SetOperationConfig struct {
	CheckerConfig `yaml:",inline"`

	// Allow lists permitted set operators, drawn from UNION, UNION_ALL,
	// EXCEPT, EXCEPT_ALL, INTERSECT, INTERSECT_ALL, MINUS and MINUS_ALL.
	// Empty means every set operation is flagged.
	Allow []string `yaml:"allow"`
}

// Allowed reports whether the given set operator is allow-listed.
func (s SetOperationConfig) Allowed(operator string) bool {
	return containsKeyword(s.Allow, operator)
}

// DangerousFunctionConfig controls the dangerous-function checker.
type DangerousFunctionConfig struct {
	CheckerConfig `yaml:",inline"`

	// Functions is the blacklist of function names, matched
	// case-insensitively against every function call in the statement.
	Functions []string `yaml:"functions"`
}

// TableListConfig is shared by the denied-table and read-only-table
// checkers: a table name list supporting exact or trailing-* prefix
// entries.
type TableListConfig struct {
	CheckerConfig `yaml:",inline"`

	Tables []string `yaml:"tables"`
}

// NoFilterConfig controls the no-filter-clause checker.
type NoFilterConfig struct {
	CheckerConfig `yaml:",inline"`

	// IncludeSelect extends the check from UPDATE/DELETE to SELECT.
	// Unfiltered SELECT risk is normally graded by the unconditioned
	// stratifier instead.
	IncludeSelect bool `yaml:"include_select"`
}

// AlwaysTrueConfig controls the always-true-condition checker.
type AlwaysTrueConfig struct {
	CheckerConfig `yaml:",inline"`

	// Patterns adds custom tautology patterns to the built-in set
	// (1=1, '1'='1', 'a'='a', true). Matching ignores case and spacing.
	Patterns []string `yaml:"patterns"`
}

// FieldListConfig is the low-selectivity column blacklist: exact or
// trailing-* prefix entries.
type FieldListConfig struct {
	CheckerConfig `yaml:",inline"`

	Fields []string `yaml:"fields"`
}

// RequiredFieldConfig controls the required-field checker.
type RequiredFieldConfig struct {
	CheckerConfig `yaml:",inline"`

	// Tables maps a table name to the columns of which the WHERE clause
	// must reference at least one.
	Tables map[string][]string `yaml:"tables"`

	// GlobalFields applies to tables absent from Tables when
	// EnforceForUnknownTables is set.
	GlobalFields []string `yaml:"global_fields"`

	// EnforceForUnknownTables extends the check to tables without an
	// entry in Tables, using GlobalFields.
	EnforceForUnknownTables bool `yaml:"enforce_for_unknown_tables"`
}

// DeepOffsetConfig controls the deep-offset checker.
type DeepOffsetConfig struct {
	CheckerConfig `yaml:",inline"`

	// MaxOffset is the largest pagination offset that passes without a
	// finding. Strictly greater fires.
	MaxOffset int64 `yaml:"max_offset" env:"SQLGUARD_MAX_OFFSET"`
}

// LargePageSizeConfig controls the large-page-size checker.
type LargePageSizeConfig struct {
	CheckerConfig `yaml:",inline"`

	// MaxPageSize is the largest requested row count that passes without
	// a finding. Strictly greater fires.
	MaxPageSize int64 `yaml:"max_page_size" env:"SQLGUARD_MAX_PAGE_SIZE"`
}

// UnconditionedConfig controls the unconditioned-query risk stratifier.
// The stratifier grades rather than flags, so its severity tiers are fixed
// and it carries no severity override.
type UnconditionedConfig struct {
	Enabled bool `yaml:"enabled"`

	// RequirePagination makes the stratifier grade ordinary filtered
	// SELECTs without pagination as MEDIUM. Off, only unfiltered or
	// blacklist-only queries are graded.
	RequirePagination bool `yaml:"require_pagination"`

	// ExemptOrigins lists originating-statement identifier patterns that
	// skip stratification. * matches any run of characters, everything
	// else is literal: "*.getById" exempts every mapper's getById.
	ExemptOrigins []string `yaml:"exempt_origins"`

	// ExemptTables lists tables that skip stratification, matched
	// case-insensitively and exactly.
	ExemptTables []string `yaml:"exempt_tables"`

	// UniqueKeys names columns whose equality test proves an at-most-one-
	// row result. "id" is always treated as unique.
	UniqueKeys []string `yaml:"unique_keys"`

	compiledOrigins []*regexp.Regexp
}

// CompiledOrigins returns the exemption patterns compiled by Validate.
func (u *UnconditionedConfig) CompiledOrigins() []*regexp.Regexp {
	return u.compiledOrigins
}

// CheckersConfig carries one block per checker, in chain execution order.
type CheckersConfig struct {
	MultiStatement        CheckerConfig           `yaml:"multi_statement"`
	Comment               CommentConfig           `yaml:"comment"`
	IntoOutfile           CheckerConfig           `yaml:"into_outfile"`
	CallStatement         CheckerConfig           `yaml:"call_statement"`
	MetadataStatement     MetadataStatementConfig `yaml:"metadata_statement"`
	SetStatement          CheckerConfig           `yaml:"set_statement"`
	ParamInjection        CheckerConfig           `yaml:"param_injection"`
	DDLOperation          DDLOperationConfig      `yaml:"ddl_operation"`
	SetOperation          SetOperationConfig      `yaml:"set_operation"`
	DangerousFunction     DangerousFunctionConfig `yaml:"dangerous_function"`
	DeniedTable           TableListConfig         `yaml:"denied_table"`
	ReadOnlyTable         TableListConfig         `yaml:"read_only_table"`
	NoFilter              NoFilterConfig          `yaml:"no_filter"`
	AlwaysTrue            AlwaysTrueConfig        `yaml:"always_true"`
	LowSelectivity        FieldListConfig         `yaml:"low_selectivity"`
	RequiredField         RequiredFieldConfig     `yaml:"required_field"`
	LogicalPagination     CheckerConfig           `yaml:"logical_pagination"`
	NoConditionPagination CheckerConfig           `yaml:"no_condition_pagination"`
	DeepOffset            DeepOffsetConfig        `yaml:"deep_offset"`
	LargePageSize         LargePageSizeConfig     `yaml:"large_page_size"`
	MissingOrderBy        CheckerConfig           `yaml:"missing_order_by"`
	Unconditioned         UnconditionedConfig     `yaml:"unconditioned"`
}

// TemplateConfig controls the template-level injection detector.
// Disabling a context sub-check silences placeholders in that context
// entirely; they do not fall through to the generic check.
type TemplateConfig struct {
	Generic     CheckerConfig `yaml:"generic"`
	OrderBy     CheckerConfig `yaml:"order_by"`
	LimitOffset CheckerConfig `yaml:"limit_offset"`
	Aggregate   CheckerConfig `yaml:"aggregate"`
	SelectStar  CheckerConfig `yaml:"select_star"`
}

// Default returns the built-in configuration: every core checker on at its
// built-in severity, supplemental comment/DDL checks off, template
// context sub-checks off with only the generic raw-injection scan active.
func Default() *Config {
	return &Config{
		Parser: ParserConfig{CacheSize: sql.DefaultCacheSize},
		Dedup: DedupConfig{
			Enabled:   true,
			Capacity:  engine.DefaultDedupCapacity,
			TTLMillis: int(engine.DefaultDedupTTL / time.Millisecond),
		},
		Checkers: CheckersConfig{
			MultiStatement: CheckerConfig{Enabled: true},
			Comment: CommentConfig{
				CheckerConfig: CheckerConfig{Enabled: false},
				AllowHints:    true,
			},
			IntoOutfile:       CheckerConfig{Enabled: true},
			CallStatement:     CheckerConfig{Enabled: true},
			MetadataStatement: MetadataStatementConfig{CheckerConfig: CheckerConfig{Enabled: true}},
			SetStatement:      CheckerConfig{Enabled: true},
			ParamInjection:    CheckerConfig{Enabled: true},
			DDLOperation:      DDLOperationConfig{CheckerConfig: CheckerConfig{Enabled: false}},
			SetOperation:      SetOperationConfig{CheckerConfig: CheckerConfig{Enabled: true}},
			DangerousFunction: DangerousFunctionConfig{
				CheckerConfig: CheckerConfig{Enabled: true},
				Functions: []string{
					"load_file", "sleep", "benchmark", "updatexml",
					"extractvalue", "version", "database", "user",
					"current_user", "system_user", "session_user",
				},
			},
			DeniedTable:           TableListConfig{CheckerConfig: CheckerConfig{Enabled: true}},
			ReadOnlyTable:         TableListConfig{CheckerConfig: CheckerConfig{Enabled: true}},
			NoFilter:              NoFilterConfig{CheckerConfig: CheckerConfig{Enabled: true}},
			AlwaysTrue:            AlwaysTrueConfig{CheckerConfig: CheckerConfig{Enabled: true}},
			LowSelectivity:        FieldListConfig{CheckerConfig: CheckerConfig{Enabled: true}},
			RequiredField:         RequiredFieldConfig{CheckerConfig: CheckerConfig{Enabled: true}},
			LogicalPagination:     CheckerConfig{Enabled: true},
			NoConditionPagination: CheckerConfig{Enabled: true},
			DeepOffset: DeepOffsetConfig{
				CheckerConfig: CheckerConfig{Enabled: true},
				MaxOffset:     10000,
			},
			LargePageSize: LargePageSizeConfig{
				CheckerConfig: CheckerConfig{Enabled: true},
				MaxPageSize:   1000,
			},
			MissingOrderBy: CheckerConfig{Enabled: true},
			Unconditioned:  UnconditionedConfig{Enabled: true},
		},
		Template: TemplateConfig{
			Generic: CheckerConfig{Enabled: true},
		},
	}
}

// Load reads configuration from a YAML file with environment variable
// overrides. Fields absent from the file keep their Default() values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Parse decodes configuration from raw YAML bytes, for callers that embed
// the engine and manage files themselves. Environment variables are not
// consulted. Fields absent from the document keep their Default() values.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

var (
	metadataStatements = []string{"SHOW", "DESCRIBE", "DESC", "USE"}
	ddlOperations      = []string{"CREATE", "ALTER", "DROP", "TRUNCATE"}
	setOperators       = []string{
		"UNION", "UNION_ALL", "EXCEPT", "EXCEPT_ALL",
		"INTERSECT", "INTERSECT_ALL", "MINUS", "MINUS_ALL",
	}
)

// Validate fails fast on malformed configuration: mistyped severities,
// impossible thresholds, unknown allowlist entries, uncompilable exemption
// patterns. It also compiles the origin exemption patterns for later use.
func (c *Config) Validate() error {
	if c.Parser.CacheSize < 0 {
		return fmt.Errorf("parser.cache_size must not be negative, got %d", c.Parser.CacheSize)
	}
	if c.Dedup.Capacity < 0 {
		return fmt.Errorf("dedup.capacity must not be negative, got %d", c.Dedup.Capacity)
	}
	if c.Dedup.TTLMillis < 0 {
		return fmt.Errorf("dedup.ttl_millis must not be negative, got %d", c.Dedup.TTLMillis)
	}

	for _, f := range c.severityFields() {
		if f.value == "" {
			continue
		}
		if _, err := engine.ParseSeverity(f.value); err != nil {
			return fmt.Errorf("%s: %w", f.path, err)
		}
	}

	if err := validateAllowList("checkers.metadata_statement.allow", c.Checkers.MetadataStatement.Allow, metadataStatements); err != nil {
		return err
	}
	if err := validateAllowList("checkers.ddl_operation.allow", c.Checkers.DDLOperation.Allow, ddlOperations); err != nil {
		return err
	}
	if err := validateAllowList("checkers.set_operation.allow", c.Checkers.SetOperation.Allow, setOperators); err != nil {
		return err
	}

	if c.Checkers.DeepOffset.MaxOffset < 1 {
		return fmt.Errorf("checkers.deep_offset.max_offset must be positive, got %d", c.Checkers.DeepOffset.MaxOffset)
	}
	if c.Checkers.LargePageSize.MaxPageSize < 1 {
		return fmt.Errorf("checkers.large_page_size.max_page_size must be positive, got %d", c.Checkers.LargePageSize.MaxPageSize)
	}

	for table, fields := range c.Checkers.RequiredField.Tables {
		if len(fields) == 0 {
			return fmt.Errorf("checkers.required_field.tables.%s must list at least one required column", table)
		}
	}
	if c.Checkers.RequiredField.EnforceForUnknownTables && len(c.Checkers.RequiredField.GlobalFields) == 0 {
		return fmt.Errorf("checkers.required_field.global_fields must not be empty when enforce_for_unknown_tables is set")
	}

	compiled := make([]*regexp.Regexp, 0, len(c.Checkers.Unconditioned.ExemptOrigins))
	for _, pattern := range c.Checkers.Unconditioned.ExemptOrigins {
		re, err := compileOriginPattern(pattern)
		if err != nil {
			return fmt.Errorf("checkers.unconditioned.exempt_origins: %w", err)
		}
		compiled = append(compiled, re)
	}
	c.Checkers.Unconditioned.compiledOrigins = compiled

	return nil
}

type severityField struct {
	path  string
	value string
}

func (c *Config) severityFields() []severityField {
	return []severityField{
		{"checkers.multi_statement.severity", c.Checkers.MultiStatement.Severity},
		{"checkers.comment.severity", c.Checkers.Comment.Severity},
		{"checkers.into_outfile.severity", c.Checkers.IntoOutfile.Severity},
		{"checkers.call_statement.severity", c.Checkers.CallStatement.Severity},
		{"checkers.metadata_statement.severity", c.Checkers.MetadataStatement.Severity},
		{"checkers.set_statement.severity", c.Checkers.SetStatement.Severity},
		{"checkers.param_injection.severity", c.Checkers.ParamInjection.Severity},
		{"checkers.ddl_operation.severity", c.Checkers.DDLOperation.Severity},
		{"checkers.set_operation.severity", c.Checkers.SetOperation.Severity},
		{"checkers.dangerous_function.severity", c.Checkers.DangerousFunction.Severity},
		{"checkers.denied_table.severity", c.Checkers.DeniedTable.Severity},
		{"checkers.read_only_table.severity", c.Checkers.ReadOnlyTable.Severity},
		{"checkers.no_filter.severity", c.Checkers.NoFilter.Severity},
		{"checkers.always_true.severity", c.Checkers.AlwaysTrue.Severity},
		{"checkers.low_selectivity.severity", c.Checkers.LowSelectivity.Severity},
		{"checkers.required_field.severity", c.Checkers.RequiredField.Severity},
		{"checkers.logical_pagination.severity", c.Checkers.LogicalPagination.Severity},
		{"checkers.no_condition_pagination.severity", c.Checkers.NoConditionPagination.Severity},
		{"checkers.deep_offset.severity", c.Checkers.DeepOffset.Severity},
		{"checkers.large_page_size.severity", c.Checkers.LargePageSize.Severity},
		{"checkers.missing_order_by.severity", c.Checkers.MissingOrderBy.Severity},
		{"template.generic.severity", c.Template.Generic.Severity},
		{"template.order_by.severity", c.Template.OrderBy.Severity},
		{"template.limit_offset.severity", c.Template.LimitOffset.Severity},
		{"template.aggregate.severity", c.Template.Aggregate.Severity},
		{"template.select_star.severity", c.Template.SelectStar.Severity},
	}
}

// normalizeKeyword folds an allowlist entry to its canonical form:
// upper case, spaces as underscores, DESC as DESCRIBE.
func normalizeKeyword(s string) string {
	key := strings.ToUpper(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, " ", "_")
	if key == "DESC" {
		return "DESCRIBE"
	}
	return key
}

func containsKeyword(list []string, keyword string) bool {
	want := normalizeKeyword(keyword)
	for _, entry := range list {
		if normalizeKeyword(entry) == want {
			return true
		}
	}
	return false
}

func validateAllowList(path string, values, universe []string) error {
	allowed := make(map[string]struct{}, len(universe))
	for _, u := range universe {
		allowed[normalizeKeyword(u)] = struct{}{}
	}
	for _, v := range values {
		if _, ok := allowed[normalizeKeyword(v)]; !ok {
			return fmt.Errorf("%s: unrecognized entry %q", path, v)
		}
	}
	return nil
}

// compileOriginPattern turns an exemption pattern into an anchored regexp:
// * matches any run of characters, everything else is literal.
func compileOriginPattern(pattern string) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("origin pattern must not be empty")
	}
	escaped := strings.ReplaceAll(regexp.QuoteMeta(pattern), `\*`, ".*")
	re, err := regexp.Compile("^" + escaped + "$")
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", pattern, err)
	}
	return re, nil
}
