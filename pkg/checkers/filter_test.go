package checkers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/sqlguard/pkg/config"
	"github.com/ekaya-inc/sqlguard/pkg/engine"
)

func TestNoFilterChecker(t *testing.T) {
	checker := NewNoFilterChecker(config.NoFilterConfig{
		CheckerConfig: config.CheckerConfig{Enabled: true},
	})

	t.Run("unfiltered delete fires", func(t *testing.T) {
		rctx := newCtx("DELETE FROM orders")
		require.True(t, checker.Applicable(rctx))
		verdict := engine.NewVerdict()
		assert.NoError(t, checker.Check(rctx, verdict))
		got := violationsOf(verdict, "no-filter-clause")
		require.Len(t, got, 1)
		assert.Equal(t, engine.SeverityCritical, got[0].Severity)
		assert.Contains(t, got[0].Message, "no filter clause")
	})

	t.Run("unfiltered update fires", func(t *testing.T) {
		verdict := engine.NewVerdict()
		assert.NoError(t, checker.Check(newCtx("UPDATE users SET active = 0"), verdict))
		assert.Len(t, violationsOf(verdict, "no-filter-clause"), 1)
	})

	t.Run("filtered delete passes", func(t *testing.T) {
		verdict := engine.NewVerdict()
		assert.NoError(t, checker.Check(newCtx("DELETE FROM orders WHERE id = 1"), verdict))
		assert.Empty(t, verdict.Violations())
	})

	t.Run("select exempt unless include_select", func(t *testing.T) {
		assert.False(t, checker.Applicable(newCtx("SELECT * FROM users")))

		withSelect := NewNoFilterChecker(config.NoFilterConfig{
			CheckerConfig: config.CheckerConfig{Enabled: true},
			IncludeSelect: true,
		})
		rctx := newCtx("SELECT * FROM users")
		require.True(t, withSelect.Applicable(rctx))
		verdict := engine.NewVerdict()
		assert.NoError(t, withSelect.Check(rctx, verdict))
		assert.Len(t, violationsOf(verdict, "no-filter-clause"), 1)
	})
}

func TestAlwaysTrueChecker(t *testing.T) {
	checker := NewAlwaysTrueChecker(config.AlwaysTrueConfig{
		CheckerConfig: config.CheckerConfig{Enabled: true},
	})

	t.Run("constant equality fires", func(t *testing.T) {
		for _, q := range []string{
			"SELECT * FROM users WHERE 1=1",
			"SELECT * FROM users WHERE 'a' = 'a'",
			"DELETE FROM users WHERE 1 = 1",
		} {
			verdict := engine.NewVerdict()
			assert.NoError(t, checker.Check(newCtx(q), verdict))
			got := violationsOf(verdict, "always-true-condition")
			require.Len(t, got, 1, "query %q", q)
			assert.Equal(t, engine.SeverityHigh, got[0].Severity)
		}
	})

	t.Run("tautology embedded in AND fires", func(t *testing.T) {
		verdict := engine.NewVerdict()
		assert.NoError(t, checker.Check(newCtx("SELECT * FROM users WHERE status = 1 AND 1 = 1"), verdict))
		assert.Len(t, violationsOf(verdict, "always-true-condition"), 1)
	})

	t.Run("digit-adjacent column is not a tautology", func(t *testing.T) {
		verdict := engine.NewVerdict()
		assert.NoError(t, checker.Check(newCtx("SELECT * FROM metrics WHERE col1 = 10"), verdict))
		assert.Empty(t, verdict.Violations())
	})

	t.Run("real predicate passes", func(t *testing.T) {
		verdict := engine.NewVerdict()
		assert.NoError(t, checker.Check(newCtx("SELECT * FROM users WHERE status = 1"), verdict))
		assert.Empty(t, verdict.Violations())
	})

	t.Run("custom pattern fires", func(t *testing.T) {
		custom := NewAlwaysTrueChecker(config.AlwaysTrueConfig{
			CheckerConfig: config.CheckerConfig{Enabled: true},
			Patterns:      []string{"'x' = 'x'"},
		})
		verdict := engine.NewVerdict()
		assert.NoError(t, custom.Check(newCtx("SELECT * FROM users WHERE name = 'a' AND 'x' = 'x'"), verdict))
		assert.Len(t, violationsOf(verdict, "always-true-condition"), 1)
	})

	t.Run("degraded run scans the raw text", func(t *testing.T) {
		verdict := engine.NewVerdict()
		assert.NoError(t, checker.Check(newCtx("SELEC * FROM users WHERE 1=1"), verdict))
		assert.Len(t, violationsOf(verdict, "always-true-condition"), 1)
	})
}

func TestLowSelectivityChecker(t *testing.T) {
	checker := NewLowSelectivityChecker(config.FieldListConfig{
		CheckerConfig: config.CheckerConfig{Enabled: true},
		Fields:        []string{"status", "is_*"},
	})

	t.Run("all columns blacklisted fires", func(t *testing.T) {
		verdict := engine.NewVerdict()
		assert.NoError(t, checker.Check(newCtx("SELECT * FROM users WHERE status = 1 AND is_deleted = 0"), verdict))
		got := violationsOf(verdict, "low-selectivity-field-only")
		require.Len(t, got, 1)
		assert.Equal(t, engine.SeverityHigh, got[0].Severity)
		assert.Contains(t, got[0].Message, "status")
	})

	t.Run("one selective column passes", func(t *testing.T) {
		verdict := engine.NewVerdict()
		assert.NoError(t, checker.Check(newCtx("SELECT * FROM users WHERE status = 1 AND email = 'a@b.c'"), verdict))
		assert.Empty(t, verdict.Violations())
	})

	t.Run("no where clause passes", func(t *testing.T) {
		verdict := engine.NewVerdict()
		assert.NoError(t, checker.Check(newCtx("SELECT * FROM users"), verdict))
		assert.Empty(t, verdict.Violations())
	})

	t.Run("not applicable with empty blacklist", func(t *testing.T) {
		empty := NewLowSelectivityChecker(config.FieldListConfig{CheckerConfig: config.CheckerConfig{Enabled: true}})
		assert.False(t, empty.Applicable(newCtx("SELECT * FROM users WHERE status = 1")))
	})
}

func TestRequiredFieldChecker(t *testing.T) {
	checker := NewRequiredFieldChecker(config.RequiredFieldConfig{
		CheckerConfig: config.CheckerConfig{Enabled: true},
		Tables:        map[string][]string{"orders": {"tenant_id", "user_id"}},
	})

	t.Run("missing required column fires", func(t *testing.T) {
		verdict := engine.NewVerdict()
		assert.NoError(t, checker.Check(newCtx("SELECT * FROM orders WHERE status = 1"), verdict))
		got := violationsOf(verdict, "required-field")
		require.Len(t, got, 1)
		assert.Equal(t, engine.SeverityMedium, got[0].Severity)
		assert.Contains(t, got[0].Message, "tenant_id")
	})

	t.Run("any one required column passes", func(t *testing.T) {
		for _, q := range []string{
			"SELECT * FROM orders WHERE tenant_id = 5",
			"SELECT * FROM orders WHERE user_id = 7 AND status = 1",
		} {
			verdict := engine.NewVerdict()
			assert.NoError(t, checker.Check(newCtx(q), verdict))
			assert.Empty(t, verdict.Violations(), "query %q", q)
		}
	})

	t.Run("absent filter is out of scope", func(t *testing.T) {
		verdict := engine.NewVerdict()
		assert.NoError(t, checker.Check(newCtx("DELETE FROM orders"), verdict))
		assert.Empty(t, verdict.Violations())
	})

	t.Run("unknown table exempt by default", func(t *testing.T) {
		verdict := engine.NewVerdict()
		assert.NoError(t, checker.Check(newCtx("SELECT * FROM invoices WHERE status = 1"), verdict))
		assert.Empty(t, verdict.Violations())
	})

	t.Run("enforce_for_unknown_tables applies global fields", func(t *testing.T) {
		enforced := NewRequiredFieldChecker(config.RequiredFieldConfig{
			CheckerConfig:           config.CheckerConfig{Enabled: true},
			GlobalFields:            []string{"tenant_id"},
			EnforceForUnknownTables: true,
		})
		verdict := engine.NewVerdict()
		assert.NoError(t, enforced.Check(newCtx("SELECT * FROM invoices WHERE status = 1"), verdict))
		assert.Len(t, violationsOf(verdict, "required-field"), 1)

		verdict = engine.NewVerdict()
		assert.NoError(t, enforced.Check(newCtx("SELECT * FROM invoices WHERE tenant_id = 3"), verdict))
		assert.Empty(t, verdict.Violations())
	})
}
