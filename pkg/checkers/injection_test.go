package checkers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/sqlguard/pkg/audit"
	"github.com/ekaya-inc/sqlguard/pkg/config"
	"github.com/ekaya-inc/sqlguard/pkg/engine"
)

func TestParamInjectionChecker(t *testing.T) {
	t.Run("not applicable without parameters", func(t *testing.T) {
		checker := NewParamInjectionChecker(config.CheckerConfig{Enabled: true}, nil)
		assert.False(t, checker.Applicable(newCtx("SELECT * FROM users WHERE id = ?")))
	})

	t.Run("clean parameters pass", func(t *testing.T) {
		checker := NewParamInjectionChecker(config.CheckerConfig{Enabled: true}, nil)
		rctx := newCtx("SELECT * FROM users WHERE id = ? AND region = ?",
			engine.WithParameters([]engine.Parameter{
				{Name: "id", Value: 42},
				{Name: "region", Value: "eu-west"},
			}))
		require.True(t, checker.Applicable(rctx))

		verdict := engine.NewVerdict()
		assert.NoError(t, checker.Check(rctx, verdict))
		assert.Empty(t, verdict.Violations())
	})

	t.Run("injection payload fires and is audited", func(t *testing.T) {
		core, observed := observer.New(zapcore.DebugLevel)
		auditor := audit.NewSecurityAuditor(zap.New(core))
		checker := NewParamInjectionChecker(config.CheckerConfig{Enabled: true}, auditor)

		rctx := newCtx("SELECT * FROM users WHERE name = ?",
			engine.WithOrigin("UserMapper.findByName"),
			engine.WithParameters([]engine.Parameter{
				{Name: "name", Value: "'; DROP TABLE users--"},
			}))

		verdict := engine.NewVerdict()
		assert.NoError(t, checker.Check(rctx, verdict))

		got := violationsOf(verdict, "param-injection")
		require.Len(t, got, 1)
		assert.Equal(t, engine.SeverityCritical, got[0].Severity)
		assert.Contains(t, got[0].Message, `"name"`)

		logs := observed.FilterMessage("SQL injection attempt detected").All()
		require.Len(t, logs, 1)
		assert.Equal(t, "security_audit", logs[0].LoggerName)
		fields := logs[0].ContextMap()
		assert.Equal(t, "UserMapper.findByName", fields["origin"])
		assert.Equal(t, "name", fields["param_name"])
	})

	t.Run("non-string parameter is never an injection", func(t *testing.T) {
		checker := NewParamInjectionChecker(config.CheckerConfig{Enabled: true}, nil)
		rctx := newCtx("SELECT * FROM users WHERE id = ?",
			engine.WithParameters([]engine.Parameter{{Name: "id", Value: 1337}}))

		verdict := engine.NewVerdict()
		assert.NoError(t, checker.Check(rctx, verdict))
		assert.Empty(t, verdict.Violations())
	})
}
