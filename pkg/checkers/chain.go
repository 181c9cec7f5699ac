package checkers

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/sqlguard/pkg/audit"
	"github.com/ekaya-inc/sqlguard/pkg/config"
	"github.com/ekaya-inc/sqlguard/pkg/engine"
)

// DefaultChain validates cfg and builds the rule chain in execution
// order, including only the enabled checkers: structural gates first,
// then access rules, filter analysis, pagination rules, and finally the
// unconditioned-query stratifier. A nil cfg uses the defaults; a nil
// logger discards logs.
func DefaultChain(cfg *config.Config, logger *zap.Logger) (*engine.Chain, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	auditor := audit.NewSecurityAuditor(logger)
	ck := cfg.Checkers

	var checkers []engine.Checker
	add := func(enabled bool, checker engine.Checker) {
		if enabled {
			checkers = append(checkers, checker)
		}
	}

	add(ck.MultiStatement.Enabled, NewMultiStatementChecker(ck.MultiStatement))
	add(ck.Comment.Enabled, NewCommentChecker(ck.Comment))
	add(ck.IntoOutfile.Enabled, NewIntoOutfileChecker(ck.IntoOutfile))
	add(ck.CallStatement.Enabled, NewCallStatementChecker(ck.CallStatement))
	add(ck.MetadataStatement.Enabled, NewMetadataStatementChecker(ck.MetadataStatement))
	add(ck.SetStatement.Enabled, NewSetStatementChecker(ck.SetStatement))
	add(ck.ParamInjection.Enabled, NewParamInjectionChecker(ck.ParamInjection, auditor))
	add(ck.DDLOperation.Enabled, NewDDLOperationChecker(ck.DDLOperation))
	add(ck.SetOperation.Enabled, NewSetOperationChecker(ck.SetOperation))
	add(ck.DangerousFunction.Enabled, NewDangerousFunctionChecker(ck.DangerousFunction))
	add(ck.DeniedTable.Enabled, NewDeniedTableChecker(ck.DeniedTable))
	add(ck.ReadOnlyTable.Enabled, NewReadOnlyTableChecker(ck.ReadOnlyTable))
	add(ck.NoFilter.Enabled, NewNoFilterChecker(ck.NoFilter))
	add(ck.AlwaysTrue.Enabled, NewAlwaysTrueChecker(ck.AlwaysTrue))
	add(ck.LowSelectivity.Enabled, NewLowSelectivityChecker(ck.LowSelectivity))
	add(ck.RequiredField.Enabled, NewRequiredFieldChecker(ck.RequiredField))
	add(ck.LogicalPagination.Enabled, NewLogicalPaginationChecker(ck.LogicalPagination))
	add(ck.NoConditionPagination.Enabled, NewNoConditionPaginationChecker(ck.NoConditionPagination))
	add(ck.DeepOffset.Enabled, NewDeepOffsetChecker(ck.DeepOffset))
	add(ck.LargePageSize.Enabled, NewLargePageSizeChecker(ck.LargePageSize))
	add(ck.MissingOrderBy.Enabled, NewMissingOrderByChecker(ck.MissingOrderBy))
	add(ck.Unconditioned.Enabled, NewUnconditionedChecker(ck.Unconditioned, ck.LowSelectivity.Fields))

	return engine.NewChain(logger, checkers...), nil
}
