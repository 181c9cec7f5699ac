package sql

import (
	"math"
	"regexp"
	"strings"

	"github.com/pingcap/tidb/parser/ast"
	"github.com/pingcap/tidb/parser/format"
	"github.com/pingcap/tidb/parser/opcode"
	"github.com/pingcap/tidb/types"
	driver "github.com/pingcap/tidb/types/parser_driver"
)

// ExtractWhere returns the top-level WHERE expression of a SELECT, UPDATE,
// or DELETE statement, or nil when the statement has none.
func ExtractWhere(stmt ast.StmtNode) ast.ExprNode {
	switch s := stmt.(type) {
	case *ast.SelectStmt:
		return s.Where
	case *ast.UpdateStmt:
		return s.Where
	case *ast.DeleteStmt:
		return s.Where
	}
	return nil
}

// RestoreExpr renders an expression back to SQL text. Charset prefixes on
// string literals are suppressed so the output matches what a user wrote.
func RestoreExpr(expr ast.ExprNode) string {
	if expr == nil {
		return ""
	}
	var sb strings.Builder
	rc := format.NewRestoreCtx(format.DefaultRestoreFlags|format.RestoreStringWithoutCharset, &sb)
	if err := expr.Restore(rc); err != nil {
		return ""
	}
	return sb.String()
}

// IsTautology reports whether an expression is provably always true: a
// truthy constant, a constant equality over operands of the same kind, an
// OR with a tautological side, or an AND with both sides tautological.
// Mixed-kind equalities like 1='1' are left to the database's coercion
// rules and never reported.
func IsTautology(expr ast.ExprNode) bool {
	switch e := unwrapParens(expr).(type) {
	case *driver.ValueExpr:
		return truthyDatum(e)
	case *ast.BinaryOperationExpr:
		switch e.Op {
		case opcode.LogicOr:
			return IsTautology(e.L) || IsTautology(e.R)
		case opcode.LogicAnd:
			return IsTautology(e.L) && IsTautology(e.R)
		case opcode.EQ, opcode.NullEQ:
			return constantEqualPair(e.L, e.R)
		}
	}
	return false
}

func unwrapParens(expr ast.ExprNode) ast.ExprNode {
	for {
		p, ok := expr.(*ast.ParenthesesExpr)
		if !ok {
			return expr
		}
		expr = p.Expr
	}
}

func truthyDatum(v *driver.ValueExpr) bool {
	switch v.Kind() {
	case types.KindInt64:
		return v.GetInt64() != 0
	case types.KindUint64:
		return v.GetUint64() != 0
	case types.KindFloat32:
		return v.GetFloat32() != 0
	case types.KindFloat64:
		return v.GetFloat64() != 0
	}
	return false
}

// constantEqualPair requires both operands to be literals of the same kind.
// Bind placeholders are a distinct concrete type and never match.
func constantEqualPair(l, r ast.ExprNode) bool {
	lv, ok := unwrapParens(l).(*driver.ValueExpr)
	if !ok {
		return false
	}
	rv, ok := unwrapParens(r).(*driver.ValueExpr)
	if !ok {
		return false
	}
	if lv.Kind() != rv.Kind() {
		return false
	}
	switch lv.Kind() {
	case types.KindInt64:
		return lv.GetInt64() == rv.GetInt64()
	case types.KindUint64:
		return lv.GetUint64() == rv.GetUint64()
	case types.KindString:
		return lv.GetString() == rv.GetString()
	case types.KindFloat32:
		return lv.GetFloat32() == rv.GetFloat32()
	case types.KindFloat64:
		return lv.GetFloat64() == rv.GetFloat64()
	}
	return false
}

type columnCollector struct {
	seen map[string]struct{}
	cols []string
}

func (c *columnCollector) Enter(n ast.Node) (ast.Node, bool) {
	if col, ok := n.(*ast.ColumnNameExpr); ok {
		name := col.Name.Name.L
		if _, dup := c.seen[name]; name != "" && !dup {
			c.seen[name] = struct{}{}
			c.cols = append(c.cols, name)
		}
	}
	return n, false
}

func (c *columnCollector) Leave(n ast.Node) (ast.Node, bool) { return n, true }

// CollectColumns returns the lowercase column names referenced anywhere in
// the expression, deduplicated in order of first appearance.
func CollectColumns(expr ast.ExprNode) []string {
	if expr == nil {
		return nil
	}
	c := &columnCollector{seen: make(map[string]struct{})}
	expr.Accept(c)
	return c.cols
}

type tableCollector struct {
	seen  map[string]struct{}
	names []string
}

func (c *tableCollector) Enter(n ast.Node) (ast.Node, bool) {
	if t, ok := n.(*ast.TableName); ok {
		name := t.Name.L
		if _, dup := c.seen[name]; name != "" && !dup {
			c.seen[name] = struct{}{}
			c.names = append(c.names, name)
		}
	}
	return n, false
}

func (c *tableCollector) Leave(n ast.Node) (ast.Node, bool) { return n, true }

// CollectTables returns the lowercase names of every table the statement
// references, deduplicated in order of first appearance. Derived tables
// contribute the tables of their inner query, not their alias.
func CollectTables(stmt ast.StmtNode) []string {
	if stmt == nil {
		return nil
	}
	c := &tableCollector{seen: make(map[string]struct{})}
	stmt.Accept(c)
	return c.names
}

// WriteTargets returns the lowercase names of the tables a write statement
// modifies: the INSERT target, the UPDATE join tables, or the DELETE
// targets. Read statements return nil.
func WriteTargets(stmt ast.StmtNode) []string {
	switch s := stmt.(type) {
	case *ast.InsertStmt:
		if s.Table != nil {
			return collectJoinTables(s.Table.TableRefs)
		}
	case *ast.UpdateStmt:
		if s.TableRefs != nil {
			return collectJoinTables(s.TableRefs.TableRefs)
		}
	case *ast.DeleteStmt:
		if s.IsMultiTable && s.Tables != nil {
			var names []string
			seen := make(map[string]struct{})
			for _, t := range s.Tables.Tables {
				if _, dup := seen[t.Name.L]; !dup {
					seen[t.Name.L] = struct{}{}
					names = append(names, t.Name.L)
				}
			}
			return names
		}
		if s.TableRefs != nil {
			return collectJoinTables(s.TableRefs.TableRefs)
		}
	}
	return nil
}

func collectJoinTables(rs ast.ResultSetNode) []string {
	var names []string
	seen := make(map[string]struct{})
	var walk func(ast.ResultSetNode)
	walk = func(node ast.ResultSetNode) {
		switch n := node.(type) {
		case *ast.Join:
			walk(n.Left)
			walk(n.Right)
		case *ast.TableSource:
			if t, ok := n.Source.(*ast.TableName); ok {
				if _, dup := seen[t.Name.L]; !dup {
					seen[t.Name.L] = struct{}{}
					names = append(names, t.Name.L)
				}
			}
		case *ast.TableName:
			if _, dup := seen[n.Name.L]; !dup {
				seen[n.Name.L] = struct{}{}
				names = append(names, n.Name.L)
			}
		}
	}
	walk(rs)
	return names
}

// HasLimitClause inspects the top-level statement for a limiting clause.
// conclusive is false when the statement shape can hide a limit from a
// top-level read (derived tables, set operation members); callers should
// then fall back to HasPaginationKeyword on the raw text.
func HasLimitClause(stmt ast.StmtNode) (has, conclusive bool) {
	switch s := stmt.(type) {
	case *ast.SelectStmt:
		if s.Limit != nil {
			return true, true
		}
		if selectHasDerivedTable(s) {
			return false, false
		}
		return false, true
	case *ast.SetOprStmt:
		if s.Limit != nil {
			return true, true
		}
		return false, false
	case *ast.UpdateStmt:
		return s.Limit != nil, true
	case *ast.DeleteStmt:
		return s.Limit != nil, true
	}
	return false, true
}

func selectHasDerivedTable(sel *ast.SelectStmt) bool {
	if sel.From == nil {
		return false
	}
	return joinHasDerivedTable(sel.From.TableRefs)
}

func joinHasDerivedTable(rs ast.ResultSetNode) bool {
	switch n := rs.(type) {
	case *ast.Join:
		return joinHasDerivedTable(n.Left) || joinHasDerivedTable(n.Right)
	case *ast.TableSource:
		_, plain := n.Source.(*ast.TableName)
		return !plain
	}
	return false
}

var (
	limitKeywordRegex    = regexp.MustCompile(`(?i)\bLIMIT\s+\d`)
	topKeywordRegex      = regexp.MustCompile(`(?i)\bTOP\s*\(?\s*\d`)
	fetchKeywordRegex    = regexp.MustCompile(`(?i)\bFETCH\s+(FIRST|NEXT)\b`)
	rowLimitKeywordRegex = regexp.MustCompile(`(?i)\bROWNUM\b|\bROW_NUMBER\b`)
)

// HasPaginationKeyword scans raw statement text for row-limiting syntax
// across MySQL (LIMIT), SQL Server (TOP), DB2/standard (FETCH FIRST/NEXT),
// and Oracle (ROWNUM, ROW_NUMBER) dialects.
func HasPaginationKeyword(sqlText string) bool {
	return limitKeywordRegex.MatchString(sqlText) ||
		topKeywordRegex.MatchString(sqlText) ||
		fetchKeywordRegex.MatchString(sqlText) ||
		rowLimitKeywordRegex.MatchString(sqlText)
}

// LimitWindow holds the literal row window of a limiting clause. A nil
// field means the clause omitted the value or bound it to a placeholder.
type LimitWindow struct {
	Count  *int64
	Offset *int64
}

// ExtractLimitWindow pulls literal LIMIT/OFFSET values from the top-level
// statement. Placeholder-bound values stay nil.
func ExtractLimitWindow(stmt ast.StmtNode) LimitWindow {
	var limit *ast.Limit
	switch s := stmt.(type) {
	case *ast.SelectStmt:
		limit = s.Limit
	case *ast.SetOprStmt:
		limit = s.Limit
	case *ast.UpdateStmt:
		limit = s.Limit
	case *ast.DeleteStmt:
		limit = s.Limit
	}
	if limit == nil {
		return LimitWindow{}
	}
	return LimitWindow{
		Count:  literalInt(limit.Count),
		Offset: literalInt(limit.Offset),
	}
}

func literalInt(expr ast.ExprNode) *int64 {
	// ParamMarkerExpr is a distinct concrete type, so this assertion
	// rejects placeholders as well as absent expressions.
	v, ok := expr.(*driver.ValueExpr)
	if !ok {
		return nil
	}
	switch v.Kind() {
	case types.KindInt64:
		n := v.GetInt64()
		return &n
	case types.KindUint64:
		u := v.GetUint64()
		if u > math.MaxInt64 {
			return nil
		}
		n := int64(u)
		return &n
	}
	return nil
}

// HasOrderBy reports whether the top-level statement carries an ORDER BY
// with at least one item.
func HasOrderBy(stmt ast.StmtNode) bool {
	switch s := stmt.(type) {
	case *ast.SelectStmt:
		return s.OrderBy != nil && len(s.OrderBy.Items) > 0
	case *ast.SetOprStmt:
		return s.OrderBy != nil && len(s.OrderBy.Items) > 0
	case *ast.UpdateStmt:
		return s.Order != nil && len(s.Order.Items) > 0
	case *ast.DeleteStmt:
		return s.Order != nil && len(s.Order.Items) > 0
	}
	return false
}

// HasUniqueKeyEquality reports whether the expression contains an equality
// comparison pinning one of the given key columns to a constant or bind
// placeholder. Key names are compared case-insensitively.
func HasUniqueKeyEquality(expr ast.ExprNode, keys []string) bool {
	if expr == nil || len(keys) == 0 {
		return false
	}
	keySet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		keySet[strings.ToLower(k)] = struct{}{}
	}
	w := &uniqueKeyWalker{keys: keySet}
	expr.Accept(w)
	return w.found
}

type uniqueKeyWalker struct {
	keys  map[string]struct{}
	found bool
}

func (w *uniqueKeyWalker) Enter(n ast.Node) (ast.Node, bool) {
	if w.found {
		return n, true
	}
	bin, ok := n.(*ast.BinaryOperationExpr)
	if !ok || bin.Op != opcode.EQ {
		return n, false
	}
	if w.pins(bin.L, bin.R) || w.pins(bin.R, bin.L) {
		w.found = true
		return n, true
	}
	return n, false
}

func (w *uniqueKeyWalker) Leave(n ast.Node) (ast.Node, bool) { return n, true }

func (w *uniqueKeyWalker) pins(colSide, valSide ast.ExprNode) bool {
	col, ok := unwrapParens(colSide).(*ast.ColumnNameExpr)
	if !ok {
		return false
	}
	if _, hit := w.keys[col.Name.Name.L]; !hit {
		return false
	}
	switch unwrapParens(valSide).(type) {
	case *driver.ValueExpr, *driver.ParamMarkerExpr:
		return true
	}
	return false
}

// CollectDeniedFunctions returns the lowercase names of function calls in
// the statement that appear in the deny set, deduplicated in call order.
func CollectDeniedFunctions(stmt ast.StmtNode, denied map[string]struct{}) []string {
	if stmt == nil || len(denied) == 0 {
		return nil
	}
	w := &funcCallWalker{denied: denied, seen: make(map[string]struct{})}
	stmt.Accept(w)
	return w.hits
}

type funcCallWalker struct {
	denied map[string]struct{}
	seen   map[string]struct{}
	hits   []string
}

func (w *funcCallWalker) Enter(n ast.Node) (ast.Node, bool) {
	if fc, ok := n.(*ast.FuncCallExpr); ok {
		name := fc.FnName.L
		if _, deny := w.denied[name]; deny {
			if _, dup := w.seen[name]; !dup {
				w.seen[name] = struct{}{}
				w.hits = append(w.hits, name)
			}
		}
	}
	return n, false
}

func (w *funcCallWalker) Leave(n ast.Node) (ast.Node, bool) { return n, true }

// DDLKind classifies a DDL statement as CREATE, ALTER, DROP, TRUNCATE, or
// OTHER. Non-DDL statements return the empty string.
func DDLKind(stmt ast.StmtNode) string {
	if _, ok := stmt.(ast.DDLNode); !ok {
		return ""
	}
	switch stmt.(type) {
	case *ast.CreateTableStmt, *ast.CreateIndexStmt, *ast.CreateDatabaseStmt,
		*ast.CreateViewStmt, *ast.CreateSequenceStmt:
		return "CREATE"
	case *ast.AlterTableStmt, *ast.AlterDatabaseStmt, *ast.AlterSequenceStmt:
		return "ALTER"
	case *ast.DropTableStmt, *ast.DropIndexStmt, *ast.DropDatabaseStmt,
		*ast.DropSequenceStmt:
		return "DROP"
	case *ast.TruncateTableStmt:
		return "TRUNCATE"
	}
	return "OTHER"
}

// SetOperations returns the distinct set operators a compound statement
// applies, as canonical names (UNION, UNION_ALL, EXCEPT, EXCEPT_ALL,
// INTERSECT, INTERSECT_ALL), in order of appearance. Non-compound
// statements return nil.
func SetOperations(stmt ast.StmtNode) []string {
	s, ok := stmt.(*ast.SetOprStmt)
	if !ok || s.SelectList == nil {
		return nil
	}
	var ops []string
	seen := make(map[string]struct{})
	collectSetOps(s.SelectList, seen, &ops)
	return ops
}

func collectSetOps(selectList *ast.SetOprSelectList, seen map[string]struct{}, ops *[]string) {
	for _, sel := range selectList.Selects {
		switch n := sel.(type) {
		case *ast.SelectStmt:
			if n.AfterSetOperator != nil {
				addSetOp(*n.AfterSetOperator, seen, ops)
			}
		case *ast.SetOprSelectList:
			if n.AfterSetOperator != nil {
				addSetOp(*n.AfterSetOperator, seen, ops)
			}
			collectSetOps(n, seen, ops)
		}
	}
}

func addSetOp(op ast.SetOprType, seen map[string]struct{}, ops *[]string) {
	var name string
	switch op {
	case ast.Union:
		name = "UNION"
	case ast.UnionAll:
		name = "UNION_ALL"
	case ast.Except:
		name = "EXCEPT"
	case ast.ExceptAll:
		name = "EXCEPT_ALL"
	case ast.Intersect:
		name = "INTERSECT"
	case ast.IntersectAll:
		name = "INTERSECT_ALL"
	default:
		return
	}
	if _, dup := seen[name]; !dup {
		seen[name] = struct{}{}
		*ops = append(*ops, name)
	}
}
