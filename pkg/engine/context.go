// Package engine defines the execution context, verdict model, pagination
// classifier, and the checker chain that orchestrates a classification run.
package engine

import (
	"errors"
	"math"
	"strings"
	"sync"

	"github.com/pingcap/tidb/parser/ast"
)

// CommandType identifies the statement family a query belongs to.
type CommandType string

const (
	CommandUnknown CommandType = "UNKNOWN"
	CommandSelect  CommandType = "SELECT"
	CommandInsert  CommandType = "INSERT"
	CommandUpdate  CommandType = "UPDATE"
	CommandDelete  CommandType = "DELETE"
	CommandDDL     CommandType = "DDL"
)

// ErrNoParser is returned when a context is asked for its AST but carries
// neither a pre-parsed statement nor a parse function.
var ErrNoParser = errors.New("no parser configured for execution context")

// Parameter is one bound parameter in statement order.
type Parameter struct {
	Name  string
	Value any
}

// PageHint is the page window the caller requested alongside the query,
// independent of any LIMIT in the SQL text.
type PageHint struct {
	Offset int64
	Limit  int64
}

// Unbounded reports whether the hint does not actually restrict the result
// window.
func (h PageHint) Unbounded() bool {
	return h.Limit <= 0 || h.Limit >= math.MaxInt32
}

// ParseFunc turns SQL text into a single-statement AST.
type ParseFunc func(sqlQuery string) (ast.StmtNode, error)

// ExecutionContext carries one statement through a chain run. It is
// immutable after construction; the statement is parsed at most once and
// the result memoized, error included.
type ExecutionContext struct {
	sqlText  string
	originID string
	command  CommandType
	params   []Parameter
	page     *PageHint
	plugin   bool
	parse    ParseFunc

	once sync.Once
	stmt ast.StmtNode
	err  error
}

// ContextOption configures an ExecutionContext at construction.
type ContextOption func(*ExecutionContext)

// WithParser supplies the parse function used for lazy AST resolution.
func WithParser(parse ParseFunc) ContextOption {
	return func(c *ExecutionContext) { c.parse = parse }
}

// WithStatement supplies a pre-parsed AST, skipping the parse entirely.
func WithStatement(stmt ast.StmtNode) ContextOption {
	return func(c *ExecutionContext) { c.stmt = stmt }
}

// WithCommand pins the statement family instead of deriving it.
func WithCommand(ct CommandType) ContextOption {
	return func(c *ExecutionContext) { c.command = ct }
}

// WithOrigin records the call-site identifier the statement came from.
func WithOrigin(id string) ContextOption {
	return func(c *ExecutionContext) { c.originID = id }
}

// WithParameters records the bound parameters in statement order.
func WithParameters(params []Parameter) ContextOption {
	return func(c *ExecutionContext) { c.params = params }
}

// WithPageHint records the page window requested by the caller.
func WithPageHint(offset, limit int64) ContextOption {
	return func(c *ExecutionContext) { c.page = &PageHint{Offset: offset, Limit: limit} }
}

// WithPlugin records whether a physical pagination plugin is active on the
// calling path.
func WithPlugin(present bool) ContextOption {
	return func(c *ExecutionContext) { c.plugin = present }
}

// NewContext builds a context for one SQL statement.
func NewContext(sqlText string, opts ...ContextOption) *ExecutionContext {
	c := &ExecutionContext{sqlText: sqlText}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SQL returns the raw statement text.
func (c *ExecutionContext) SQL() string { return c.sqlText }

// OriginID identifies the statement's source call site.
func (c *ExecutionContext) OriginID() string { return c.originID }

// Parameters returns the bound parameters in statement order.
func (c *ExecutionContext) Parameters() []Parameter { return c.params }

// Page returns the caller's page hint, or nil when none was supplied.
func (c *ExecutionContext) Page() *PageHint { return c.page }

// PluginPresent reports whether a physical pagination plugin is active on
// the calling path.
func (c *ExecutionContext) PluginPresent() bool { return c.plugin }

// Statement resolves the AST exactly once and memoizes the result. A
// pre-parsed statement short-circuits the parse.
func (c *ExecutionContext) Statement() (ast.StmtNode, error) {
	c.once.Do(func() {
		if c.stmt != nil {
			return
		}
		if c.parse == nil {
			c.err = ErrNoParser
			return
		}
		c.stmt, c.err = c.parse(c.sqlText)
	})
	return c.stmt, c.err
}

// HasStatement reports whether an AST is available.
func (c *ExecutionContext) HasStatement() bool {
	stmt, err := c.Statement()
	return err == nil && stmt != nil
}

// Command returns the statement family: the explicit command when one was
// supplied, otherwise derived from the AST, otherwise from the leading
// keyword of the raw text.
func (c *ExecutionContext) Command() CommandType {
	if c.command != "" {
		return c.command
	}
	if stmt, err := c.Statement(); err == nil && stmt != nil {
		if ct := commandOf(stmt); ct != CommandUnknown {
			return ct
		}
	}
	return commandFromText(c.sqlText)
}

func commandOf(stmt ast.StmtNode) CommandType {
	switch stmt.(type) {
	case *ast.SelectStmt, *ast.SetOprStmt:
		return CommandSelect
	case *ast.InsertStmt:
		// REPLACE parses as an InsertStmt with IsReplace set.
		return CommandInsert
	case *ast.UpdateStmt:
		return CommandUpdate
	case *ast.DeleteStmt:
		return CommandDelete
	}
	if _, ok := stmt.(ast.DDLNode); ok {
		return CommandDDL
	}
	return CommandUnknown
}

func commandFromText(sqlText string) CommandType {
	fields := strings.Fields(strings.ToUpper(sqlText))
	if len(fields) == 0 {
		return CommandUnknown
	}
	switch strings.TrimLeft(fields[0], "(") {
	case "SELECT", "WITH":
		return CommandSelect
	case "INSERT", "REPLACE":
		return CommandInsert
	case "UPDATE":
		return CommandUpdate
	case "DELETE":
		return CommandDelete
	case "CREATE", "ALTER", "DROP", "TRUNCATE":
		return CommandDDL
	}
	return CommandUnknown
}
