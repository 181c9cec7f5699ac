package sql

import (
	"container/list"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pingcap/tidb/parser"
	"github.com/pingcap/tidb/parser/ast"
)

// ErrEmptyStatement indicates the query was empty or whitespace-only.
var ErrEmptyStatement = errors.New("empty SQL statement")

// DefaultCacheSize bounds the parsed-statement cache when no size is
// configured.
const DefaultCacheSize = 512

// CacheStats is a snapshot of parse cache effectiveness counters.
type CacheStats struct {
	Hits   uint64
	Misses uint64
	Size   int
}

// Parser parses single SQL statements through a pool of TiDB parsers and
// caches the resulting ASTs in a bounded LRU keyed by statement
// fingerprint. parser.Parser keeps internal state between calls, so
// instances are pooled rather than shared across goroutines.
type Parser struct {
	pool sync.Pool

	mu     sync.Mutex
	lru    *list.List
	index  map[string]*list.Element
	max    int
	hits   uint64
	misses uint64
}

type cacheEntry struct {
	key  string
	stmt ast.StmtNode
}

// NewParser returns a pooled parser whose statement cache holds up to
// cacheSize entries. Non-positive sizes fall back to DefaultCacheSize.
func NewParser(cacheSize int) *Parser {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	return &Parser{
		pool:  sync.Pool{New: func() any { return parser.New() }},
		lru:   list.New(),
		index: make(map[string]*list.Element, cacheSize),
		max:   cacheSize,
	}
}

// Parse returns the AST for a single SQL statement. Statements containing
// multiple statements are rejected with ErrMultipleStatements. Cached ASTs
// are shared between callers and must be treated as read-only.
func (p *Parser) Parse(sqlQuery string) (ast.StmtNode, error) {
	trimmed := strings.TrimSpace(sqlQuery)
	if trimmed == "" {
		return nil, ErrEmptyStatement
	}
	key := Fingerprint(trimmed)

	p.mu.Lock()
	if el, ok := p.index[key]; ok {
		p.lru.MoveToFront(el)
		p.hits++
		stmt := el.Value.(*cacheEntry).stmt
		p.mu.Unlock()
		return stmt, nil
	}
	p.misses++
	p.mu.Unlock()

	tp := p.pool.Get().(*parser.Parser)
	stmts, _, err := tp.Parse(trimmed, "", "")
	p.pool.Put(tp)
	if err != nil {
		return nil, fmt.Errorf("parse statement: %w", err)
	}
	if len(stmts) == 0 {
		return nil, ErrEmptyStatement
	}
	if len(stmts) > 1 {
		return nil, ErrMultipleStatements
	}
	stmt := stmts[0]

	p.mu.Lock()
	if el, ok := p.index[key]; ok {
		// Another goroutine cached the same statement first; keep its AST so
		// all callers share one instance.
		p.lru.MoveToFront(el)
		stmt = el.Value.(*cacheEntry).stmt
	} else {
		el := p.lru.PushFront(&cacheEntry{key: key, stmt: stmt})
		p.index[key] = el
		if p.lru.Len() > p.max {
			oldest := p.lru.Back()
			p.lru.Remove(oldest)
			delete(p.index, oldest.Value.(*cacheEntry).key)
		}
	}
	p.mu.Unlock()

	return stmt, nil
}

// Stats returns a snapshot of the cache counters.
func (p *Parser) Stats() CacheStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return CacheStats{Hits: p.hits, Misses: p.misses, Size: p.lru.Len()}
}
