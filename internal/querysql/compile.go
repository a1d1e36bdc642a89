package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/predicate/internal/ir"
	"github.com/roach88/predicate/internal/queryir"
)

// defaultOrder is the total order of each source when a query names none.
var defaultOrder = map[string]string{
	queryir.SourceResolutions: "seq ASC, id ASC COLLATE BINARY",
	queryir.SourceEvents:      "seq ASC, resolution_id ASC COLLATE BINARY",
}

// tiebreaker makes a caller-supplied order total.
var tiebreaker = map[string]string{
	queryir.SourceResolutions: "id ASC COLLATE BINARY",
	queryir.SourceEvents:      "resolution_id ASC COLLATE BINARY, seq ASC",
}

// SQLCompiler compiles queryir queries to parameterized SQLite SQL.
//
// All values are parameterized, never interpolated. Every query gets an
// ORDER BY with a deterministic tiebreaker.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile validates q and converts it to SQL and its parameters.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}
	if res := queryir.Validate(q); !res.Valid {
		return "", nil, fmt.Errorf("invalid query: %s", strings.Join(res.Errors, "; "))
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	columns := "*"
	if len(q.Columns) > 0 {
		columns = strings.Join(q.Columns, ", ")
	}

	var whereClause string
	var params []any
	if q.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		whereClause = " WHERE " + filterSQL
		params = filterParams
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s", columns, q.From, whereClause, c.stableOrderKey(q))
	if q.Limit > 0 {
		sql += " LIMIT ?"
		params = append(params, q.Limit)
	}
	return sql, params, nil
}

// stableOrderKey returns the ORDER BY list for a query. Every query goes
// through here.
func (c *SQLCompiler) stableOrderKey(q queryir.Select) string {
	if len(q.OrderBy) == 0 {
		return defaultOrder[q.From]
	}
	parts := make([]string, 0, len(q.OrderBy)+1)
	for _, col := range q.OrderBy {
		parts = append(parts, col+" ASC")
	}
	parts = append(parts, tiebreaker[q.From])
	return strings.Join(parts, ", ")
}

func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case queryir.Equals:
		return c.compareSQL(pred.Field, "=", pred.Value)
	case *queryir.Equals:
		return c.compareSQL(pred.Field, "=", pred.Value)
	case queryir.Compare:
		return c.compareSQL(pred.Field, pred.Op, pred.Value)
	case *queryir.Compare:
		return c.compareSQL(pred.Field, pred.Op, pred.Value)
	case queryir.And:
		return c.compileAnd(pred)
	case *queryir.And:
		return c.compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *SQLCompiler) compareSQL(field, op string, v ir.IRValue) (string, []any, error) {
	param, err := irValueToParam(v)
	if err != nil {
		return "", nil, fmt.Errorf("convert value for %s: %w", field, err)
	}
	return fmt.Sprintf("%s %s ?", field, op), []any{param}, nil
}

// compileAnd joins conjuncts with AND. Nested conjunctions are
// parenthesized so the output reads the way it was built.
func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	var sqlParts []string
	var allParams []any
	for _, pred := range and.Predicates {
		sql, params, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		if isAnd(pred) {
			sql = "(" + sql + ")"
		}
		sqlParts = append(sqlParts, sql)
		allParams = append(allParams, params...)
	}
	return strings.Join(sqlParts, " AND "), allParams, nil
}

func isAnd(p queryir.Predicate) bool {
	switch p.(type) {
	case queryir.And, *queryir.And:
		return true
	}
	return false
}

// irValueToParam converts a scalar IRValue to a SQL parameter. Bools are
// stored as 0/1 integers.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	default:
		return nil, fmt.Errorf("unsupported IRValue type for SQL parameter: %T", v)
	}
}
