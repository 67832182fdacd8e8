// Package database runs ad-hoc queries, commands and stored procedures against
// a relational store, for tests that set up or check data behind the pages.
//
// A Helper opens a new connection for every call and closes it on return;
// pooling is left to the database/sql driver.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/golang/glog"

	"github.com/wanmail/seleniumexample/driver"
)

// ErrInvalidArgument reports a call that was rejected before reaching the
// database. It is the same error kind the driver package reports for bad
// input, so one errors.Is check covers both.
var ErrInvalidArgument = driver.ErrInvalidArgument

// Action is the kind of data-changing statement passed to ExecuteCommand.
type Action int

const (
	Insert Action = iota + 1
	Update
	Delete
)

func (a Action) String() string {
	switch a {
	case Insert:
		return "Insert"
	case Update:
		return "Update"
	case Delete:
		return "Delete"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// ParseAction resolves an action name, ignoring case.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(s) {
	case "insert":
		return Insert, nil
	case "update":
		return Update, nil
	case "delete":
		return Delete, nil
	}
	return 0, fmt.Errorf("%w: unknown action %q", ErrInvalidArgument, s)
}

// ProcedureStyle selects how a stored procedure call is written.
type ProcedureStyle int

const (
	// Exec writes "EXEC name @p = @p, ..." with named parameters, for SQL
	// Server.
	Exec ProcedureStyle = iota
	// Call writes "CALL name(?, ...)" with positional parameters, for MySQL
	// and PostgreSQL.
	Call
)

// ParseProcedureStyle resolves "exec" or "call", ignoring case.
func ParseProcedureStyle(s string) (ProcedureStyle, error) {
	switch strings.ToLower(s) {
	case "", "exec":
		return Exec, nil
	case "call":
		return Call, nil
	}
	return 0, fmt.Errorf("%w: unknown procedure style %q", ErrInvalidArgument, s)
}

// Table is an in-memory snapshot of a result set.
type Table struct {
	Columns []string
	Rows    [][]any
}

// RowCount returns the number of rows in t. A nil Table has no rows.
func (t *Table) RowCount() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Helper runs statements against one data source.
type Helper struct {
	driver, dsn string
	style       ProcedureStyle

	open func(driverName, dsn string) (*sql.DB, error)
}

// New returns a Helper for the data source dsn of the registered
// database/sql driver driverName.
func New(driverName, dsn string, style ProcedureStyle) *Helper {
	return &Helper{driver: driverName, dsn: dsn, style: style, open: sql.Open}
}

func (h *Helper) connect(ctx context.Context) (*sql.DB, error) {
	db, err := h.open(h.driver, h.dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", h.driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s database: %w", h.driver, err)
	}
	return db, nil
}

// QueryTable runs query and returns every row it produces.
func (h *Helper) QueryTable(ctx context.Context, query string, args ...any) (*Table, error) {
	db, err := h.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	glog.V(2).Infof("query: %s", query)
	return queryTable(ctx, db, query, args...)
}

func queryTable(ctx context.Context, db *sql.DB, query string, args ...any) (*Table, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", query, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	t := &Table{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("query %q: %w", query, err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		t.Rows = append(t.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %q: %w", query, err)
	}
	return t, nil
}

var leadingWith = regexp.MustCompile(`(?is)^with\s.*?\)\s*(insert|update|delete)\b`)

// statementAction returns the action a statement performs, judged by its
// leading keyword. A leading WITH clause is skipped.
func statementAction(stmt string) (Action, bool) {
	s := strings.TrimSpace(stmt)
	if m := leadingWith.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	word := s
	if i := strings.IndexFunc(s, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '(' }); i >= 0 {
		word = s[:i]
	}
	a, err := ParseAction(word)
	return a, err == nil
}

// ExecuteCommand runs an INSERT, UPDATE or DELETE statement and returns the
// number of affected rows. The statement must perform the stated action.
func (h *Helper) ExecuteCommand(ctx context.Context, action Action, stmt string, args ...any) (int64, error) {
	got, ok := statementAction(stmt)
	if !ok {
		return 0, fmt.Errorf("%w: %q is not an insert, update or delete statement", ErrInvalidArgument, stmt)
	}
	if got != action {
		return 0, fmt.Errorf("%w: %s requested but %q is a %s statement", ErrInvalidArgument, action, stmt, got)
	}
	db, err := h.connect(ctx)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	glog.V(2).Infof("%s: %s", action, stmt)
	res, err := db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", action, stmt, err)
	}
	return res.RowsAffected()
}

var procedureName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// procedureCall builds the statement and arguments that call the procedure
// name with the parameters pairwise given by names and values.
func procedureCall(style ProcedureStyle, name string, names []string, values []any) (string, []any, error) {
	if len(names) != len(values) {
		return "", nil, fmt.Errorf("%w: %d parameter names but %d values", ErrInvalidArgument, len(names), len(values))
	}
	if !procedureName.MatchString(name) {
		return "", nil, fmt.Errorf("%w: invalid procedure name %q", ErrInvalidArgument, name)
	}
	args := make([]any, len(values))
	switch style {
	case Call:
		marks := make([]string, len(values))
		for i, v := range values {
			marks[i] = "?"
			args[i] = v
		}
		return fmt.Sprintf("CALL %s(%s)", name, strings.Join(marks, ", ")), args, nil
	case Exec:
		assigns := make([]string, len(names))
		for i, n := range names {
			n = strings.TrimPrefix(n, "@")
			if !procedureName.MatchString(n) || strings.Contains(n, ".") {
				return "", nil, fmt.Errorf("%w: invalid parameter name %q", ErrInvalidArgument, names[i])
			}
			assigns[i] = fmt.Sprintf("@%s = @%s", n, n)
			args[i] = sql.Named(n, values[i])
		}
		stmt := "EXEC " + name
		if len(assigns) > 0 {
			stmt += " " + strings.Join(assigns, ", ")
		}
		return stmt, args, nil
	}
	return "", nil, fmt.Errorf("%w: unknown procedure style %d", ErrInvalidArgument, style)
}

// ExecuteStoredProcedure calls the stored procedure name, passing values[i]
// as the parameter names[i], and returns the rows it produces. Names and
// values must have the same length; both may be nil.
func (h *Helper) ExecuteStoredProcedure(ctx context.Context, name string, names []string, values []any) (*Table, error) {
	stmt, args, err := procedureCall(h.style, name, names, values)
	if err != nil {
		return nil, err
	}
	db, err := h.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	glog.V(2).Infof("procedure: %s", stmt)
	return queryTable(ctx, db, stmt, args...)
}
