package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// NewLoggingConnector returns a connector for sql.OpenDB that opens sqlite3
// connections and logs every statement with its arguments at debug level.
func NewLoggingConnector(dsn string, logger *slog.Logger) driver.Connector {
	if logger == nil {
		logger = slog.Default()
	}
	return &logConnector{dsn: dsn, logger: logger}
}

type logConnector struct {
	dsn    string
	logger *slog.Logger
}

func (c *logConnector) Connect(context.Context) (driver.Conn, error) {
	conn, err := (&sqlite3.SQLiteDriver{}).Open(c.dsn)
	if err != nil {
		return nil, err
	}
	return &logConn{conn: conn, logger: c.logger}, nil
}

func (c *logConnector) Driver() driver.Driver { return noOpenDriver{} }

type noOpenDriver struct{}

func (noOpenDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("sqllog: open through sql.OpenDB(NewLoggingConnector(...))")
}

type logConn struct {
	conn   driver.Conn
	logger *slog.Logger
}

func (c *logConn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *logConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	var (
		stmt driver.Stmt
		err  error
	)
	if p, ok := c.conn.(driver.ConnPrepareContext); ok {
		stmt, err = p.PrepareContext(ctx, query)
	} else {
		stmt, err = c.conn.Prepare(query)
	}
	if err != nil {
		return nil, err
	}
	return &logStmt{Stmt: stmt, query: query, logger: c.logger}, nil
}

// ExecContext lets multi-statement scripts run in one call, as sqlite3 does.
func (c *logConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	e, ok := c.conn.(driver.ExecerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	logStatement(ctx, c.logger, "exec", query, args)
	return e.ExecContext(ctx, query, args)
}

func (c *logConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	q, ok := c.conn.(driver.QueryerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	logStatement(ctx, c.logger, "query", query, args)
	return q.QueryContext(ctx, query, args)
}

func (c *logConn) Close() error { return c.conn.Close() }

func (c *logConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *logConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	c.logger.DebugContext(ctx, "sql", "op", "begin")
	if b, ok := c.conn.(driver.ConnBeginTx); ok {
		return b.BeginTx(ctx, opts)
	}
	//nolint:staticcheck // SA1019 fallback for drivers without BeginTx
	return c.conn.Begin()
}

type logStmt struct {
	driver.Stmt
	query  string
	logger *slog.Logger
}

func (s *logStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	logStatement(ctx, s.logger, "exec", s.query, args)
	if e, ok := s.Stmt.(driver.StmtExecContext); ok {
		return e.ExecContext(ctx, args)
	}
	//nolint:staticcheck // SA1019 fallback for statements without ExecContext
	return s.Stmt.Exec(values(args))
}

func (s *logStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	logStatement(ctx, s.logger, "query", s.query, args)
	if q, ok := s.Stmt.(driver.StmtQueryContext); ok {
		return q.QueryContext(ctx, args)
	}
	//nolint:staticcheck // SA1019 fallback for statements without QueryContext
	return s.Stmt.Query(values(args))
}

func logStatement(ctx context.Context, logger *slog.Logger, op, query string, args []driver.NamedValue) {
	if !logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	formatted := make([]string, len(args))
	for i, a := range args {
		v := formatArg(a.Value)
		if a.Name != "" {
			v = a.Name + "=" + v
		}
		formatted[i] = v
	}
	logger.DebugContext(ctx, "sql", "op", op, "sql", query, "args", formatted)
}

func values(args []driver.NamedValue) []driver.Value {
	out := make([]driver.Value, len(args))
	for i := range args {
		out[i] = args[i].Value
	}
	return out
}

func formatArg(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}
