package parser //nolint:revive // intentional: does not conflict with go/parser in internal package

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Statements parses a PostgreSQL SQL batch with the real server parser
// and returns the raw statement list. Empty or whitespace-only input
// yields zero statements.
func Statements(sql string) ([]*pg_query.RawStmt, error) {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return nil, nil
	}

	tree, err := pg_query.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parsing SQL: %w", err)
	}

	return tree.Stmts, nil
}

// ContainsConcurrentIndex reports whether any statement in the batch is
// a CREATE INDEX CONCURRENTLY. Such statements cannot run inside a
// transaction block and must be executed directly on the pool.
func ContainsConcurrentIndex(sql string) (bool, error) {
	stmts, err := Statements(sql)
	if err != nil {
		return false, fmt.Errorf("checking for concurrent index: %w", err)
	}

	for _, stmt := range stmts {
		node, ok := stmt.Stmt.Node.(*pg_query.Node_IndexStmt)
		if !ok {
			continue
		}

		if node.IndexStmt != nil && node.IndexStmt.Concurrent {
			return true, nil
		}
	}

	return false, nil
}
