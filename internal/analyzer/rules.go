package analyzer

import (
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// checkFunc examines one parsed statement and returns any findings.
type checkFunc func(stmt *pg_query.RawStmt) []Finding

// checks is the screen applied to every statement, in order.
var checks = []checkFunc{ //nolint:gochecknoglobals // fixed rule set
	checkDropTable,
	checkTruncate,
	checkNonConcurrentIndex,
	checkColumnTypeChange,
}

// checkDropTable flags DROP TABLE as irreversibly destructive.
func checkDropTable(stmt *pg_query.RawStmt) []Finding {
	node, ok := stmt.Stmt.Node.(*pg_query.Node_DropStmt)
	if !ok || node.DropStmt == nil {
		return nil
	}

	if node.DropStmt.RemoveType != pg_query.ObjectType_OBJECT_TABLE {
		return nil
	}

	findings := make([]Finding, 0, len(node.DropStmt.Objects))

	for _, obj := range node.DropStmt.Objects {
		findings = append(findings, Finding{
			Rule:       "drop-table",
			Severity:   Blocking,
			Table:      qualifiedName(obj),
			Message:    "DROP TABLE destroys data and cannot be rolled back by a down migration",
			Suggestion: "rename the table and drop it in a later migration once a backup is verified",
		})
	}

	return findings
}

// checkTruncate flags TRUNCATE as destructive.
func checkTruncate(stmt *pg_query.RawStmt) []Finding {
	node, ok := stmt.Stmt.Node.(*pg_query.Node_TruncateStmt)
	if !ok || node.TruncateStmt == nil {
		return nil
	}

	findings := make([]Finding, 0, len(node.TruncateStmt.Relations))

	for _, rel := range node.TruncateStmt.Relations {
		rv, ok := rel.Node.(*pg_query.Node_RangeVar)
		if !ok {
			continue
		}

		findings = append(findings, Finding{
			Rule:     "truncate-table",
			Severity: Blocking,
			Table:    tableName(rv.RangeVar),
			Message:  "TRUNCATE destroys data and takes an ACCESS EXCLUSIVE lock",
		})
	}

	return findings
}

// checkNonConcurrentIndex flags CREATE INDEX without CONCURRENTLY,
// which blocks writes on the table for the duration of the build.
func checkNonConcurrentIndex(stmt *pg_query.RawStmt) []Finding {
	node, ok := stmt.Stmt.Node.(*pg_query.Node_IndexStmt)
	if !ok || node.IndexStmt == nil || node.IndexStmt.Concurrent {
		return nil
	}

	return []Finding{{
		Rule:       "create-index-not-concurrent",
		Severity:   Notice,
		Table:      tableName(node.IndexStmt.Relation),
		Message:    "CREATE INDEX without CONCURRENTLY blocks writes while the index builds",
		Suggestion: "use CREATE INDEX CONCURRENTLY on tables with live traffic",
	}}
}

// checkColumnTypeChange flags ALTER COLUMN TYPE, which rewrites the
// table under an ACCESS EXCLUSIVE lock.
func checkColumnTypeChange(stmt *pg_query.RawStmt) []Finding {
	node, ok := stmt.Stmt.Node.(*pg_query.Node_AlterTableStmt)
	if !ok || node.AlterTableStmt == nil {
		return nil
	}

	var findings []Finding

	for _, cmd := range node.AlterTableStmt.Cmds {
		atCmd := cmd.GetAlterTableCmd()
		if atCmd == nil || atCmd.Subtype != pg_query.AlterTableType_AT_AlterColumnType {
			continue
		}

		findings = append(findings, Finding{
			Rule:       "alter-column-type",
			Severity:   Blocking,
			Table:      tableName(node.AlterTableStmt.Relation),
			Message:    "changing a column type rewrites the table under an ACCESS EXCLUSIVE lock",
			Suggestion: "add a new column, backfill, then swap in a follow-up migration",
		})
	}

	return findings
}

// qualifiedName renders a DROP target (a list of name parts) as
// "schema.table".
func qualifiedName(obj *pg_query.Node) string {
	list := obj.GetList()
	if list == nil {
		return "<unknown>"
	}

	parts := make([]string, 0, len(list.Items))

	for _, item := range list.Items {
		if s := item.GetString_(); s != nil {
			parts = append(parts, s.Sval)
		}
	}

	if len(parts) == 0 {
		return "<unknown>"
	}

	return strings.Join(parts, ".")
}
