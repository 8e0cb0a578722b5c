// Package analyzer screens migration definitions for destructive or
// lock-heavy DDL before they are applied. The catalog is compiled in,
// so the screen is a last safeguard against a definition that slipped
// through review, not a general-purpose linter.
package analyzer

import (
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/phaserai/schema-migrate/internal/parser"
	"github.com/phaserai/schema-migrate/internal/registry"
)

// Finding is a single concerning pattern detected in a definition.
type Finding struct {
	Rule       string   // kebab-case rule id, e.g. "drop-table"
	Severity   Severity // danger level
	Table      string   // affected table, if identifiable
	Message    string   // what was found
	Suggestion string   // safer alternative, if one exists
}

// Report holds all findings for one definition.
type Report struct {
	Definition  registry.Definition
	Findings    []Finding
	MaxSeverity Severity
}

// Blocking reports whether any finding should stop a non-forced apply.
func (r Report) Blocking() bool {
	return r.MaxSeverity >= Blocking
}

// Screen analyzes the forward SQL of each definition and returns one
// report per definition.
func Screen(defs []registry.Definition) ([]Report, error) {
	reports := make([]Report, 0, len(defs))

	for _, d := range defs {
		stmts, err := parser.Statements(d.UpSQL)
		if err != nil {
			return nil, fmt.Errorf("screening migration %s: %w", d.Version, err)
		}

		r := Report{Definition: d}

		for _, stmt := range stmts {
			for _, check := range checks {
				fs := check(stmt)
				for _, f := range fs {
					if f.Severity > r.MaxSeverity {
						r.MaxSeverity = f.Severity
					}
				}

				r.Findings = append(r.Findings, fs...)
			}
		}

		reports = append(reports, r)
	}

	return reports, nil
}

// tableName extracts a qualified table name from a RangeVar.
func tableName(rv *pg_query.RangeVar) string {
	if rv == nil {
		return "<unknown>"
	}

	if rv.Schemaname != "" {
		return rv.Schemaname + "." + rv.Relname
	}

	return rv.Relname
}
