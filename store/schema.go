package store

import (
	"database/sql"
	"fmt"

	"github.com/pkg/errors"
)

// namespaces the schema is created under. "main" is SQLite's own name for
// the database opened by database/sql; "stage1" is the name we ATTACH the
// durable file under when running in staged commit mode.
const (
	nsMain   = "main"
	nsStage1 = "stage1"
)

// ensureSchema creates proc_ids, call_pts, their index and the three
// computed views in the given namespace, if they don't already exist. It is
// called once for "main" always, and again for "stage1" only in staged
// mode.
func ensureSchema(db *sql.DB, ns string) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.proc_ids (
			proc_id      INTEGER NOT NULL PRIMARY KEY,
			proc_name    TEXT    NOT NULL UNIQUE,
			time_defined INTEGER NOT NULL
		)`, ns),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.call_pts (
			caller_id  INTEGER NOT NULL,
			callee_id  INTEGER NOT NULL,
			trace_id   INTEGER NOT NULL,
			time_enter INTEGER NOT NULL,
			time_leave INTEGER,
			UNIQUE (caller_id, callee_id, trace_id, time_enter)
		)`, ns),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s.call_pts_caller_callee ON call_pts(caller_id, callee_id)`, ns),
		fmt.Sprintf(`CREATE VIEW IF NOT EXISTS %[1]s.calls_by_caller_callee AS
			SELECT
				COALESCE(caller.proc_name, '') AS caller_name,
				callee.proc_name               AS callee_name,
				COUNT(*)                       AS calls,
				SUM(c.time_leave - c.time_enter)   AS total_exec_micros,
				AVG(c.time_leave - c.time_enter)   AS avg_exec_micros
			FROM %[1]s.call_pts c
			JOIN %[1]s.proc_ids callee ON callee.proc_id = c.callee_id
			LEFT JOIN %[1]s.proc_ids caller ON caller.proc_id = c.caller_id
			WHERE c.time_leave IS NOT NULL
			GROUP BY caller_name, callee_name
			ORDER BY total_exec_micros DESC`, ns),
		fmt.Sprintf(`CREATE VIEW IF NOT EXISTS %[1]s.calls_by_callee AS
			SELECT
				callee.proc_name                 AS callee_name,
				COUNT(*)                          AS calls,
				SUM(c.time_leave - c.time_enter)  AS total_exec_micros,
				AVG(c.time_leave - c.time_enter)  AS avg_exec_micros
			FROM %[1]s.call_pts c
			JOIN %[1]s.proc_ids callee ON callee.proc_id = c.callee_id
			WHERE c.time_leave IS NOT NULL
			GROUP BY callee_name
			ORDER BY total_exec_micros DESC`, ns),
		fmt.Sprintf(`CREATE VIEW IF NOT EXISTS %[1]s.unused_procs AS
			SELECT p.proc_id, p.proc_name, p.time_defined
			FROM %[1]s.proc_ids p
			WHERE NOT EXISTS (
				SELECT 1 FROM %[1]s.call_pts c
				WHERE c.callee_id = p.proc_id AND c.time_leave IS NOT NULL
			)`, ns),
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return errors.Wrapf(err, "creating schema in namespace %q", ns)
		}
	}
	return nil
}
