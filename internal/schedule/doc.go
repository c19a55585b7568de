// Package schedule implements calendar-based automation for the managed
// plugs: rules of the form "turn <target> <on|off> at HH:MM on these
// weekdays".
//
// Rules are persisted in SQLite and edited through the HTTP API. The
// executor polls the enabled set on a fixed cadence and fires matches
// against the wall clock at minute resolution. An in-memory execution
// ledger keyed by (date, rule, time) guarantees at-most-once firing per
// rule per day even when poll cycles overlap; the ledger is pruned of
// past days every cycle and rebuilt naturally after a restart.
//
// A rule targeting "group" or "all" expands to the full device
// enumeration at fire time; otherwise the target is a literal device
// identifier.
package schedule
