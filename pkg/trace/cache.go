package trace

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bespoke-silicon-group/accelerator-debugger/pkg/value"
)

// saveCache writes a full, unfiltered TraceStore to a sqlite sibling
// file so later invocations can skip re-parsing the VCD text. Cache
// writing is best-effort: a failure here never fails the caller.
func saveCache(path string, ts *TraceStore) error {
	_ = os.Remove(path)

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return err
	}
	defer db.Close()

	schema := []string{
		`CREATE TABLE meta (key TEXT PRIMARY KEY, value TEXT)`,
		`CREATE TABLE symbols (id INTEGER PRIMARY KEY, name TEXT UNIQUE)`,
		`CREATE TABLE events (symbol_id INTEGER, time INTEGER, value TEXT)`,
		`CREATE INDEX idx_events_symbol_time ON events(symbol_id, time)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO meta(key, value) VALUES (?, ?), (?, ?)`,
		"end_time", strconv.FormatUint(ts.endTime, 10),
		"timescale", fmt.Sprintf("%g", ts.timescale),
	); err != nil {
		return err
	}

	symStmt, err := tx.Prepare(`INSERT INTO symbols(id, name) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer symStmt.Close()

	evStmt, err := tx.Prepare(`INSERT INTO events(symbol_id, time, value) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer evStmt.Close()

	for i, name := range ts.names {
		if _, err := symStmt.Exec(i, name); err != nil {
			return err
		}
		tl := ts.timelines[i]
		for j, t := range tl.times {
			if _, err := evStmt.Exec(i, t, tl.values[j].AsStr()); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// loadCache reconstructs a TraceStore from a sqlite cache file,
// rejecting it if sourcePath does not exist or the cache is stale
// relative to it.
func loadCache(cachePath, sourcePath string) (*TraceStore, error) {
	srcInfo, err := os.Stat(sourcePath)
	if err != nil {
		return nil, err
	}
	cacheInfo, err := os.Stat(cachePath)
	if err != nil {
		return nil, err
	}
	if cacheInfo.ModTime().Before(srcInfo.ModTime()) {
		return nil, fmt.Errorf("trace: cache %s is stale", cachePath)
	}

	db, err := sql.Open("sqlite3", "file:"+cachePath+"?mode=ro")
	if err != nil {
		return nil, err
	}
	defer db.Close()

	ts := &TraceStore{index: map[string]int{}}

	rows, err := db.Query(`SELECT key, value FROM meta`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return nil, err
		}
		switch k {
		case "end_time":
			ts.endTime, _ = strconv.ParseUint(v, 10, 64)
		case "timescale":
			var f float64
			fmt.Sscanf(v, "%g", &f)
			ts.timescale = f
		}
	}
	rows.Close()

	symRows, err := db.Query(`SELECT id, name FROM symbols ORDER BY id`)
	if err != nil {
		return nil, err
	}
	var ids []int
	for symRows.Next() {
		var id int
		var name string
		if err := symRows.Scan(&id, &name); err != nil {
			symRows.Close()
			return nil, err
		}
		ts.index[name] = len(ts.names)
		ts.names = append(ts.names, name)
		ts.timelines = append(ts.timelines, timeline{})
		ids = append(ids, id)
	}
	symRows.Close()

	for pos, id := range ids {
		evRows, err := db.Query(`SELECT time, value FROM events WHERE symbol_id = ? ORDER BY time`, id)
		if err != nil {
			return nil, err
		}
		var times []uint64
		var vals []value.Value
		for evRows.Next() {
			var t uint64
			var v string
			if err := evRows.Scan(&t, &v); err != nil {
				evRows.Close()
				return nil, err
			}
			parsed, err := value.New(v)
			if err != nil {
				evRows.Close()
				return nil, err
			}
			times = append(times, t)
			vals = append(vals, parsed)
		}
		evRows.Close()
		ts.timelines[pos] = timeline{times: times, values: vals}
	}

	return ts, nil
}
