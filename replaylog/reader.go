package replaylog

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"

	"github.com/sarchlab/emucore/emutime"
	"github.com/sarchlab/emucore/statechange"
)

// Load reads the records of a database written by SQLiteWriter, in the order
// they were appended. A database written for another format or reference
// frequency fails with an error matching statechange.ErrIncompatibleLog.
func Load(path string) (*statechange.Log, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("replaylog: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("replaylog: opening %s: %w", path, err)
	}
	defer db.Close()

	if err := checkMeta(db); err != nil {
		return nil, err
	}

	rows, err := db.Query("SELECT time, kind, payload FROM records ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("replaylog: reading %s: %w", path, err)
	}
	defer rows.Close()

	log := statechange.NewLog()
	for rows.Next() {
		var (
			t       int64
			kind    string
			payload string
		)

		if err := rows.Scan(&t, &kind, &payload); err != nil {
			return nil, fmt.Errorf("replaylog: reading %s: %w", path, err)
		}

		r, err := statechange.DecodeRecord(emutime.EmuTime(t), kind, []byte(payload))
		if err != nil {
			return nil, fmt.Errorf("replaylog: record %d: %w", log.Len(), err)
		}

		log.Append(r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("replaylog: reading %s: %w", path, err)
	}

	return log, nil
}

func checkMeta(db *sql.DB) error {
	meta := make(map[string]string)

	rows, err := db.Query("SELECT key, value FROM meta")
	if err != nil {
		return fmt.Errorf("%w: no meta table: %w", statechange.ErrIncompatibleLog, err)
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return fmt.Errorf("replaylog: %w", err)
		}

		meta[k] = v
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("replaylog: %w", err)
	}

	if meta["format"] != strconv.Itoa(FormatVersion) {
		return fmt.Errorf("%w: format %q, want %d",
			statechange.ErrIncompatibleLog, meta["format"], FormatVersion)
	}

	freq := strconv.FormatUint(uint64(emutime.MainFreq), 10)
	if meta["main_freq"] != freq {
		return fmt.Errorf("%w: reference frequency %s, want %s",
			statechange.ErrIncompatibleLog, meta["main_freq"], freq)
	}

	return nil
}
