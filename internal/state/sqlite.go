package state

import (
	"database/sql"
	"fmt"

	"github.com/yadielglz/littlesprout-sub001/internal/sprout"
	"github.com/yadielglz/littlesprout-sub001/internal/state/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Keys in the settings table.
const (
	settingCurrentProfile = "current_profile_id"
	settingDarkMode       = "dark_mode"
	settingUnit           = "unit"
)

// SQLiteStore is the durable backing for the local state container and the
// timer tracker, implemented on SQLite. One database file per device.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) the database at path and brings its
// schema to the latest version. path may be ":memory:" for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating local database: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs
// the store relies on. Exported for tools and tests that need a raw
// connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	return db, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load reads the full local dataset for container rehydration.
func (s *SQLiteStore) Load() (*sprout.LocalState, error) {
	st := &sprout.LocalState{
		Logs:         make(map[string][]sprout.LogEntry),
		Inventory:    make(map[string]sprout.Inventory),
		Reminders:    make(map[string][]sprout.Reminder),
		Appointments: make(map[string][]sprout.Appointment),
		Prefs:        sprout.Preferences{Unit: "metric"},
	}

	rows, err := s.db.Query("SELECT id, user_name, baby_name, dob, created_at FROM profiles ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("loading profiles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p sprout.Profile
		if err := rows.Scan(&p.ID, &p.UserName, &p.BabyName, &p.DOB, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning profile: %w", err)
		}
		st.Profiles = append(st.Profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading profiles: %w", err)
	}

	if err := s.loadLogs(st); err != nil {
		return nil, err
	}
	if err := s.loadInventory(st); err != nil {
		return nil, err
	}
	if err := s.loadReminders(st); err != nil {
		return nil, err
	}
	if err := s.loadAppointments(st); err != nil {
		return nil, err
	}

	current, err := s.getSetting(settingCurrentProfile)
	if err != nil {
		return nil, err
	}
	st.CurrentProfileID = current

	if dark, err := s.getSetting(settingDarkMode); err != nil {
		return nil, err
	} else if dark != "" {
		st.Prefs.DarkMode = dark == "1"
	}
	if unit, err := s.getSetting(settingUnit); err != nil {
		return nil, err
	} else if unit != "" {
		st.Prefs.Unit = unit
	}

	return st, nil
}

func (s *SQLiteStore) loadLogs(st *sprout.LocalState) error {
	rows, err := s.db.Query(`SELECT profile_id, id, type, icon, color, details, timestamp, raw_amount, raw_duration, notes
		FROM logs ORDER BY profile_id, timestamp DESC`)
	if err != nil {
		return fmt.Errorf("loading logs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var profileID string
		var e sprout.LogEntry
		var amount sql.NullFloat64
		var duration sql.NullInt64
		if err := rows.Scan(&profileID, &e.ID, &e.Type, &e.Icon, &e.Color, &e.Details, &e.Timestamp, &amount, &duration, &e.Notes); err != nil {
			return fmt.Errorf("scanning log: %w", err)
		}
		if amount.Valid {
			v := amount.Float64
			e.RawAmount = &v
		}
		if duration.Valid {
			v := duration.Int64
			e.RawDuration = &v
		}
		st.Logs[profileID] = append(st.Logs[profileID], e)
	}
	return rows.Err()
}

func (s *SQLiteStore) loadInventory(st *sprout.LocalState) error {
	rows, err := s.db.Query("SELECT profile_id, diapers, formula FROM inventory")
	if err != nil {
		return fmt.Errorf("loading inventory: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var profileID string
		var inv sprout.Inventory
		if err := rows.Scan(&profileID, &inv.Diapers, &inv.Formula); err != nil {
			return fmt.Errorf("scanning inventory: %w", err)
		}
		st.Inventory[profileID] = inv
	}
	return rows.Err()
}

func (s *SQLiteStore) loadReminders(st *sprout.LocalState) error {
	rows, err := s.db.Query("SELECT profile_id, id, text, time, frequency, is_active FROM reminders ORDER BY profile_id, id")
	if err != nil {
		return fmt.Errorf("loading reminders: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var profileID string
		var r sprout.Reminder
		if err := rows.Scan(&profileID, &r.ID, &r.Text, &r.Time, &r.Frequency, &r.IsActive); err != nil {
			return fmt.Errorf("scanning reminder: %w", err)
		}
		st.Reminders[profileID] = append(st.Reminders[profileID], r)
	}
	return rows.Err()
}

func (s *SQLiteStore) loadAppointments(st *sprout.LocalState) error {
	rows, err := s.db.Query("SELECT profile_id, id, date, time, doctor, location, reason, notes FROM appointments ORDER BY profile_id, date, time")
	if err != nil {
		return fmt.Errorf("loading appointments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var profileID string
		var a sprout.Appointment
		if err := rows.Scan(&profileID, &a.ID, &a.Date, &a.Time, &a.Doctor, &a.Location, &a.Reason, &a.Notes); err != nil {
			return fmt.Errorf("scanning appointment: %w", err)
		}
		st.Appointments[profileID] = append(st.Appointments[profileID], a)
	}
	return rows.Err()
}

// Profile operations

func (s *SQLiteStore) UpsertProfile(p sprout.Profile) error {
	_, err := s.db.Exec(`INSERT INTO profiles (id, user_name, baby_name, dob, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET user_name = excluded.user_name,
			baby_name = excluded.baby_name, dob = excluded.dob, created_at = excluded.created_at`,
		p.ID, p.UserName, p.BabyName, p.DOB, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting profile %s: %w", p.ID, err)
	}
	return nil
}

// DeleteProfile removes the profile and all data keyed to it.
func (s *SQLiteStore) DeleteProfile(profileID string) error {
	return s.inTx(func(tx *sql.Tx) error {
		for _, table := range []string{"logs", "inventory", "reminders", "appointments"} {
			if _, err := tx.Exec("DELETE FROM "+table+" WHERE profile_id = ?", profileID); err != nil {
				return fmt.Errorf("deleting %s for profile %s: %w", table, profileID, err)
			}
		}
		if _, err := tx.Exec("DELETE FROM profiles WHERE id = ?", profileID); err != nil {
			return fmt.Errorf("deleting profile %s: %w", profileID, err)
		}
		return nil
	})
}

func (s *SQLiteStore) ReplaceProfiles(profiles []sprout.Profile) error {
	return s.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM profiles"); err != nil {
			return fmt.Errorf("clearing profiles: %w", err)
		}
		for _, p := range profiles {
			if _, err := tx.Exec("INSERT INTO profiles (id, user_name, baby_name, dob, created_at) VALUES (?, ?, ?, ?, ?)",
				p.ID, p.UserName, p.BabyName, p.DOB, p.CreatedAt); err != nil {
				return fmt.Errorf("inserting profile %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) SetCurrentProfile(profileID string) error {
	return s.setSetting(settingCurrentProfile, profileID)
}

// Log operations

func (s *SQLiteStore) UpsertLog(profileID string, e sprout.LogEntry) error {
	_, err := s.db.Exec(`INSERT INTO logs (profile_id, id, type, icon, color, details, timestamp, raw_amount, raw_duration, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (profile_id, id) DO UPDATE SET type = excluded.type, icon = excluded.icon,
			color = excluded.color, details = excluded.details, timestamp = excluded.timestamp,
			raw_amount = excluded.raw_amount, raw_duration = excluded.raw_duration, notes = excluded.notes`,
		profileID, e.ID, e.Type, e.Icon, e.Color, e.Details, e.Timestamp, nullFloat(e.RawAmount), nullInt(e.RawDuration), e.Notes)
	if err != nil {
		return fmt.Errorf("upserting log %s: %w", e.ID, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteLog(profileID, logID string) error {
	if _, err := s.db.Exec("DELETE FROM logs WHERE profile_id = ? AND id = ?", profileID, logID); err != nil {
		return fmt.Errorf("deleting log %s: %w", logID, err)
	}
	return nil
}

func (s *SQLiteStore) ReplaceLogs(profileID string, logs []sprout.LogEntry) error {
	return s.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM logs WHERE profile_id = ?", profileID); err != nil {
			return fmt.Errorf("clearing logs for profile %s: %w", profileID, err)
		}
		for _, e := range logs {
			if _, err := tx.Exec(`INSERT INTO logs (profile_id, id, type, icon, color, details, timestamp, raw_amount, raw_duration, notes)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				profileID, e.ID, e.Type, e.Icon, e.Color, e.Details, e.Timestamp, nullFloat(e.RawAmount), nullInt(e.RawDuration), e.Notes); err != nil {
				return fmt.Errorf("inserting log %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

// Inventory

func (s *SQLiteStore) SetInventory(profileID string, inv sprout.Inventory) error {
	_, err := s.db.Exec(`INSERT INTO inventory (profile_id, diapers, formula) VALUES (?, ?, ?)
		ON CONFLICT (profile_id) DO UPDATE SET diapers = excluded.diapers, formula = excluded.formula`,
		profileID, inv.Diapers, inv.Formula)
	if err != nil {
		return fmt.Errorf("setting inventory for profile %s: %w", profileID, err)
	}
	return nil
}

// Reminder operations

func (s *SQLiteStore) UpsertReminder(profileID string, r sprout.Reminder) error {
	_, err := s.db.Exec(`INSERT INTO reminders (profile_id, id, text, time, frequency, is_active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (profile_id, id) DO UPDATE SET text = excluded.text, time = excluded.time,
			frequency = excluded.frequency, is_active = excluded.is_active`,
		profileID, r.ID, r.Text, r.Time, r.Frequency, r.IsActive)
	if err != nil {
		return fmt.Errorf("upserting reminder %s: %w", r.ID, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteReminder(profileID, reminderID string) error {
	if _, err := s.db.Exec("DELETE FROM reminders WHERE profile_id = ? AND id = ?", profileID, reminderID); err != nil {
		return fmt.Errorf("deleting reminder %s: %w", reminderID, err)
	}
	return nil
}

func (s *SQLiteStore) ReplaceReminders(profileID string, reminders []sprout.Reminder) error {
	return s.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM reminders WHERE profile_id = ?", profileID); err != nil {
			return fmt.Errorf("clearing reminders for profile %s: %w", profileID, err)
		}
		for _, r := range reminders {
			if _, err := tx.Exec("INSERT INTO reminders (profile_id, id, text, time, frequency, is_active) VALUES (?, ?, ?, ?, ?, ?)",
				profileID, r.ID, r.Text, r.Time, r.Frequency, r.IsActive); err != nil {
				return fmt.Errorf("inserting reminder %s: %w", r.ID, err)
			}
		}
		return nil
	})
}

// Appointment operations

func (s *SQLiteStore) UpsertAppointment(profileID string, a sprout.Appointment) error {
	_, err := s.db.Exec(`INSERT INTO appointments (profile_id, id, date, time, doctor, location, reason, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (profile_id, id) DO UPDATE SET date = excluded.date, time = excluded.time,
			doctor = excluded.doctor, location = excluded.location, reason = excluded.reason, notes = excluded.notes`,
		profileID, a.ID, a.Date, a.Time, a.Doctor, a.Location, a.Reason, a.Notes)
	if err != nil {
		return fmt.Errorf("upserting appointment %s: %w", a.ID, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteAppointment(profileID, appointmentID string) error {
	if _, err := s.db.Exec("DELETE FROM appointments WHERE profile_id = ? AND id = ?", profileID, appointmentID); err != nil {
		return fmt.Errorf("deleting appointment %s: %w", appointmentID, err)
	}
	return nil
}

func (s *SQLiteStore) ReplaceAppointments(profileID string, appointments []sprout.Appointment) error {
	return s.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM appointments WHERE profile_id = ?", profileID); err != nil {
			return fmt.Errorf("clearing appointments for profile %s: %w", profileID, err)
		}
		for _, a := range appointments {
			if _, err := tx.Exec("INSERT INTO appointments (profile_id, id, date, time, doctor, location, reason, notes) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
				profileID, a.ID, a.Date, a.Time, a.Doctor, a.Location, a.Reason, a.Notes); err != nil {
				return fmt.Errorf("inserting appointment %s: %w", a.ID, err)
			}
		}
		return nil
	})
}

// Preferences

func (s *SQLiteStore) SetPreferences(p sprout.Preferences) error {
	dark := "0"
	if p.DarkMode {
		dark = "1"
	}
	if err := s.setSetting(settingDarkMode, dark); err != nil {
		return err
	}
	return s.setSetting(settingUnit, p.Unit)
}

// Migration ledger

func (s *SQLiteStore) IsMigrated(path string) (bool, error) {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM pushed_documents WHERE path = ?", path).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking pushed document %s: %w", path, err)
	}
	return true, nil
}

func (s *SQLiteStore) MarkMigrated(path string) error {
	_, err := s.db.Exec("INSERT OR IGNORE INTO pushed_documents (path, pushed_at) VALUES (?, datetime('now'))", path)
	if err != nil {
		return fmt.Errorf("marking pushed document %s: %w", path, err)
	}
	return nil
}

// Timer operations

func (s *SQLiteStore) LoadTimers() ([]sprout.ActiveTimer, error) {
	rows, err := s.db.Query("SELECT id, category, start, label, icon, color FROM active_timers ORDER BY start")
	if err != nil {
		return nil, fmt.Errorf("loading timers: %w", err)
	}
	defer rows.Close()

	var timers []sprout.ActiveTimer
	for rows.Next() {
		var t sprout.ActiveTimer
		if err := rows.Scan(&t.ID, &t.Category, &t.Start, &t.Label, &t.Icon, &t.Color); err != nil {
			return nil, fmt.Errorf("scanning timer: %w", err)
		}
		timers = append(timers, t)
	}
	return timers, rows.Err()
}

func (s *SQLiteStore) PutTimer(t sprout.ActiveTimer) error {
	_, err := s.db.Exec(`INSERT INTO active_timers (id, category, start, label, icon, color)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (category) DO UPDATE SET id = excluded.id, start = excluded.start,
			label = excluded.label, icon = excluded.icon, color = excluded.color`,
		t.ID, t.Category, t.Start, t.Label, t.Icon, t.Color)
	if err != nil {
		return fmt.Errorf("storing timer %s: %w", t.ID, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteTimer(timerID string) error {
	if _, err := s.db.Exec("DELETE FROM active_timers WHERE id = ?", timerID); err != nil {
		return fmt.Errorf("deleting timer %s: %w", timerID, err)
	}
	return nil
}

// Helpers

func (s *SQLiteStore) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) getSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading setting %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) setSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("writing setting %s: %w", key, err)
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// Compile-time checks that SQLiteStore implements the store interfaces
var (
	_ sprout.StateStore = (*SQLiteStore)(nil)
	_ sprout.TimerStore = (*SQLiteStore)(nil)
)
