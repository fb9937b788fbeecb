// internal/storage/sqlite.go
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"nutrition-agent/internal/models"
)

// ErrUnknownUser is returned when a write references a user_id with no
// users row; the whole transaction is rolled back.
var ErrUnknownUser = errors.New("unknown user")

// Store is the ledger: an append-only food_logs table plus a per-user
// per-day daily_totals aggregate, the two always written in one
// transaction.
type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	dsn := "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        user_id INTEGER PRIMARY KEY,
        name TEXT NOT NULL DEFAULT '',
        created_at TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS food_logs (
        log_id TEXT PRIMARY KEY,
        user_id INTEGER NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
        timestamp TEXT NOT NULL,
        date TEXT NOT NULL,
        description TEXT NOT NULL,
        external_id INTEGER,
        quantity REAL NOT NULL,
        unit TEXT NOT NULL,
        calories REAL NOT NULL,
        protein_g REAL NOT NULL,
        fat_g REAL NOT NULL,
        carbs_g REAL NOT NULL,
        source TEXT NOT NULL,
        raw_payload TEXT NOT NULL DEFAULT ''
    );

    CREATE TABLE IF NOT EXISTS daily_totals (
        user_id INTEGER NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
        date TEXT NOT NULL,
        total_calories REAL NOT NULL DEFAULT 0,
        total_protein_g REAL NOT NULL DEFAULT 0,
        total_fat_g REAL NOT NULL DEFAULT 0,
        total_carbs_g REAL NOT NULL DEFAULT 0,
        entries_count INTEGER NOT NULL DEFAULT 0,
        last_updated TEXT NOT NULL,
        UNIQUE (user_id, date)
    );

    CREATE INDEX IF NOT EXISTS idx_food_logs_user_date ON food_logs(user_id, date);
    CREATE INDEX IF NOT EXISTS idx_food_logs_timestamp ON food_logs(timestamp);
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// EnsureUser creates the users row if absent. Safe to call on every turn.
func (s *Store) EnsureUser(userID int64, name string) error {
	query := `
        INSERT INTO users (user_id, name, created_at)
        VALUES (?, ?, ?)
        ON CONFLICT(user_id) DO NOTHING
    `
	if _, err := s.db.Exec(query, userID, name, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to ensure user %d: %w", userID, err)
	}
	return nil
}

// WriteEntry inserts the log row and folds its values into the day's
// aggregate in a single transaction, returning the updated aggregate.
// The aggregate update is one conditional upsert so concurrent writers
// for the same (user, date) serialize on the unique key instead of
// racing a read-modify-write.
func (s *Store) WriteEntry(entry *models.FoodLogEntry) (*models.DailyTotals, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	logQuery := `
        INSERT INTO food_logs (log_id, user_id, timestamp, date, description, external_id,
                               quantity, unit, calories, protein_g, fat_g, carbs_g, source, raw_payload)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	var externalID sql.NullInt64
	if entry.ExternalID != nil {
		externalID = sql.NullInt64{Int64: int64(*entry.ExternalID), Valid: true}
	}
	_, err = tx.Exec(logQuery,
		entry.LogID, entry.UserID, entry.Timestamp.UTC().Format(time.RFC3339), entry.Date,
		entry.Description, externalID, entry.Quantity, entry.Unit,
		entry.Calories, entry.ProteinG, entry.FatG, entry.CarbsG,
		string(entry.Source), entry.RawPayload)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("insert log for user %d: %w", entry.UserID, ErrUnknownUser)
		}
		return nil, fmt.Errorf("failed to insert log entry: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	totalsQuery := `
        INSERT INTO daily_totals (user_id, date, total_calories, total_protein_g,
                                  total_fat_g, total_carbs_g, entries_count, last_updated)
        VALUES (?, ?, ?, ?, ?, ?, 1, ?)
        ON CONFLICT(user_id, date) DO UPDATE SET
            total_calories = total_calories + excluded.total_calories,
            total_protein_g = total_protein_g + excluded.total_protein_g,
            total_fat_g = total_fat_g + excluded.total_fat_g,
            total_carbs_g = total_carbs_g + excluded.total_carbs_g,
            entries_count = entries_count + 1,
            last_updated = excluded.last_updated
    `
	_, err = tx.Exec(totalsQuery,
		entry.UserID, entry.Date, entry.Calories, entry.ProteinG,
		entry.FatG, entry.CarbsG, now)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("upsert totals for user %d: %w", entry.UserID, ErrUnknownUser)
		}
		return nil, fmt.Errorf("failed to upsert daily totals: %w", err)
	}

	totals, err := scanTotals(tx.QueryRow(selectTotalsQuery, entry.UserID, entry.Date))
	if err != nil {
		return nil, fmt.Errorf("failed to read back daily totals: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit ledger write: %w", err)
	}

	return totals, nil
}

const selectTotalsQuery = `
    SELECT user_id, date, total_calories, total_protein_g, total_fat_g, total_carbs_g, entries_count, last_updated
    FROM daily_totals
    WHERE user_id = ? AND date = ?
`

// DailySummary fetches the aggregate for one (user, date). A day with no
// entries yields a zero-valued aggregate, not an error.
func (s *Store) DailySummary(userID int64, date string) (*models.DailyTotals, error) {
	totals, err := scanTotals(s.db.QueryRow(selectTotalsQuery, userID, date))
	if errors.Is(err, sql.ErrNoRows) {
		return &models.DailyTotals{UserID: userID, Date: date}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query daily totals: %w", err)
	}
	return totals, nil
}

// LogsByDate fetches the day's log rows, newest first.
func (s *Store) LogsByDate(userID int64, date string) ([]*models.FoodLogEntry, error) {
	query := `
        SELECT log_id, user_id, timestamp, date, description, external_id,
               quantity, unit, calories, protein_g, fat_g, carbs_g, source, raw_payload
        FROM food_logs
        WHERE user_id = ? AND date = ?
        ORDER BY timestamp DESC
    `
	rows, err := s.db.Query(query, userID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// SearchHistory runs a case-insensitive substring search over descriptions
// within the trailing daysBack-day window, newest first. LIKE is
// case-insensitive for ASCII in sqlite.
func (s *Store) SearchHistory(userID int64, term string, daysBack int) ([]*models.FoodLogEntry, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -daysBack).Format(time.RFC3339)
	query := `
        SELECT log_id, user_id, timestamp, date, description, external_id,
               quantity, unit, calories, protein_g, fat_g, carbs_g, source, raw_payload
        FROM food_logs
        WHERE user_id = ? AND timestamp >= ? AND description LIKE ?
        ORDER BY timestamp DESC
    `
	rows, err := s.db.Query(query, userID, cutoff, "%"+term+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to search logs: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// RangeSummary fetches the daily aggregates between two dates inclusive,
// oldest first.
func (s *Store) RangeSummary(userID int64, startDate, endDate string) ([]*models.DailyTotals, error) {
	query := `
        SELECT user_id, date, total_calories, total_protein_g, total_fat_g, total_carbs_g, entries_count, last_updated
        FROM daily_totals
        WHERE user_id = ? AND date >= ? AND date <= ?
        ORDER BY date ASC
    `
	rows, err := s.db.Query(query, userID, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query range summary: %w", err)
	}
	defer rows.Close()

	var summaries []*models.DailyTotals
	for rows.Next() {
		totals, err := scanTotals(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily totals: %w", err)
		}
		summaries = append(summaries, totals)
	}
	return summaries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTotals(row rowScanner) (*models.DailyTotals, error) {
	totals := &models.DailyTotals{}
	var lastUpdated string
	err := row.Scan(&totals.UserID, &totals.Date, &totals.TotalCalories,
		&totals.TotalProteinG, &totals.TotalFatG, &totals.TotalCarbsG,
		&totals.EntriesCount, &lastUpdated)
	if err != nil {
		return nil, err
	}
	if totals.LastUpdated, err = time.Parse(time.RFC3339, lastUpdated); err != nil {
		return nil, fmt.Errorf("failed to parse last_updated: %w", err)
	}
	return totals, nil
}

func scanEntries(rows *sql.Rows) ([]*models.FoodLogEntry, error) {
	var entries []*models.FoodLogEntry
	for rows.Next() {
		entry := &models.FoodLogEntry{}
		var timestampStr, sourceStr string
		var externalID sql.NullInt64

		err := rows.Scan(&entry.LogID, &entry.UserID, &timestampStr, &entry.Date,
			&entry.Description, &externalID, &entry.Quantity, &entry.Unit,
			&entry.Calories, &entry.ProteinG, &entry.FatG, &entry.CarbsG,
			&sourceStr, &entry.RawPayload)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}

		if entry.Timestamp, err = time.Parse(time.RFC3339, timestampStr); err != nil {
			return nil, fmt.Errorf("failed to parse timestamp: %w", err)
		}
		if externalID.Valid {
			id := int(externalID.Int64)
			entry.ExternalID = &id
		}
		entry.Source = models.SourceKind(sourceStr)

		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint")
}
