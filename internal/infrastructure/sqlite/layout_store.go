package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/zjrosen/dockyard/internal/layouts/domain"
	"github.com/zjrosen/dockyard/internal/log"
)

// savedAtKey is the registry_meta row written by every Save. Its absence
// means nothing has been stored yet.
const savedAtKey = "saved_at"

// layoutColumns is the standard column list for layout queries.
const layoutColumns = `storage_key, declared_key, name, kind, last_updated, last_opened,
	left_panel_visible, right_panel_visible, payload`

// LayoutStore implements domain.Store on top of DB.
type LayoutStore struct {
	db *DB
}

var _ domain.Store = (*LayoutStore)(nil)

// Name identifies the backend in traces and logs.
func (s *LayoutStore) Name() string {
	return "sqlite"
}

// Load reads the stored state. It returns nil if Save has never run.
// Rows that cannot be converted are skipped and logged.
func (s *LayoutStore) Load(ctx context.Context) (*domain.RawState, error) {
	var savedAt string
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT value FROM registry_meta WHERE name = ?`, savedAtKey,
	).Scan(&savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read registry meta: %w", err)
	}

	layouts, err := s.loadLayouts(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := s.loadRecent(ctx)
	if err != nil {
		return nil, err
	}

	log.Debug(log.CatStore, "loaded layouts from sqlite", "layouts", len(layouts), "saved_at", savedAt)
	return &domain.RawState{Layouts: layouts, Recent: recent}, nil
}

func (s *LayoutStore) loadLayouts(ctx context.Context) (map[string]domain.Layout, error) {
	rows, err := s.db.conn.QueryContext(ctx, `SELECT `+layoutColumns+` FROM layouts`)
	if err != nil {
		return nil, fmt.Errorf("failed to query layouts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	layouts := make(map[string]domain.Layout)
	for rows.Next() {
		m, err := scanLayout(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan layout: %w", err)
		}
		l, err := m.toDomain()
		if err != nil {
			log.WarnErr(log.CatStore, "skipping unreadable layout row", err, "storage_key", m.StorageKey)
			continue
		}
		layouts[m.StorageKey] = l
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate layouts: %w", err)
	}
	return layouts, nil
}

func (s *LayoutStore) loadRecent(ctx context.Context) ([]string, error) {
	rows, err := s.db.conn.QueryContext(ctx, `SELECT layout_key FROM recent_layouts ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent layouts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	recent := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan recent layout: %w", err)
		}
		recent = append(recent, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recent layouts: %w", err)
	}
	return recent, nil
}

// Save replaces the stored state with st in a single transaction.
func (s *LayoutStore) Save(ctx context.Context, st domain.State) error {
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM layouts`); err != nil {
		return fmt.Errorf("failed to clear layouts: %w", err)
	}
	for _, key := range slices.Sorted(maps.Keys(st.Layouts)) {
		m := toLayoutModel(key, st.Layouts[key])
		_, err := tx.ExecContext(ctx,
			`INSERT INTO layouts (`+layoutColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.StorageKey, m.DeclaredKey, m.Name, m.Kind, m.LastUpdated, m.LastOpened,
			m.LeftPanelVisible, m.RightPanelVisible, m.Payload,
		)
		if err != nil {
			return fmt.Errorf("failed to insert layout %q: %w", key, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM recent_layouts`); err != nil {
		return fmt.Errorf("failed to clear recent layouts: %w", err)
	}
	for i, key := range st.Recent {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO recent_layouts (position, layout_key) VALUES (?, ?)`, i, key,
		); err != nil {
			return fmt.Errorf("failed to insert recent layout: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO registry_meta (name, value) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
		savedAtKey, time.Now().UTC().Format(timeLayout),
	); err != nil {
		return fmt.Errorf("failed to write registry meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit layouts: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *LayoutStore) Close() error {
	return s.db.Close()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanLayout(row rowScanner) (*LayoutModel, error) {
	var m LayoutModel
	var lastOpened, payload sql.NullString
	err := row.Scan(
		&m.StorageKey, &m.DeclaredKey, &m.Name, &m.Kind, &m.LastUpdated, &lastOpened,
		&m.LeftPanelVisible, &m.RightPanelVisible, &payload,
	)
	if err != nil {
		return nil, err
	}
	if lastOpened.Valid {
		m.LastOpened = &lastOpened.String
	}
	if payload.Valid {
		m.Payload = &payload.String
	}
	return &m, nil
}
