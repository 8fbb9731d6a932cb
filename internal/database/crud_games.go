// Ludograph - Game Activity Tracking and Rollup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludograph

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tomtom215/ludograph/internal/models"
)

// FindGameMapping looks up the admin override mapping for a raw activity
// label. Returns nil when no mapping exists. Mappings take priority over
// exact catalog-name matches during resolution.
func (db *DB) FindGameMapping(ctx context.Context, activityLabel string) (*int64, error) {
	query := `SELECT game_id FROM game_name_mappings WHERE activity_label = ?`

	var gameID int64
	err := db.conn.QueryRowContext(ctx, query, activityLabel).Scan(&gameID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query game mapping: %w", err)
	}
	return &gameID, nil
}

// FindGameByExactName looks up a game by exact, case-sensitive catalog name.
// Returns nil when no game matches.
func (db *DB) FindGameByExactName(ctx context.Context, name string) (*int64, error) {
	// DuckDB VARCHAR comparison is case-sensitive by default, which is the
	// required matching behavior.
	query := `SELECT id FROM games WHERE name = ? LIMIT 1`

	var id int64
	err := db.conn.QueryRowContext(ctx, query, name).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query game by name: %w", err)
	}
	return &id, nil
}

// InsertGame adds a game to the catalog. The engine only reads the catalog;
// this is for the host application and tests.
func (db *DB) InsertGame(ctx context.Context, g *models.Game) error {
	query := `INSERT INTO games (id, name) VALUES (?, ?) ON CONFLICT DO NOTHING`
	if _, err := db.conn.ExecContext(ctx, query, g.ID, g.Name); err != nil {
		return fmt.Errorf("failed to insert game: %w", err)
	}
	return nil
}

// InsertGameNameMapping adds an override mapping. The engine only reads
// mappings; this is for the host application and tests.
func (db *DB) InsertGameNameMapping(ctx context.Context, m *models.GameNameMapping) error {
	query := `INSERT INTO game_name_mappings (activity_label, game_id) VALUES (?, ?) ON CONFLICT DO NOTHING`
	if _, err := db.conn.ExecContext(ctx, query, m.ActivityLabel, m.GameID); err != nil {
		return fmt.Errorf("failed to insert game name mapping: %w", err)
	}
	return nil
}
