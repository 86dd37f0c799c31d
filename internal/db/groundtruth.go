package db

import (
	"fmt"

	"github.com/sentinelmap/signaudit/internal/osm"
)

// ReplaceGroundTruth swaps the stored ground-truth set for nodes,
// atomically. An import is all-or-nothing: a half-loaded map would skew
// every later reconciliation.
func (db *DB) ReplaceGroundTruth(nodes []osm.Node) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM ground_truth`); err != nil {
		return fmt.Errorf("clear ground truth: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO ground_truth (node_id, lat, lon, tag) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare ground-truth insert: %w", err)
	}
	defer stmt.Close()

	for _, n := range nodes {
		if _, err := stmt.Exec(n.ID, n.Lat, n.Lon, n.Tag); err != nil {
			return fmt.Errorf("insert node %s: %w", n.ID, err)
		}
	}

	return tx.Commit()
}

// LoadGroundTruth returns the stored ground-truth nodes in import order.
func (db *DB) LoadGroundTruth() ([]osm.Node, error) {
	rows, err := db.Query(`SELECT node_id, lat, lon, tag FROM ground_truth ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query ground truth: %w", err)
	}
	defer rows.Close()

	var nodes []osm.Node
	for rows.Next() {
		var n osm.Node
		if err := rows.Scan(&n.ID, &n.Lat, &n.Lon, &n.Tag); err != nil {
			return nil, fmt.Errorf("scan ground-truth node: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// CountGroundTruth reports how many ground-truth nodes are stored.
func (db *DB) CountGroundTruth() (int, error) {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM ground_truth`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count ground truth: %w", err)
	}
	return count, nil
}
