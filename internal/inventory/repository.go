package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines node persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a node and its children.
	// Returns ErrNodeNotFound if the node does not exist.
	GetByID(ctx context.Context, id int) (*Node, error)

	// List retrieves all nodes ordered by ID.
	List(ctx context.Context) ([]Node, error)

	// Save inserts or replaces a node and all of its children.
	Save(ctx context.Context, node *Node) error

	// Delete removes a node and its children.
	// Returns ErrNodeNotFound if the node does not exist.
	Delete(ctx context.Context, id int) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open, migrated SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const nodeColumns = `node_id, sketch_name, sketch_version, library_version, repeater,
	battery_level, gateway, message_count, first_seen, last_seen`

// GetByID retrieves a node by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id int) (*Node, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE node_id = ?`, id)
	node, err := scanNode(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNodeNotFound
		}
		return nil, fmt.Errorf("querying node by id: %w", err)
	}

	children, err := r.queryChildren(ctx, `WHERE node_id = ?`, id)
	if err != nil {
		return nil, err
	}
	node.Children = children[id]
	return node, nil
}

// List retrieves all nodes.
func (r *SQLiteRepository) List(ctx context.Context) ([]Node, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+nodeColumns+` FROM nodes ORDER BY node_id`)
	if err != nil {
		return nil, fmt.Errorf("querying nodes: %w", err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning node: %w", err)
		}
		nodes = append(nodes, *node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating nodes: %w", err)
	}

	children, err := r.queryChildren(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range nodes {
		nodes[i].Children = children[nodes[i].ID]
	}
	return nodes, nil
}

// Save upserts the node row and every child row in one transaction.
// Children missing from node.Children are left untouched.
func (r *SQLiteRepository) Save(ctx context.Context, node *Node) error {
	if node == nil || !ValidNodeID(node.ID) {
		return ErrInvalidNode
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	_, err = tx.ExecContext(ctx, `
		INSERT INTO nodes (`+nodeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(node_id) DO UPDATE SET
			sketch_name = excluded.sketch_name,
			sketch_version = excluded.sketch_version,
			library_version = excluded.library_version,
			repeater = excluded.repeater,
			battery_level = excluded.battery_level,
			gateway = excluded.gateway,
			message_count = excluded.message_count,
			last_seen = excluded.last_seen`,
		node.ID,
		nullableString(node.SketchName),
		nullableString(node.SketchVersion),
		nullableString(node.LibraryVersion),
		boolToInt(node.Repeater),
		nullableInt(node.BatteryLevel),
		nullableString(node.Gateway),
		node.MessageCount,
		formatTime(node.FirstSeen),
		formatTime(node.LastSeen),
	)
	if err != nil {
		return fmt.Errorf("saving node: %w", err)
	}

	for _, c := range node.Children {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO node_children (node_id, child_id, sensor_type, description,
				last_value, last_value_type, last_seen)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(node_id, child_id) DO UPDATE SET
				sensor_type = excluded.sensor_type,
				description = excluded.description,
				last_value = excluded.last_value,
				last_value_type = excluded.last_value_type,
				last_seen = excluded.last_seen`,
			node.ID,
			c.ID,
			nullableInt(c.SensorType),
			nullableString(c.Description),
			nullableString(c.LastValue),
			nullableInt(c.LastValueType),
			nullableTime(c.LastSeen),
		)
		if err != nil {
			return fmt.Errorf("saving child %d: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing node: %w", err)
	}
	return nil
}

// Delete removes a node. Children go with it via ON DELETE CASCADE.
func (r *SQLiteRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM nodes WHERE node_id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting node: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNodeNotFound
	}
	return nil
}

// queryChildren loads children grouped by node ID.
func (r *SQLiteRepository) queryChildren(ctx context.Context, where string, args ...any) (map[int][]Child, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT node_id, child_id, sensor_type, description, last_value, last_value_type, last_seen
		FROM node_children `+where+`
		ORDER BY node_id, child_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying children: %w", err)
	}
	defer rows.Close()

	out := make(map[int][]Child)
	for rows.Next() {
		var (
			nodeID                    int
			c                         Child
			sensorType, lastValueType sql.NullInt64
			description, lastValue    sql.NullString
			lastSeen                  sql.NullString
		)
		if err := rows.Scan(&nodeID, &c.ID, &sensorType, &description, &lastValue, &lastValueType, &lastSeen); err != nil {
			return nil, fmt.Errorf("scanning child: %w", err)
		}
		c.SensorType = intPtr(sensorType)
		c.Description = description.String
		c.LastValue = lastValue.String
		c.LastValueType = intPtr(lastValueType)
		if lastSeen.Valid {
			t := parseTime(lastSeen.String)
			c.LastSeen = &t
		}
		out[nodeID] = append(out[nodeID], c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating children: %w", err)
	}
	return out, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(scanner rowScanner) (*Node, error) {
	var (
		n                                 Node
		sketchName, sketchVersion, libVer sql.NullString
		gateway                           sql.NullString
		battery                           sql.NullInt64
		repeater                          int
		firstSeen, lastSeen               string
	)
	err := scanner.Scan(&n.ID, &sketchName, &sketchVersion, &libVer, &repeater,
		&battery, &gateway, &n.MessageCount, &firstSeen, &lastSeen)
	if err != nil {
		return nil, err
	}
	n.SketchName = sketchName.String
	n.SketchVersion = sketchVersion.String
	n.LibraryVersion = libVer.String
	n.Repeater = repeater != 0
	n.BatteryLevel = intPtr(battery)
	n.Gateway = gateway.String
	n.FirstSeen = parseTime(firstSeen)
	n.LastSeen = parseTime(lastSeen)
	return &n, nil
}

// nullableString stores empty strings as NULL.
func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullableInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime ignores errors; the format is written by formatTime.
func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s) //nolint:errcheck // Format is controlled
	return t
}
