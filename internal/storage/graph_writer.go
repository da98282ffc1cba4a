package storage

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mvp-joe/linkgraph/internal/graph"
)

// receiverPosition is the edge_args position of a method receiver.
const receiverPosition = -1

// GraphWriter exports call graphs to SQLite. Every export is a new run.
type GraphWriter struct {
	db     *sql.DB
	ownsDB bool // true if we opened the connection, false if shared
}

// NewGraphWriter opens (or creates) the database at dbPath and ensures the
// schema exists.
func NewGraphWriter(dbPath string) (*GraphWriter, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	return &GraphWriter{db: db, ownsDB: true}, nil
}

// NewGraphWriterWithDB creates a GraphWriter using an existing database connection.
// The caller is responsible for schema, foreign keys and closing.
func NewGraphWriterWithDB(db *sql.DB) *GraphWriter {
	return &GraphWriter{db: db, ownsDB: false}
}

// Open opens a read-write database with foreign keys enabled and the schema created.
func Open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := CreateSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection if owned by this writer.
func (w *GraphWriter) Close() error {
	if !w.ownsDB {
		return nil
	}
	if w.db != nil {
		return w.db.Close()
	}
	return nil
}

// WriteGraph exports g as a new run in a single transaction and returns the
// run id. Nothing is written if any row fails.
func (w *GraphWriter) WriteGraph(g *graph.Graph) (string, error) {
	if g == nil {
		return "", fmt.Errorf("graph cannot be nil")
	}

	tx, err := w.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	runID := uuid.New().String()
	_, err = sq.Insert("runs").
		Columns("run_id", "unit", "node_count", "edge_count", "created_at").
		Values(runID, g.Unit(), g.NodeCount(), g.EdgeCount(), time.Now().UTC().Format(timeFormat)).
		RunWith(tx).
		Exec()
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	if err := writeNodes(tx, runID, g.Nodes()); err != nil {
		return "", err
	}
	if err := writeEdges(tx, runID, g.Edges()); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return runID, nil
}

// DeleteRun removes a run and, by cascade, its nodes, edges and arguments.
func (w *GraphWriter) DeleteRun(runID string) error {
	res, err := sq.Delete("runs").Where(sq.Eq{"run_id": runID}).RunWith(w.db).Exec()
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

func writeNodes(tx *sql.Tx, runID string, nodes []graph.Node) error {
	for i, n := range nodes {
		_, err := sq.Insert("nodes").
			Columns("run_id", "node_idx", "symbol_unit", "symbol_index", "promoted", "ident", "name").
			Values(runID, i, int64(n.Symbol.Unit), int64(n.Symbol.Index), int64(n.Promoted), n.Ident, n.String()).
			RunWith(tx).
			Exec()
		if err != nil {
			return fmt.Errorf("failed to insert node %s: %w", n, err)
		}
	}
	return nil
}

func writeEdges(tx *sql.Tx, runID string, edges []graph.Edge) error {
	for i, e := range edges {
		_, err := sq.Insert("edges").
			Columns("run_id", "edge_idx", "from_idx", "to_idx", "kind", "multiplier", "total_weight").
			Values(runID, i, e.From, e.To, e.Kind.String(), e.Multiplier, e.TotalWeight()).
			RunWith(tx).
			Exec()
		if err != nil {
			return fmt.Errorf("failed to insert edge %d -> %d: %w", e.From, e.To, err)
		}

		if e.Receiver != nil {
			if err := writeArg(tx, runID, i, receiverPosition, *e.Receiver); err != nil {
				return err
			}
		}
		for pos, arg := range e.Args {
			if err := writeArg(tx, runID, i, pos, arg); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeArg(tx *sql.Tx, runID string, edgeIdx, position int, arg graph.ArgWeight) error {
	_, err := sq.Insert("edge_args").
		Columns("run_id", "edge_idx", "position", "operand", "mutability", "ty", "weight").
		Values(runID, edgeIdx, position, arg.Operand.String(), arg.Mutability.String(), arg.Ty.String(), arg.Weight).
		RunWith(tx).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to insert argument %d of edge %d: %w", position, edgeIdx, err)
	}
	return nil
}
