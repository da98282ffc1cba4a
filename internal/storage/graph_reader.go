package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/mvp-joe/linkgraph/internal/graph"
	"github.com/mvp-joe/linkgraph/internal/ir"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("run not found")

// GraphReader reads exported call graphs from SQLite.
type GraphReader struct {
	db *sql.DB
}

// NewGraphReader opens the database at dbPath in read-only mode.
func NewGraphReader(dbPath string) (*GraphReader, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &GraphReader{db: db}, nil
}

// NewGraphReaderWithDB creates a GraphReader over an existing connection.
func NewGraphReaderWithDB(db *sql.DB) *GraphReader {
	return &GraphReader{db: db}
}

// Close closes the database connection.
func (r *GraphReader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ListRuns returns all runs, newest first.
func (r *GraphReader) ListRuns() ([]Run, error) {
	rows, err := sq.Select("run_id", "unit", "node_count", "edge_count", "created_at").
		From("runs").
		OrderBy("created_at DESC", "run_id").
		RunWith(r.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var created string
		if err := rows.Scan(&run.ID, &run.Unit, &run.NodeCount, &run.EdgeCount, &created); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.CreatedAt, err = time.Parse(timeFormat, created)
		if err != nil {
			return nil, fmt.Errorf("invalid created_at for run %s: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LatestRun returns the most recent run.
func (r *GraphReader) LatestRun() (Run, error) {
	runs, err := r.ListRuns()
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, ErrRunNotFound
	}
	return runs[0], nil
}

// ReadGraph rebuilds the graph exported as runID. Node and edge order match
// the exported graph.
func (r *GraphReader) ReadGraph(runID string) (*graph.Graph, error) {
	var unit string
	err := sq.Select("unit").From("runs").Where(sq.Eq{"run_id": runID}).
		RunWith(r.db).QueryRow().Scan(&unit)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", runID, err)
	}

	g := graph.New(unit)
	if err := r.readNodes(runID, g); err != nil {
		return nil, err
	}
	args, err := r.readArgs(runID)
	if err != nil {
		return nil, err
	}
	if err := r.readEdges(runID, g, args); err != nil {
		return nil, err
	}
	return g, nil
}

// TopCalls returns the n heaviest edges of runID, heaviest first.
func (r *GraphReader) TopCalls(runID string, n int) ([]WeightedCall, error) {
	rows, err := sq.Select("f.name", "t.name", "e.kind", "e.total_weight").
		From("edges e").
		Join("nodes f ON f.run_id = e.run_id AND f.node_idx = e.from_idx").
		Join("nodes t ON t.run_id = e.run_id AND t.node_idx = e.to_idx").
		Where(sq.Eq{"e.run_id": runID}).
		OrderBy("e.total_weight DESC", "e.edge_idx").
		Limit(uint64(n)).
		RunWith(r.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query calls: %w", err)
	}
	defer rows.Close()

	var calls []WeightedCall
	for rows.Next() {
		var c WeightedCall
		if err := rows.Scan(&c.Caller, &c.Callee, &c.Kind, &c.TotalWeight); err != nil {
			return nil, fmt.Errorf("failed to scan call: %w", err)
		}
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

func (r *GraphReader) readNodes(runID string, g *graph.Graph) error {
	rows, err := sq.Select("symbol_unit", "symbol_index", "promoted", "ident").
		From("nodes").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("node_idx").
		RunWith(r.db).
		Query()
	if err != nil {
		return fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var unit, index, promoted int64
		var n graph.Node
		if err := rows.Scan(&unit, &index, &promoted, &n.Ident); err != nil {
			return fmt.Errorf("failed to scan node: %w", err)
		}
		n.Symbol = ir.SymbolID{Unit: uint32(unit), Index: uint32(index)}
		n.Promoted = ir.Promoted(promoted)
		g.AddNode(n)
	}
	return rows.Err()
}

type edgeArgs struct {
	receiver *graph.ArgWeight
	args     []graph.ArgWeight
}

func (r *GraphReader) readArgs(runID string) (map[int]*edgeArgs, error) {
	rows, err := sq.Select("edge_idx", "position", "operand", "mutability", "ty", "weight").
		From("edge_args").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("edge_idx", "position").
		RunWith(r.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query edge arguments: %w", err)
	}
	defer rows.Close()

	out := make(map[int]*edgeArgs)
	for rows.Next() {
		var edgeIdx, position int
		var operand, mutability, ty string
		var arg graph.ArgWeight
		if err := rows.Scan(&edgeIdx, &position, &operand, &mutability, &ty, &arg.Weight); err != nil {
			return nil, fmt.Errorf("failed to scan edge argument: %w", err)
		}
		if err := arg.Operand.UnmarshalText([]byte(operand)); err != nil {
			return nil, err
		}
		if err := arg.Mutability.UnmarshalText([]byte(mutability)); err != nil {
			return nil, err
		}
		if err := arg.Ty.UnmarshalText([]byte(ty)); err != nil {
			return nil, err
		}

		ea, ok := out[edgeIdx]
		if !ok {
			ea = &edgeArgs{}
			out[edgeIdx] = ea
		}
		if position == receiverPosition {
			recv := arg
			ea.receiver = &recv
			continue
		}
		ea.args = append(ea.args, arg)
	}
	return out, rows.Err()
}

func (r *GraphReader) readEdges(runID string, g *graph.Graph, args map[int]*edgeArgs) error {
	rows, err := sq.Select("edge_idx", "from_idx", "to_idx", "kind", "multiplier").
		From("edges").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("edge_idx").
		RunWith(r.db).
		Query()
	if err != nil {
		return fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var idx int
		var kind string
		var e graph.Edge
		if err := rows.Scan(&idx, &e.From, &e.To, &kind, &e.Multiplier); err != nil {
			return fmt.Errorf("failed to scan edge: %w", err)
		}
		if e.Kind, err = graph.ParseCallKind(kind); err != nil {
			return err
		}
		if ea, ok := args[idx]; ok {
			e.Receiver = ea.receiver
			e.Args = ea.args
		}
		if err := g.AddEdge(e); err != nil {
			return fmt.Errorf("run %s: %w", runID, err)
		}
	}
	return rows.Err()
}
