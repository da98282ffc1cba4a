package storage

import "time"

// timeFormat is fixed-width so created_at sorts as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Domain models that mirror SQL tables in schema.go.

// Run is one exported graph. Maps to the runs table.
type Run struct {
	ID        string    // run_id: UUID
	Unit      string    // unit: name of the exported graph
	NodeCount int       // node_count: denormalized count
	EdgeCount int       // edge_count: denormalized count
	CreatedAt time.Time // created_at: export time (UTC)
}

// WeightedCall is one edge joined with its endpoint names.
type WeightedCall struct {
	Caller      string
	Callee      string
	Kind        string
	TotalWeight float64
}
