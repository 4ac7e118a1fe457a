package repository

import (
	"context"

	"github.com/freeeve/policy-arena/internal/model"
)

// StatsStore reads position and successor-move aggregates from one
// statistics dataset. A nil result with a nil error means the dataset has no
// data for the query.
type StatsStore interface {
	Position(ctx context.Context, q model.Query) (*model.PositionAggregate, error)
	Moves(ctx context.Context, q model.Query) ([]model.MoveAggregate, error)
}

// StatsWriter loads aggregates into a dataset.
type StatsWriter interface {
	UpsertPosition(ctx context.Context, p model.PositionAggregate) error
	UpsertMove(ctx context.Context, startID, endID, san string, timesPlayed int64) error
}

// StatsCache holds serialized lookups per dataset (Redis).
type StatsCache interface {
	GetPosition(ctx context.Context, dataset, id string) (*model.PositionAggregate, bool, error)
	SetPosition(ctx context.Context, dataset, id string, p *model.PositionAggregate) error
	GetMoves(ctx context.Context, dataset, id string) ([]model.MoveAggregate, bool, error)
	SetMoves(ctx context.Context, dataset, id string, moves []model.MoveAggregate) error
}

// ResultRepository persists sweep output rows.
type ResultRepository interface {
	SaveRows(ctx context.Context, rows []model.SweepRow) error
	ListRows(ctx context.Context, sweepID, cell string) ([]model.SweepRow, error)
}
