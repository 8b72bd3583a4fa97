package model

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// VisitStep is one action occurrence inside a visit, joined with the
// action definition it points at. Name is null when the action row is
// missing, which the path miners treat as a broken link in the chain.
type VisitStep struct {
	LinkID     uint64      `db:"idlink_va"`
	VisitID    uint64      `db:"idvisit"`
	URLAction  null.Uint64 `db:"idaction_url"`
	NameAction null.Uint64 `db:"idaction_name"`
	ActionID   null.Uint64 `db:"action_id"`
	ServerTime time.Time   `db:"server_time"`
	Name       null.String `db:"action_name"`
}

// VisitorDay is the number of visits one visitor started on a given day.
type VisitorDay struct {
	Day     time.Time `db:"day"`
	Visitor string    `db:"visitor"` // hex encoded idvisitor
	Visits  int       `db:"visits"`
}

// PageStat is one row of the popular content ranking.
type PageStat struct {
	Name  string `db:"name"`
	Value int64  `db:"value"`
}

// HistogramBin counts visits whose column value equals Value.
type HistogramBin struct {
	Value int64 `db:"value"`
	Count int   `db:"count"`
}
