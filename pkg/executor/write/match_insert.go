package write

import (
	"github.com/graphlite-db/graphlite/pkg/planner"
	"github.com/graphlite-db/graphlite/pkg/value"
)

// NewMatchInsertExecutor builds the executor for a CREATE clause that
// follows a MATCH/WITH pipeline (n.Input != nil), grounded on
// original_source's match_insert.rs: node patterns whose variable is
// already bound by the preceding match are references and are never
// recreated, only patterns introducing a genuinely new variable create a
// node, and edges between resolved endpoints are always newly created
// (with EdgeAlreadyExists treated as a non-fatal warning, same as plain
// INSERT). original_source mints new node identifiers from a UUID
// (insert_node_<uuid>) so repeated runs against the same matches don't
// collide; GraphLite instead derives a deterministic content-hash ID from
// the pattern's labels/properties (see pkg/value.ContentHash), so the
// same collision-avoidance property holds without a random identifier.
//
// The match/filter/WITH evaluation and the node/edge creation loop are
// identical to plain INSERT once the planner has threaded the prior
// pipeline in as Input (see pkg/planner/build.go's CreateClause case), so
// both are served by the single InsertExecutor in insert.go rather than
// a second, duplicated walk of the same PInsert node.
func NewMatchInsertExecutor(n *planner.PInsert, params map[string]value.Value) *InsertExecutor {
	return NewInsertExecutor(n, params)
}
