package aggregates

import (
	"fmt"
	"strings"
)

// WriteTxOwnership defines who owns write transaction boundaries.
type WriteTxOwnership string

const (
	// WriteTxOwnedByAggregate means the aggregate opens and commits its own transaction.
	WriteTxOwnedByAggregate WriteTxOwnership = "aggregate_owned"
)

type ReadPolicy string

const (
	// ReadPolicyInvariantScoped allows only the reads a write needs to check its invariants.
	ReadPolicyInvariantScoped ReadPolicy = "invariant_scoped_reads"
	ReadPolicyTableRepoQueries ReadPolicy = "table_repo_queries"
)

type Contract struct {
	Name             string
	WriteTxOwnership WriteTxOwnership
	ReadPolicy       ReadPolicy
	Notes            string
}

// Aggregate is the common marker for all aggregate implementations.
type Aggregate interface {
	Contract() Contract
}

func (c Contract) RequiresAggregateOwnedTx() bool {
	return c.WriteTxOwnership == WriteTxOwnedByAggregate
}

// Validate reports a malformed contract declaration.
func (c Contract) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("aggregate contract: name is required")
	}
	switch c.WriteTxOwnership {
	case WriteTxOwnedByAggregate:
	default:
		return fmt.Errorf("aggregate contract %s: unknown tx ownership %q", c.Name, c.WriteTxOwnership)
	}
	switch c.ReadPolicy {
	case ReadPolicyInvariantScoped, ReadPolicyTableRepoQueries:
	default:
		return fmt.Errorf("aggregate contract %s: unknown read policy %q", c.Name, c.ReadPolicy)
	}
	return nil
}
