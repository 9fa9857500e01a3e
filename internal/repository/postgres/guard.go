package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OwnershipProber runs scoped existence probes for the guard package.
//
// Table and column names are interpolated into SQL, so they are held to
// a strict identifier shape even though the guard only ever passes
// compile-time constants.
type OwnershipProber struct {
	pool *pgxpool.Pool
}

func NewOwnershipProber(pool *pgxpool.Pool) *OwnershipProber {
	return &OwnershipProber{pool: pool}
}

var sqlIdentifier = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func (p *OwnershipProber) Probe(ctx context.Context, table, scopeColumn, creatorColumn string, scopeValue, resourceID int64) (bool, int64, error) {
	for _, ident := range []string{table, scopeColumn} {
		if !sqlIdentifier.MatchString(ident) {
			return false, 0, fmt.Errorf("probe %s: invalid identifier %q", table, ident)
		}
	}
	if creatorColumn != "" && !sqlIdentifier.MatchString(creatorColumn) {
		return false, 0, fmt.Errorf("probe %s: invalid identifier %q", table, creatorColumn)
	}

	creatorExpr := "0"
	if creatorColumn != "" {
		creatorExpr = fmt.Sprintf("COALESCE(%s, 0)", creatorColumn)
	}
	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE id = $1 AND %s = $2`,
		creatorExpr, table, scopeColumn,
	)

	var creatorID int64
	err := p.pool.QueryRow(ctx, query, resourceID, scopeValue).Scan(&creatorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("probe %s: %w", table, err)
	}
	return true, creatorID, nil
}
