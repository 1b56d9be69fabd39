package terminology

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGCatalog is a Catalog backed by a Postgres concept table populated by the
// out-of-process import job. The engine only reads from it.
type PGCatalog struct {
	pool *pgxpool.Pool
}

// NewPGCatalog creates a catalog over pool.
func NewPGCatalog(pool *pgxpool.Pool) *PGCatalog {
	return &PGCatalog{pool: pool}
}

// Lookup implements Catalog. Entries in the requested language are preferred
// over default-language entries (language = '').
func (c *PGCatalog) Lookup(ctx context.Context, code, system, lang string) (*Concept, error) {
	var concept Concept
	err := c.pool.QueryRow(ctx,
		`SELECT code, system_oid, language, display
		 FROM terminology_concepts
		 WHERE code = $1 AND system_oid = $2 AND language IN ($3, '')
		 ORDER BY language DESC
		 LIMIT 1`, code, system, normalizeLang(lang)).
		Scan(&concept.Code, &concept.System, &concept.Language, &concept.Display)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("terminology: lookup %s|%s: %w", system, code, err)
	}
	return &concept, nil
}

// LookupCode implements Catalog. The system ordering keeps degraded matches
// deterministic across calls.
func (c *PGCatalog) LookupCode(ctx context.Context, code, lang string) (*Concept, error) {
	var concept Concept
	err := c.pool.QueryRow(ctx,
		`SELECT code, system_oid, language, display
		 FROM terminology_concepts
		 WHERE code = $1 AND language IN ($2, '')
		 ORDER BY language DESC, system_oid ASC
		 LIMIT 1`, code, normalizeLang(lang)).
		Scan(&concept.Code, &concept.System, &concept.Language, &concept.Display)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("terminology: lookup code %s: %w", code, err)
	}
	return &concept, nil
}
