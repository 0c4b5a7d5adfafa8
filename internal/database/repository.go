package database

import (
	"context"

	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/database/models"
	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/refdata"
)

// RefRepository reads the reference data the rating engine runs against.
type RefRepository interface {
	// LoadTables reads every reference table.
	LoadTables(ctx context.Context) (refdata.Rows, error)
	// LoadPrefixes reads the operator prefixes of one country. It backs the
	// prefix cache.
	LoadPrefixes(ctx context.Context, countryID int64) ([]models.PrefixInfo, error)
}

// QuarantineRepository stores records that could not be rated.
type QuarantineRepository interface {
	Create(ctx context.Context, q *models.QuarantinedCall) error
	List(ctx context.Context, limit, offset int) ([]models.QuarantinedCall, error)
	CountByKind(ctx context.Context) (map[models.QuarantineKind]int64, error)
}
