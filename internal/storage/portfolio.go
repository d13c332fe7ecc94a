package storage

import (
	"context"

	"go.uber.org/zap"
)

const (
	selectPendingIDs = `SELECT p.ImageId
		FROM Portfolio p
		JOIN Authentication a ON a.AuthenticationId = p.AuthenticationId
		WHERE a.IsSent = TRUE
		  AND p.IsImpressed = TRUE
		ORDER BY p.ImageId DESC`

	clearImpressed = `UPDATE Portfolio SET IsImpressed = FALSE WHERE ImageId = ?`
	setImpressed   = `UPDATE Portfolio SET IsImpressed = TRUE WHERE ImageId = ?`
)

// Portfolio runs the two portfolio queries against a caller-supplied
// cursor. Both operations log failures instead of returning them.
type Portfolio struct {
	q       Querier
	dialect Dialect
	logger  *zap.Logger
}

func NewPortfolio(q Querier, dialect Dialect, logger *zap.Logger) *Portfolio {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Portfolio{q: q, dialect: dialect, logger: logger.With(zap.String("component", "portfolio"))}
}

// FetchPendingIDs returns the ids of impressed images whose authentication
// was sent, highest id first. Any database error yields an empty slice.
func (p *Portfolio) FetchPendingIDs(ctx context.Context) []int64 {
	const op = "storage.FetchPendingIDs"

	p.logger.Info("fetching pending image ids")
	rows, err := p.q.QueryContext(ctx, rebind(p.dialect, selectPendingIDs))
	if err != nil {
		p.logger.Error("fetch pending ids failed", zap.String("op", op), zap.Error(err))
		return []int64{}
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			p.logger.Error("fetch pending ids failed", zap.String("op", op), zap.Error(err))
			return []int64{}
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		p.logger.Error("fetch pending ids failed", zap.String("op", op), zap.Error(err))
		return []int64{}
	}

	p.logger.Info("pending image ids fetched", zap.Int64s("ids", ids))
	return ids
}

// TouchImpressed flips IsImpressed to false and back to true so listeners
// on the column see a change. The two statements run outside a transaction
// and the second runs even when the first fails, so this is a best-effort
// touch: a crash in between leaves the flag false.
func (p *Portfolio) TouchImpressed(ctx context.Context, id int64) {
	const op = "storage.TouchImpressed"

	p.logger.Info("touching impressed flag", zap.Int64("image_id", id))
	failed := false
	for _, stmt := range []string{clearImpressed, setImpressed} {
		if _, err := p.q.ExecContext(ctx, rebind(p.dialect, stmt), id); err != nil {
			failed = true
			p.logger.Error("touch impressed failed", zap.String("op", op), zap.Int64("image_id", id), zap.Error(err))
		}
	}
	if !failed {
		p.logger.Info("impressed flag touched", zap.Int64("image_id", id))
	}
}
