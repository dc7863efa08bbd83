package shopify

import (
	"context"
	"log/slog"

	"github.com/steelhouse/smartpixel-config-service/internal/db"
)

// Executor runs statements atomically and reports rows matched.
type Executor interface {
	ExecAll(ctx context.Context, stmts []db.Statement) (int64, error)
}

// Service flips the conversion pixel flags of an advertiser migrating to the
// Shopify integration.
type Service struct {
	exec   Executor
	logger *slog.Logger
}

func NewService(exec Executor, logger *slog.Logger) *Service {
	return &Service{exec: exec, logger: logger}
}

// MigrateConversionPixel deactivates the advertiser's legacy conversion pixels
// and stops ignoring request values on the matching conversion variables. Both
// updates run in one transaction. Returns the total number of rows matched;
// zero means there was nothing to migrate.
func (s *Service) MigrateConversionPixel(ctx context.Context, advertiserID int) (int64, error) {
	stmts := []db.Statement{
		{
			SQL: `
				UPDATE advertiser_smart_px_variables
				SET active = false
				WHERE advertiser_id = $1 AND active = true
					AND (trpx_call_parameter_defaults_id IN (6, 11)
						OR (trpx_call_parameter_defaults_id = 34 AND query ILIKE '%run_shopify_conversion_block%'))`,
			Args: []any{advertiserID},
		},
		{
			SQL: `
				UPDATE spx_conversion_variables
				SET ignore_request_value = false
				WHERE advertiser_id = $1 AND ignore_request_value = true AND variable_id IN (6, 11)`,
			Args: []any{advertiserID},
		},
	}
	rows, err := s.exec.ExecAll(ctx, stmts)
	if err != nil {
		return 0, err
	}
	s.logger.Debug("shopify conversion pixel migration finished", "advertiser_id", advertiserID, "rows_matched", rows)
	return rows, nil
}
