package db

import (
	"context"
	"fmt"

	"github.com/steelhouse/smartpixel-config-service/internal/models"
	"github.com/steelhouse/smartpixel-config-service/pkg/metrics"
)

const convVarsTable = "spx_conversion_variables"

// ConversionVariablesByAdvertiserID returns the advertiser's conversion
// variables, filtered by variable ids when any are given.
func (s *Store) ConversionVariablesByAdvertiserID(ctx context.Context, advertiserID int, variableIDs []int) ([]models.ConversionVariable, error) {
	sql := `
		SELECT variable_id, advertiser_id, name, ignore_request_value
		FROM spx_conversion_variables
		WHERE advertiser_id = $1`
	args := []any{advertiserID}
	if len(variableIDs) > 0 {
		sql += ` AND variable_id = ANY($2)`
		args = append(args, variableIDs)
	}

	s.logger.Debug("querying conversion variables", "sql", sql)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		s.logger.Error("unknown db exception to get data", "sql", sql, "error", err)
		metrics.SQLOperations.WithLabelValues(convVarsTable, "select", "error").Inc()
		return nil, fmt.Errorf("conversion variable select failed: %w", err)
	}
	defer rows.Close()

	vars := []models.ConversionVariable{}
	for rows.Next() {
		var v models.ConversionVariable
		if err := rows.Scan(&v.VariableID, &v.AdvertiserID, &v.Name, &v.IgnoreRequestValue); err != nil {
			s.logger.Error("failed to scan conversion variable row", "sql", sql, "error", err)
			metrics.SQLOperations.WithLabelValues(convVarsTable, "select", "error").Inc()
			return nil, fmt.Errorf("conversion variable scan failed: %w", err)
		}
		vars = append(vars, v)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("unknown db exception to get data", "sql", sql, "error", err)
		metrics.SQLOperations.WithLabelValues(convVarsTable, "select", "error").Inc()
		return nil, fmt.Errorf("conversion variable select failed: %w", err)
	}
	return vars, nil
}
