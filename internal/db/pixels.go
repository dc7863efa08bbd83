package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/steelhouse/smartpixel-config-service/internal/models"
	"github.com/steelhouse/smartpixel-config-service/pkg/metrics"
)

const pixelsTable = "advertiser_smart_px_variables"

// ErrRowCountMismatch signals that a batch insert reported fewer rows than
// requested. The caller has to run recovery.
var ErrRowCountMismatch = errors.New("batch insert row count mismatch")

const selectPixelColumns = `
	SELECT variable_id, advertiser_id, trpx_call_parameter_defaults_id, query, query_type, active, endpoint
	FROM advertiser_smart_px_variables
`

// The administrative columns of a Rockerbox pixel are constants:
// trpx_call_parameter_defaults_id is always 34, query_type is always 3,
// active is always true and endpoint is always 'spx'.
const insertRbClientPixelSQL = `
	INSERT INTO advertiser_smart_px_variables
	(advertiser_id, trpx_call_parameter_defaults_id, query, query_type, active, regex, regex_replace, regex_replace_value, regex_replace_modifier, endpoint)
	VALUES($1, 34, $2, 3, true, null, null, null, null, 'spx')
	RETURNING variable_id
`

// PixelsByAdvertiserID returns every pixel owned by the advertiser. An empty
// slice means no rows matched.
func (s *Store) PixelsByAdvertiserID(ctx context.Context, advertiserID int) ([]models.Pixel, error) {
	sql := selectPixelColumns + ` WHERE advertiser_id = $1`
	return s.queryPixels(ctx, sql, advertiserID)
}

// PixelsByAdvertiserIDAndDefaults returns the advertiser's pixels filtered by
// trpx_call_parameter_defaults_id values when any are given.
func (s *Store) PixelsByAdvertiserIDAndDefaults(ctx context.Context, advertiserID int, defaultsIDs []int) ([]models.Pixel, error) {
	if len(defaultsIDs) == 0 {
		return s.PixelsByAdvertiserID(ctx, advertiserID)
	}
	sql := selectPixelColumns + ` WHERE advertiser_id = $1 AND trpx_call_parameter_defaults_id = ANY($2)`
	return s.queryPixels(ctx, sql, advertiserID, defaultsIDs)
}

// PixelsByIDs returns the pixels with the given variable ids.
func (s *Store) PixelsByIDs(ctx context.Context, ids []int) ([]models.Pixel, error) {
	sql := selectPixelColumns + ` WHERE variable_id = ANY($1)`
	return s.queryPixels(ctx, sql, ids)
}

// PixelsByQueryKeyword scans the whole table for pixels whose query contains
// the keyword. Use it carefully.
func (s *Store) PixelsByQueryKeyword(ctx context.Context, keyword string) ([]models.Pixel, error) {
	sql := selectPixelColumns + ` WHERE query ILIKE '%' || $1 || '%'`
	return s.queryPixels(ctx, sql, keyword)
}

func (s *Store) queryPixels(ctx context.Context, sql string, args ...any) ([]models.Pixel, error) {
	s.logger.Debug("querying pixels", "sql", sql)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		s.logger.Error("unknown db exception to get data", "sql", sql, "error", err)
		metrics.SQLOperations.WithLabelValues(pixelsTable, "select", "error").Inc()
		return nil, fmt.Errorf("pixel select failed: %w", err)
	}
	defer rows.Close()

	pixels := []models.Pixel{}
	for rows.Next() {
		var p models.Pixel
		if err := rows.Scan(
			&p.VariableID,
			&p.AdvertiserID,
			&p.TrpxCallParameterDefaultsID,
			&p.Query,
			&p.QueryType,
			&p.Active,
			&p.Endpoint,
		); err != nil {
			s.logger.Error("failed to scan pixel row", "sql", sql, "error", err)
			metrics.SQLOperations.WithLabelValues(pixelsTable, "select", "error").Inc()
			return nil, fmt.Errorf("pixel scan failed: %w", err)
		}
		pixels = append(pixels, p)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("unknown db exception to get data", "sql", sql, "error", err)
		metrics.SQLOperations.WithLabelValues(pixelsTable, "select", "error").Inc()
		return nil, fmt.Errorf("pixel select failed: %w", err)
	}
	return pixels, nil
}

// InsertRbClientPixels inserts the pixels in one transaction and returns the
// generated variable ids in input order.
func (s *Store) InsertRbClientPixels(ctx context.Context, pixels []models.Pixel) ([]int, error) {
	logString := models.PixelListInfoString(pixels)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		metrics.SQLOperations.WithLabelValues(pixelsTable, "batch_update", "error").Inc()
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ids := make([]int, 0, len(pixels))
	for _, p := range pixels {
		var id int
		if err := tx.QueryRow(ctx, insertRbClientPixelSQL, p.AdvertiserID, p.Query).Scan(&id); err != nil {
			s.logger.Error("unknown db exception to batch update", "error", err, "pixels", logString)
			metrics.SQLOperations.WithLabelValues(pixelsTable, "batch_update", "error").Inc()
			return nil, fmt.Errorf("pixel insert failed: %w", err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		metrics.SQLOperations.WithLabelValues(pixelsTable, "batch_update", "error").Inc()
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if len(ids) != len(pixels) {
		s.logger.Error("problems with db batch update: recovery needed", "returned", len(ids), "pixels", logString)
		metrics.SQLOperations.WithLabelValues(pixelsTable, "batch_update", "error").Inc()
		return nil, ErrRowCountMismatch
	}
	s.logger.Debug("pixels have been created", "count", len(ids))
	metrics.SQLOperations.WithLabelValues(pixelsTable, "batch_update", "ok").Inc()
	return ids, nil
}

// UpdatePixelQuery rewrites a single pixel's query field.
func (s *Store) UpdatePixelQuery(ctx context.Context, variableID int, query string) error {
	sql := `UPDATE advertiser_smart_px_variables SET query = $1 WHERE variable_id = $2`
	if _, err := s.pool.Exec(ctx, sql, query, variableID); err != nil {
		s.logger.Error("unknown db exception to update data", "variable_id", variableID, "error", err)
		metrics.SQLOperations.WithLabelValues(pixelsTable, "update", "error").Inc()
		return fmt.Errorf("pixel update failed: %w", err)
	}
	metrics.SQLOperations.WithLabelValues(pixelsTable, "update", "ok").Inc()
	return nil
}

// DeletePixelsByIDs removes the pixels with the given variable ids in one
// statement.
func (s *Store) DeletePixelsByIDs(ctx context.Context, ids []int) error {
	sql := `DELETE FROM advertiser_smart_px_variables WHERE variable_id = ANY($1)`
	if _, err := s.pool.Exec(ctx, sql, ids); err != nil {
		s.logger.Error("unknown db exception to delete data", "variable_ids", ids, "error", err)
		metrics.SQLOperations.WithLabelValues(pixelsTable, "delete", "error").Inc()
		return fmt.Errorf("pixel delete failed: %w", err)
	}
	s.logger.Debug("spx deletion succeed", "variable_ids", ids)
	metrics.SQLOperations.WithLabelValues(pixelsTable, "delete", "ok").Inc()
	return nil
}
