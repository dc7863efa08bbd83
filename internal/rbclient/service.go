package rbclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/steelhouse/smartpixel-config-service/internal/models"
)

var (
	// ErrInconsistent signals stored Rockerbox data that fails an invariant
	// (wrong pixel count, unparseable rb_adv_id, mismatched advertiser).
	// Callers must not trust the data behind it.
	ErrInconsistent = errors.New("inconsistent rockerbox client data")

	// ErrNotUnique signals an rb_adv_id that already belongs to another
	// advertiser.
	ErrNotUnique = errors.New("rb_adv_id is not unique")
)

// PixelStore is the data-access contract the service consumes. Read methods
// return an empty slice when no rows match and a non-nil error only on store
// failure.
type PixelStore interface {
	PixelsByAdvertiserID(ctx context.Context, advertiserID int) ([]models.Pixel, error)
	PixelsByQueryKeyword(ctx context.Context, keyword string) ([]models.Pixel, error)
	InsertRbClientPixels(ctx context.Context, pixels []models.Pixel) ([]int, error)
	UpdatePixelQuery(ctx context.Context, variableID int, query string) error
	DeletePixelsByIDs(ctx context.Context, ids []int) error
}

// Service maintains the two-pixel invariant of Rockerbox clients: every
// integrated advertiser owns exactly one getRockerBoxAdvID pixel and one
// getRockerBoxUID pixel. The pixel rows themselves are the ground truth.
type Service struct {
	store  PixelStore
	logger *slog.Logger
}

func NewService(store PixelStore, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// AdvertiserIDs returns the advertiser id of every getRockerBoxUID pixel in
// the store, unvalidated. This scans the whole table by query keyword.
func (s *Service) AdvertiserIDs(ctx context.Context) ([]int, error) {
	uidPixels, err := s.store.PixelsByQueryKeyword(ctx, uidKeyword)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(uidPixels))
	for _, p := range uidPixels {
		ids = append(ids, p.AdvertiserID)
	}
	return ids, nil
}

// Clients returns advertiserId -> rbAdvId for every valid Rockerbox client.
// Advertisers holding only one half of the pair are logged and omitted.
func (s *Service) Clients(ctx context.Context) (map[int]string, error) {
	advIDPixels, err := s.store.PixelsByQueryKeyword(ctx, advIDKeyword)
	if err != nil {
		return nil, err
	}
	uidAdvertiserIDs, err := s.AdvertiserIDs(ctx)
	if err != nil {
		return nil, err
	}

	unmatched := make(map[int]int, len(uidAdvertiserIDs))
	for _, aid := range uidAdvertiserIDs {
		unmatched[aid]++
	}

	clients := make(map[int]string)
	for _, p := range advIDPixels {
		aid := p.AdvertiserID
		if unmatched[aid] > 0 {
			if rbAdvID, ok := s.rbAdvIDFromPixel(p); ok {
				clients[aid] = rbAdvID
			}
			unmatched[aid]--
			continue
		}
		s.logger.Error("wrong rb client found in db: advertiser has getRockerBoxAdvID spx but no getRockerBoxUID spx",
			"advertiser_id", aid,
		)
	}
	for aid, n := range unmatched {
		if n > 0 {
			s.logger.Error("wrong rb client found in db: advertiser has getRockerBoxUID spx but no getRockerBoxAdvID spx",
				"advertiser_id", aid,
			)
		}
	}
	return clients, nil
}

// SpxMap returns the advertiser's Rockerbox pixels keyed by role. An empty map
// means the advertiser has no Rockerbox integration. A map that does not hold
// exactly the two roles is never returned: the state is logged and surfaced as
// ErrInconsistent.
func (s *Service) SpxMap(ctx context.Context, advertiserID int) (map[Role]models.Pixel, error) {
	pixels, err := s.store.PixelsByAdvertiserID(ctx, advertiserID)
	if err != nil {
		return nil, err
	}
	m := matchRoles(pixels)
	if len(m) == 0 {
		return m, nil
	}
	if !isValidPair(m) {
		s.logger.Error("wrong rb client found in db: missing getRockerBoxAdvID or getRockerBoxUID spx",
			"advertiser_id", advertiserID,
			"pixels", models.PixelListInfoString(pixelValues(m)),
		)
		return nil, fmt.Errorf("advertiser %d: %w", advertiserID, ErrInconsistent)
	}
	return m, nil
}

// IsRbAdvIDUnique reports whether rbAdvID is unused by any other advertiser.
// The same advertiser re-submitting its own id is not a conflict. A store
// failure counts as not unique. This is a safety net only: the caller is
// expected to have validated uniqueness, and the check-then-insert sequence is
// not atomic across concurrent requests.
func (s *Service) IsRbAdvIDUnique(ctx context.Context, advertiserID int, rbAdvID string) bool {
	advIDPixels, err := s.store.PixelsByQueryKeyword(ctx, advIDKeyword)
	if err != nil {
		return false
	}
	for _, p := range advIDPixels {
		storedID, ok := s.rbAdvIDFromPixel(p)
		if !ok || storedID != rbAdvID {
			continue
		}
		if p.AdvertiserID == advertiserID {
			s.logger.Debug("same rb_adv_id is allowed for the same advertiser", "advertiser_id", advertiserID)
			continue
		}
		s.logger.Error("client request error: no uniqueness validation on rb_adv_id",
			"input_advertiser_id", advertiserID,
			"input_rb_adv_id", rbAdvID,
			"db_advertiser_id", p.AdvertiserID,
			"db_spx", p.InfoString(),
		)
		return false
	}
	return true
}

// Create inserts the two pixels of a new Rockerbox client. On insert failure
// whatever partial rows exist for the advertiser are cleaned up best-effort.
func (s *Service) Create(ctx context.Context, cfg models.RbClientConfig) error {
	s.logger.Debug("need to create a new rb client", "advertiser_id", cfg.AdvertiserID)

	if !IsValidRbAdvID(cfg.RbAdvID) {
		return fmt.Errorf("invalid rb_adv_id %q", cfg.RbAdvID)
	}
	if !s.IsRbAdvIDUnique(ctx, cfg.AdvertiserID, cfg.RbAdvID) {
		return ErrNotUnique
	}

	pixels := []models.Pixel{
		NewAdvIDPixel(cfg.AdvertiserID, cfg.RbAdvID),
		NewUIDPixel(cfg.AdvertiserID),
	}
	if _, err := s.store.InsertRbClientPixels(ctx, pixels); err != nil {
		s.removeProblematicPixels(ctx, cfg.AdvertiserID)
		return fmt.Errorf("insert rb client pixels: %w", err)
	}
	return nil
}

// removeProblematicPixels deletes whatever Rockerbox pixels exist for the
// advertiser after a failed creation. Best-effort: a failing re-fetch was
// already logged by the store, so it is skipped silently here.
func (s *Service) removeProblematicPixels(ctx context.Context, advertiserID int) {
	pixels, err := s.store.PixelsByAdvertiserID(ctx, advertiserID)
	if err != nil {
		return
	}
	m := matchRoles(pixels)
	if len(m) == 0 {
		return
	}
	_ = s.Delete(ctx, advertiserID, m)
}

// Update rewrites the getRockerBoxAdvID pixel query with the new rb_adv_id.
// Submitting the current id again is a no-op. The getRockerBoxUID pixel never
// changes after creation.
func (s *Service) Update(ctx context.Context, cfg models.RbClientConfig, spxMap map[Role]models.Pixel) error {
	advIDPixel, ok := spxMap[RoleAdvID]
	if !ok || advIDPixel.VariableID == 0 {
		s.logger.Error("wrong rb client found in db: getRockerBoxAdvID spx is not valid", "advertiser_id", cfg.AdvertiserID)
		return fmt.Errorf("advertiser %d: %w", cfg.AdvertiserID, ErrInconsistent)
	}
	currentRbAdvID, ok := s.rbAdvIDFromPixel(advIDPixel)
	if !ok {
		return fmt.Errorf("advertiser %d: %w", cfg.AdvertiserID, ErrInconsistent)
	}

	if cfg.RbAdvID == currentRbAdvID {
		s.logger.Debug("no change to the rockerbox advertiser id. no action needed.", "advertiser_id", cfg.AdvertiserID)
		return nil
	}

	if !s.IsRbAdvIDUnique(ctx, cfg.AdvertiserID, cfg.RbAdvID) {
		return ErrNotUnique
	}

	newQuery := AdvIDQuery(cfg.RbAdvID)
	s.logger.Debug("need to update an existing rb client's getRockerBoxAdvID spx",
		"variable_id", advIDPixel.VariableID,
		"new_query", newQuery,
	)
	return s.store.UpdatePixelQuery(ctx, advIDPixel.VariableID, newQuery)
}

// Delete removes both pixels of a Rockerbox client in one batch. Every pixel
// in the map is re-checked before deletion; any mismatch aborts the whole
// operation without touching the store.
func (s *Service) Delete(ctx context.Context, advertiserID int, spxMap map[Role]models.Pixel) error {
	ids := make([]int, 0, len(spxMap))
	for _, p := range spxMap {
		// In theory these checks never fire because the map came from SpxMap
		// and is validated there.
		if p.AdvertiserID != advertiserID {
			s.logger.Error("wrong rb client found in db: wrong spx retrieved",
				"advertiser_id", advertiserID,
				"spx", p.InfoString(),
			)
			return fmt.Errorf("advertiser %d: %w", advertiserID, ErrInconsistent)
		}
		if !IsRbClientQuery(p.Query) {
			s.logger.Error("wrong rb client found in db: non rb client spx retrieved",
				"advertiser_id", advertiserID,
				"spx", p.InfoString(),
			)
			return fmt.Errorf("advertiser %d: %w", advertiserID, ErrInconsistent)
		}
		s.logger.Debug("added rb client spx to deletion list",
			"advertiser_id", advertiserID,
			"spx", p.InfoString(),
		)
		ids = append(ids, p.VariableID)
	}
	return s.store.DeletePixelsByIDs(ctx, ids)
}

func (s *Service) rbAdvIDFromPixel(p models.Pixel) (string, bool) {
	rbAdvID, ok := FindRbAdvID(p.Query)
	if !ok {
		s.logger.Error("wrong rb client found in db: no rb_adv_id in getRockerBoxAdvID spx", "spx", p.InfoString())
		return "", false
	}
	return rbAdvID, true
}

func matchRoles(pixels []models.Pixel) map[Role]models.Pixel {
	m := make(map[Role]models.Pixel)
	for _, p := range pixels {
		if IsUIDQuery(p.Query) {
			m[RoleUID] = p
		}
		if IsAdvIDQuery(p.Query) {
			m[RoleAdvID] = p
		}
	}
	return m
}

func isValidPair(m map[Role]models.Pixel) bool {
	_, hasAdvID := m[RoleAdvID]
	_, hasUID := m[RoleUID]
	return len(m) == 2 && hasAdvID && hasUID
}

func pixelValues(m map[Role]models.Pixel) []models.Pixel {
	pixels := make([]models.Pixel, 0, len(m))
	for _, p := range m {
		pixels = append(pixels, p)
	}
	return pixels
}
