package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/steelhouse/smartpixel-config-service/internal/events"
	"github.com/steelhouse/smartpixel-config-service/internal/models"
	"github.com/steelhouse/smartpixel-config-service/internal/rbclient"
)

// RbClientService is the Rockerbox client config contract consumed by the
// handlers.
type RbClientService interface {
	Clients(ctx context.Context) (map[int]string, error)
	AdvertiserIDs(ctx context.Context) ([]int, error)
	SpxMap(ctx context.Context, advertiserID int) (map[rbclient.Role]models.Pixel, error)
	Create(ctx context.Context, cfg models.RbClientConfig) error
	Update(ctx context.Context, cfg models.RbClientConfig, spxMap map[rbclient.Role]models.Pixel) error
	Delete(ctx context.Context, advertiserID int, spxMap map[rbclient.Role]models.Pixel) error
}

// ShopifyService migrates an advertiser's conversion pixel flags.
type ShopifyService interface {
	MigrateConversionPixel(ctx context.Context, advertiserID int) (int64, error)
}

// ConfigStore serves the plain key-lookup read endpoints.
type ConfigStore interface {
	PixelsByAdvertiserIDAndDefaults(ctx context.Context, advertiserID int, defaultsIDs []int) ([]models.Pixel, error)
	PixelsByIDs(ctx context.Context, ids []int) ([]models.Pixel, error)
	ConversionVariablesByAdvertiserID(ctx context.Context, advertiserID int, variableIDs []int) ([]models.ConversionVariable, error)
}

// Server wires the HTTP surface of the config service.
type Server struct {
	rb        RbClientService
	shopify   ShopifyService
	store     ConfigStore
	publisher events.Publisher
	logger    *slog.Logger
}

func NewServer(rb RbClientService, shopify ShopifyService, store ConfigStore, publisher events.Publisher, logger *slog.Logger) *Server {
	return &Server{
		rb:        rb,
		shopify:   shopify,
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestMiddleware)

	r.HandleFunc("/spx/rb/clients", s.handleRbClients).Methods(http.MethodGet)
	r.HandleFunc("/spx/rb/advertisers", s.handleRbAdvertisers).Methods(http.MethodGet)
	r.HandleFunc("/spx/rb/advertisers/{advertiserId}", s.handleUpsertRbClient).Methods(http.MethodPut)
	r.HandleFunc("/spx/rb/advertisers/{advertiserId}", s.handleDeleteRbClient).Methods(http.MethodDelete)

	r.HandleFunc("/advSpxVar/advertisers/{advertiserId}", s.handleSpxList).Methods(http.MethodGet)
	r.HandleFunc("/advSpxVar/variables", s.handleSpxListByVariableIDs).Methods(http.MethodGet)
	r.HandleFunc("/spxConvVar/advertisers/{advertiserId}", s.handleConvVarList).Methods(http.MethodGet)

	r.HandleFunc("/shopify/migrateConversionPixel/advertisers/{advertiserId}", s.handleShopifyMigration).Methods(http.MethodPatch)

	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response body", "error", err)
	}
}
