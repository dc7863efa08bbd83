package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/steelhouse/smartpixel-config-service/internal/models"
	"github.com/steelhouse/smartpixel-config-service/internal/rbclient"
	"github.com/steelhouse/smartpixel-config-service/pkg/metrics"
)

func (s *Server) handleRbClients(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("got request to get all the rb clients' advertiserId and rockerboxAdvertiserId")

	clients, err := s.rb.Clients(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, clients)
}

func (s *Server) handleRbAdvertisers(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("got request to get all the rb clients' advertiserId")

	ids, err := s.rb.AdvertiserIDs(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, ids)
}

func (s *Server) handleUpsertRbClient(w http.ResponseWriter, r *http.Request) {
	advertiserIDInPath, err := strconv.Atoi(mux.Vars(r)["advertiserId"])
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var cfg models.RbClientConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.logger.Info("got request to upsert rb client", "advertiser_id", cfg.AdvertiserID, "rb_adv_id", cfg.RbAdvID)

	if cfg.AdvertiserID != advertiserIDInPath || !rbclient.IsValidRbAdvID(cfg.RbAdvID) {
		s.logger.Debug("rejecting upsert request",
			"advertiser_id_matches", cfg.AdvertiserID == advertiserIDInPath,
			"rb_adv_id_valid", rbclient.IsValidRbAdvID(cfg.RbAdvID),
		)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	spxMap, err := s.rb.SpxMap(r.Context(), cfg.AdvertiserID)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if len(spxMap) == 0 {
		err := s.rb.Create(r.Context(), cfg)
		s.logRequestResult(cfg.AdvertiserID, "insert", cfg.RbAdvID, err)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		s.publishChange(r, "insert", cfg.AdvertiserID, cfg.RbAdvID)
		w.WriteHeader(http.StatusCreated)
		return
	}

	err = s.rb.Update(r.Context(), cfg, spxMap)
	s.logRequestResult(cfg.AdvertiserID, "update", cfg.RbAdvID, err)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	s.publishChange(r, "update", cfg.AdvertiserID, cfg.RbAdvID)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDeleteRbClient(w http.ResponseWriter, r *http.Request) {
	advertiserID, err := strconv.Atoi(mux.Vars(r)["advertiserId"])
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.logger.Info("got request to delete rb client", "advertiser_id", advertiserID)

	spxMap, err := s.rb.SpxMap(r.Context(), advertiserID)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if len(spxMap) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	err = s.rb.Delete(r.Context(), advertiserID, spxMap)
	s.logRequestResult(advertiserID, "delete", "n/a", err)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	s.publishChange(r, "delete", advertiserID, "")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) logRequestResult(advertiserID int, action, rbAdvID string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.ConfigChanges.WithLabelValues(action, result).Inc()
	s.logger.Info("completed client request",
		"advertiser_id", advertiserID,
		"action", action,
		"rb_adv_id", rbAdvID,
		"succeed", err == nil,
	)
}

// publishChange hands the mutation to the broker. Failures are logged and
// counted but never surfaced to the client.
func (s *Server) publishChange(r *http.Request, action string, advertiserID int, rbAdvID string) {
	event := models.ChangeEvent{
		EventID:      uuid.NewString(),
		AdvertiserID: advertiserID,
		Action:       action,
		RbAdvID:      rbAdvID,
		At:           time.Now().UTC(),
	}
	if err := s.publisher.PublishChange(r.Context(), event); err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		s.logger.Error("failed to publish config change event", "event_id", event.EventID, "action", action, "error", err)
		return
	}
	metrics.EventsPublished.WithLabelValues("ok").Inc()
}
