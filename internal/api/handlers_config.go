package api

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
)

var validNumberPattern = regexp.MustCompile(`^[0-9,]*$`)

// parseIDList splits a comma-separated numeric query parameter. Anything that
// fails the numeric pattern is treated as an absent filter.
func parseIDList(raw string) []int {
	if raw == "" || !validNumberPattern.MatchString(raw) {
		return nil
	}
	var ids []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.Atoi(part); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *Server) handleSpxList(w http.ResponseWriter, r *http.Request) {
	advertiserID, err := strconv.Atoi(mux.Vars(r)["advertiserId"])
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	rawFilter := r.URL.Query().Get("trpxCallParameterDefaultsId")
	s.logger.Info("got request to get all the advertiser_smart_px_variables",
		"advertiser_id", advertiserID,
		"trpx_call_parameter_defaults_id", rawFilter,
	)

	pixels, err := s.store.PixelsByAdvertiserIDAndDefaults(r.Context(), advertiserID, parseIDList(rawFilter))
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, pixels)
}

func (s *Server) handleSpxListByVariableIDs(w http.ResponseWriter, r *http.Request) {
	rawFilter := r.URL.Query().Get("variableId")
	s.logger.Info("got request to get advertiser_smart_px_variables by variable ids", "variable_id", rawFilter)

	ids := parseIDList(rawFilter)
	if len(ids) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	pixels, err := s.store.PixelsByIDs(r.Context(), ids)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, pixels)
}

func (s *Server) handleConvVarList(w http.ResponseWriter, r *http.Request) {
	advertiserID, err := strconv.Atoi(mux.Vars(r)["advertiserId"])
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	rawFilter := r.URL.Query().Get("variableId")
	s.logger.Info("got request to get all the spx_conversion_variables",
		"advertiser_id", advertiserID,
		"variable_id", rawFilter,
	)

	vars, err := s.store.ConversionVariablesByAdvertiserID(r.Context(), advertiserID, parseIDList(rawFilter))
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, vars)
}

func (s *Server) handleShopifyMigration(w http.ResponseWriter, r *http.Request) {
	advertiserID, err := strconv.Atoi(mux.Vars(r)["advertiserId"])
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.logger.Info("got request to migrate shopify conversion pixel", "advertiser_id", advertiserID)

	rowsMatched, err := s.shopify.MigrateConversionPixel(r.Context(), advertiserID)
	if err != nil {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(err.Error()))
		return
	}
	if rowsMatched == 0 {
		s.logger.Error("client request error: nothing for shopify conversion pixel migration", "advertiser_id", advertiserID)
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("nothing to update"))
		return
	}
	w.WriteHeader(http.StatusOK)
}
