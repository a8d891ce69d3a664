package handlers

import (
	"fmt"
	"net/http"

	"github.com/anstrom/ipscannr/internal/errors"
	"github.com/anstrom/ipscannr/internal/logging"
	"github.com/anstrom/ipscannr/internal/models"
)

// CachedRange is a cache summary with a human readable age.
type CachedRange struct {
	Range     string `json:"range"`
	ScannedAt int64  `json:"scanned_at"`
	Age       string `json:"age"`
	Hosts     int    `json:"hosts"`
	Alive     int    `json:"alive"`
}

// CacheLoadRequest loads the cached hosts of a range into the session.
type CacheLoadRequest struct {
	Range string `json:"range" validate:"required,max=256"`
}

// CacheHandler exposes the result cache.
type CacheHandler struct {
	cache   CacheReader
	session SessionController
	logger  *logging.Logger
}

// NewCacheHandler creates a cache handler. A nil cache answers every
// request with 503.
func NewCacheHandler(c CacheReader, s SessionController, logger *logging.Logger) *CacheHandler {
	return &CacheHandler{cache: c, session: s, logger: logger.WithComponent("api.cache")}
}

var errCacheDisabled = errors.NewScanError(errors.CodeConfiguration, "result cache is disabled")

// GetCache handles GET /cache. Without ?range= it lists the cached ranges,
// newest first; with it, it returns the cached hosts of that range.
func (h *CacheHandler) GetCache(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeCodedError(w, r, errCacheDisabled)
		return
	}

	if rangeKey := r.URL.Query().Get("range"); rangeKey != "" {
		hosts := h.cache.Load(rangeKey)
		if len(hosts) == 0 {
			writeError(w, r, http.StatusNotFound, fmt.Errorf("no cached results for %q", rangeKey))
			return
		}
		models.SortByIP(hosts)
		writeJSON(w, r, http.StatusOK, HostListResponse{
			Hosts:   hosts,
			Total:   len(hosts),
			Summary: fmt.Sprintf("%d hosts (%d online)", len(hosts), models.CountAlive(hosts)),
		})
		return
	}

	summaries := h.cache.Summaries()
	out := make([]CachedRange, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, CachedRange{
			Range:     s.Range,
			ScannedAt: s.ScannedAt,
			Age:       h.cache.FormatAge(s.ScannedAt),
			Hosts:     s.Hosts,
			Alive:     s.Alive,
		})
	}
	writeJSON(w, r, http.StatusOK, out)
}

// LoadCache handles POST /cache/load.
func (h *CacheHandler) LoadCache(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeCodedError(w, r, errCacheDisabled)
		return
	}

	var req CacheLoadRequest
	if err := parseJSON(r, &req, false); err != nil {
		writeCodedError(w, r, err)
		return
	}

	n, err := h.session.LoadCached(req.Range)
	if err != nil {
		writeCodedError(w, r, err)
		return
	}
	if n == 0 {
		writeError(w, r, http.StatusNotFound, fmt.Errorf("no cached results for %q", req.Range))
		return
	}

	h.logger.Info("Loaded cached results", "range", req.Range, "hosts", n)
	writeJSON(w, r, http.StatusOK, map[string]any{
		"range":   req.Range,
		"loaded":  n,
		"summary": h.session.Summary(),
	})
}
