// Package handlers provides the HTTP handlers of the ipscannr API.
// This file holds the controller interfaces and the response helpers shared
// by every handler.
package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/anstrom/ipscannr/internal/api/middleware"
	"github.com/anstrom/ipscannr/internal/cache"
	"github.com/anstrom/ipscannr/internal/errors"
	"github.com/anstrom/ipscannr/internal/logging"
	"github.com/anstrom/ipscannr/internal/models"
	"github.com/anstrom/ipscannr/internal/scanning"
	"github.com/anstrom/ipscannr/internal/session"
)

const maxRequestSize = 1 << 20

// SessionController is the session surface the API drives.
type SessionController interface {
	Start(ctx context.Context, rangeSpec string) (<-chan session.Event, error)
	Pause() error
	Resume(ctx context.Context) (<-chan session.Event, error)
	State() session.State
	Snapshot() session.Snapshot
	Summary() string
	Host(ip netip.Addr) (models.HostRecord, bool)
	Select(ip netip.Addr) error
	Selected() (netip.Addr, bool)
	ScanHostPorts(ctx context.Context, ip netip.Addr, ports []uint16) ([]scanning.PortResult, error)
	ScanPortsForSelected(ctx context.Context, ip netip.Addr) ([]scanning.PortResult, error)
	LoadCached(rangeKey string) (int, error)
}

// CacheReader is the read side of the result cache.
type CacheReader interface {
	Load(rangeKey string) []models.HostRecord
	Summaries() []cache.Summary
	FormatAge(scannedAt int64) string
}

// EventForwarder takes ownership of a run's event channel and drains it.
type EventForwarder interface {
	Forward(events <-chan session.Event)
}

var (
	_ SessionController = (*session.Session)(nil)
	_ CacheReader       = (*cache.Store)(nil)
	_ EventForwarder    = (*Hub)(nil)
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Error("Failed to encode JSON response",
			"request_id", middleware.GetRequestID(r),
			"error", err)
	}
}

// writeError writes an error response with an explicit status code.
func writeError(w http.ResponseWriter, r *http.Request, statusCode int, err error) {
	resp := ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(r),
	}
	if code := errors.GetCode(err); code != errors.CodeUnknown {
		resp.Code = string(code)
	}
	writeJSON(w, r, statusCode, resp)
}

// writeCodedError picks the status code from the error code.
func writeCodedError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, statusForError(err), err)
}

func statusForError(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeTargetInvalid, errors.CodeValidation:
		return http.StatusBadRequest
	case errors.CodeHostNotFound:
		return http.StatusNotFound
	case errors.CodeInvalidState:
		return http.StatusConflict
	case errors.CodeConfiguration:
		return http.StatusServiceUnavailable
	case errors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// parseJSON decodes the body into dest and validates it. An empty body
// leaves dest untouched when allowEmpty is set.
func parseJSON(r *http.Request, dest any, allowEmpty bool) error {
	if r.Body == nil || r.Body == http.NoBody {
		if allowEmpty {
			return nil
		}
		return errors.NewScanError(errors.CodeValidation, "request body is empty")
	}

	r.Body = http.MaxBytesReader(nil, r.Body, maxRequestSize)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case stderrors.Is(err, io.EOF) && allowEmpty:
			return nil
		case stderrors.Is(err, io.EOF):
			return errors.NewScanError(errors.CodeValidation, "request body is empty")
		case stderrors.As(err, &tooLarge):
			return errors.NewScanError(errors.CodeValidation, "request body too large")
		default:
			return errors.WrapScanError(errors.CodeValidation, "invalid JSON", err)
		}
	}

	if err := validate.Struct(dest); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return errors.NewScanError(errors.CodeValidation,
				fmt.Sprintf("field %s failed on %q", fe.Field(), fe.Tag()))
		}
		return errors.WrapScanError(errors.CodeValidation, "invalid request", err)
	}
	return nil
}

// ipFromPath parses the {ip} path variable as an IPv4 address.
func ipFromPath(r *http.Request) (netip.Addr, error) {
	raw := mux.Vars(r)["ip"]
	ip, err := netip.ParseAddr(raw)
	if err != nil || !ip.Is4() {
		return netip.Addr{}, errors.ErrInvalidTarget(raw)
	}
	return ip, nil
}

// MethodNotAllowed answers requests whose path matched a route registered
// for other methods.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed,
		fmt.Errorf("method %s not allowed on %s", r.Method, r.URL.Path))
}

// NotFound answers requests that matched no route.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, fmt.Errorf("no route for %s", r.URL.Path))
}
