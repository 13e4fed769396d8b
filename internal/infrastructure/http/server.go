package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"forexsync/internal/application"
	"forexsync/internal/domain"
	"forexsync/internal/infrastructure/logx"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/oapi-codegen/runtime/types"
	"go.uber.org/zap"
)

type Server struct {
	svc  *application.FXRatesService
	ping func(ctx context.Context) error
}

func NewServer(svc *application.FXRatesService) *Server { return &Server{svc: svc} }

// SetReadyCheck installs the probe used by /readyz.
func (s *Server) SetReadyCheck(ping func(ctx context.Context) error) { s.ping = ping }

type syncResponse struct {
	JobID string `json:"job_id"`
	Kind  string `json:"kind"`
}

func (s *Server) RequestSync(w http.ResponseWriter, r *http.Request) {
	kind, err := application.ParseSyncKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	var months *int
	if err := runtime.BindQueryParameter("form", true, false, "months", r.URL.Query(), &months); err != nil {
		writeError(w, http.StatusBadRequest, "invalid months")
		return
	}
	var idem *string
	if k := r.Header.Get("X-Idempotency-Key"); k != "" {
		idem = &k
	}
	n := 0
	if months != nil {
		n = *months
	}
	id, err := s.svc.RequestSync(r.Context(), kind, n, idem)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, syncResponse{JobID: id, Kind: string(kind)})
}

func (s *Server) LatestRate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var from, to string
	var rateType *string
	if err := bindAll(q,
		binding{"from", true, &from},
		binding{"to", true, &to},
		binding{"rate_type", false, &rateType},
	); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rt := domain.RateTypeSpot
	if rateType != nil {
		parsed, err := domain.ParseRateType(*rateType)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		rt = parsed
	}
	e, err := s.svc.LatestRate(r.Context(), strings.ToUpper(from), strings.ToUpper(to), rt)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) RateHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		from, to, rateType *string
		fromDate, toDate   *types.Date
		limit              *int
	)
	if err := bindAll(q,
		binding{"from", false, &from},
		binding{"to", false, &to},
		binding{"rate_type", false, &rateType},
		binding{"from_date", false, &fromDate},
		binding{"to_date", false, &toDate},
		binding{"limit", false, &limit},
	); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var f domain.RateLogFilter
	if from != nil {
		f.From = strings.ToUpper(*from)
	}
	if to != nil {
		f.To = strings.ToUpper(*to)
	}
	if rateType != nil {
		rt, err := domain.ParseRateType(*rateType)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.RateType = rt
	}
	if fromDate != nil {
		f.FromDate = civil.DateOf(fromDate.Time)
	}
	if toDate != nil {
		f.ToDate = civil.DateOf(toDate.Time)
	}
	if limit != nil {
		f.Limit = *limit
	}
	entries, err := s.svc.RateHistory(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.RateLogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) SyncLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		syncType, status *string
		limit            *int
	)
	if err := bindAll(q,
		binding{"sync_type", false, &syncType},
		binding{"status", false, &status},
		binding{"limit", false, &limit},
	); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var f domain.SyncLogFilter
	if syncType != nil {
		f.SyncType = domain.SyncType(*syncType)
	}
	if status != nil {
		f.Status = domain.SyncStatus(*status)
	}
	if limit != nil {
		f.Limit = *limit
	}
	logs, err := s.svc.SyncLogs(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if logs == nil {
		logs = []domain.SyncAttempt{}
	}
	writeJSON(w, http.StatusOK, logs)
}

// settingsView never carries the API key itself.
type settingsView struct {
	domain.Settings
	APIKeyConfigured bool `json:"api_key_configured"`
}

type settingsRequest struct {
	domain.Settings
	APIKey string `json:"api_key"`
}

func (s *Server) GetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Settings(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsView{Settings: st, APIKeyConfigured: st.APIKey != ""})
}

func (s *Server) PutSettings(w http.ResponseWriter, r *http.Request) {
	var body settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	st := body.Settings
	st.APIKey = body.APIKey
	saved, err := s.svc.UpdateSettings(r.Context(), st)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsView{Settings: saved, APIKeyConfigured: saved.APIKey != ""})
}

func (s *Server) TestConnection(w http.ResponseWriter, r *http.Request) {
	var body struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := s.svc.TestConnection(r.Context(), body.APIKey)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) MarketSpot(w http.ResponseWriter, r *http.Request) {
	from, to, ok := pairParams(w, r)
	if !ok {
		return
	}
	q, err := s.svc.FetchSpot(r.Context(), from, to)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

type seriesPoint struct {
	Date civil.Date `json:"date"`
	domain.OHLC
}

type seriesView struct {
	From   string        `json:"from_currency"`
	To     string        `json:"to_currency"`
	Points []seriesPoint `json:"points"`
}

func (s *Server) MarketMonthly(w http.ResponseWriter, r *http.Request) {
	from, to, ok := pairParams(w, r)
	if !ok {
		return
	}
	series, err := s.svc.FetchMonthlySeries(r.Context(), from, to)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := seriesView{From: from, To: to, Points: make([]seriesPoint, 0, len(series.Points))}
	for _, d := range series.Dates() {
		out.Points = append(out.Points, seriesPoint{Date: d, OHLC: series.Points[d]})
	}
	writeJSON(w, http.StatusOK, out)
}

func pairParams(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	var from, to string
	if err := bindAll(r.URL.Query(), binding{"from", true, &from}, binding{"to", true, &to}); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", "", false
	}
	return strings.ToUpper(from), strings.ToUpper(to), true
}

type binding struct {
	name     string
	required bool
	dest     any
}

func bindAll(q url.Values, bs ...binding) error {
	for _, b := range bs {
		if err := runtime.BindQueryParameter("form", true, b.required, b.name, q, b.dest); err != nil {
			return err
		}
	}
	return nil
}

// fail maps service errors onto status codes.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ae *domain.APIError
		te *domain.TransportError
		me *domain.MalformedResponseError
		pe *domain.ParseError
	)
	switch {
	case errors.Is(err, application.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, application.ErrNotFound):
		writeError(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	case errors.Is(err, application.ErrConflict):
		writeError(w, http.StatusConflict, "sync already requested")
	case domain.IsConfigurationError(err):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &ae) && ae.RateLimited():
		writeError(w, http.StatusTooManyRequests, ae.Message)
	case errors.As(err, &ae), errors.As(err, &te), errors.As(err, &me), errors.As(err, &pe):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		rid, _ := r.Context().Value(requestIDKey).(string)
		logx.L().Error("http.internal_error", zap.Error(err), zap.String("request_id", rid))
		writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
