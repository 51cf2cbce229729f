// Package httptransport exposes the projection engine over HTTP.
package httptransport

import (
	"context"
	"errors"
	"io"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/iliamunaev/projection-pipeline/internal/app"
	"github.com/iliamunaev/projection-pipeline/internal/model"
	"github.com/iliamunaev/projection-pipeline/internal/pipeline"
	"github.com/iliamunaev/projection-pipeline/internal/validate"
)

type engine interface {
	Snapshot() app.Snapshot
	InputChanged(raw model.RawScenario) validate.Result
	Submit(ctx context.Context, raw model.RawScenario) (bool, error)
	Compare(ctx context.Context) (model.ComparisonBatchResult, error)
	GoTo(step pipeline.Step) error
}

// Response is the envelope of every API reply.
type Response struct {
	Status     string                       `json:"status"`
	State      *app.Snapshot                `json:"state,omitempty"`
	Comparison *model.ComparisonBatchResult `json:"comparison,omitempty"`
	Error      *model.ErrorPayload          `json:"error,omitempty"`
}

// Handler serves the engine API.
type Handler struct {
	engine engine
}

// New returns a Handler for e.
//
// It panics if e is nil.
func New(e engine) *Handler {
	if e == nil {
		panic("httptransport.New: nil engine")
	}
	return &Handler{engine: e}
}

// Routes registers the API on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/state", h.HandleState)
	mux.HandleFunc("/scenario", h.HandleScenario)
	mux.HandleFunc("/submit", h.HandleSubmit)
	mux.HandleFunc("/compare", h.HandleCompare)
	mux.HandleFunc("/step", h.HandleStep)
}

// HandleState returns the current snapshot.
func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	h.writeState(w, http.StatusOK, "ok", nil)
}

// HandleScenario reports an input change. A valid scenario is scheduled for
// evaluation after the debounce delay and answered with 202.
func (h *Handler) HandleScenario(w http.ResponseWriter, r *http.Request) {
	raw, ok := decodeScenario(w, r)
	if !ok {
		return
	}

	res := h.engine.InputChanged(raw)
	if !res.Valid {
		h.writeState(w, http.StatusUnprocessableEntity, "error", validationError(res.Errors))
		return
	}
	h.writeState(w, http.StatusAccepted, "scheduled", nil)
}

// HandleSubmit evaluates a scenario immediately.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	raw, ok := decodeScenario(w, r)
	if !ok {
		return
	}

	_, err := h.engine.Submit(r.Context(), raw)
	if err != nil {
		h.writeState(w, httpStatus(err), "error", err)
		return
	}
	h.writeState(w, http.StatusOK, "ok", nil)
}

// HandleCompare runs the benchmark comparison for the current scenario.
func (h *Handler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	batch, err := h.engine.Compare(r.Context())
	snap := h.engine.Snapshot()
	resp := Response{Status: "ok", State: &snap}
	if len(batch.Entries) > 0 {
		resp.Comparison = &batch
	}
	if batch.Partial() {
		resp.Status = "partial"
	}
	if err != nil {
		resp.Status = "error"
		resp.Error = app.ErrorPayload(err)
	}
	writeJSON(w, httpStatus(err), resp)
}

type stepRequest struct {
	Step int `json:"step"`
}

// HandleStep moves the pipeline to the requested step.
func (h *Handler) HandleStep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req stepRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.engine.GoTo(pipeline.Step(req.Step)); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{
			Status: "error",
			Error:  &model.ErrorPayload{Kind: "bad_request", Message: err.Error()},
		})
		return
	}
	h.writeState(w, http.StatusOK, "ok", nil)
}

func (h *Handler) writeState(w http.ResponseWriter, status int, label string, err error) {
	snap := h.engine.Snapshot()
	writeJSON(w, status, Response{
		Status: label,
		State:  &snap,
		Error:  app.ErrorPayload(err),
	})
}

// scenarioRequest accepts each field as a JSON string or number.
type scenarioRequest struct {
	Age           rawField `json:"age"`
	RetirementAge rawField `json:"retirement_age"`
	Contribution  rawField `json:"contribution"`
	RiskProfile   rawField `json:"risk_profile"`
}

// rawField keeps the text of a string or number exactly as sent.
type rawField string

func (f *rawField) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = rawField(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = rawField(n.String())
	return nil
}

func decodeScenario(w http.ResponseWriter, r *http.Request) (model.RawScenario, bool) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return model.RawScenario{}, false
	}
	var req scenarioRequest
	if !decodeBody(w, r, &req) {
		return model.RawScenario{}, false
	}
	return model.RawScenario{
		Age:           string(req.Age),
		RetirementAge: string(req.RetirementAge),
		Contribution:  string(req.Contribution),
		RiskProfile:   string(req.RiskProfile),
	}, true
}

// decodeBody reads exactly one JSON value into v, answering 400 otherwise.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeBadRequest(w)
		return false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		writeBadRequest(w)
		return false
	}
	return true
}

func writeBadRequest(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, Response{
		Status: "error",
		Error:  &model.ErrorPayload{Kind: "bad_request", Message: "invalid JSON"},
	})
}

// writeJSON writes v as a JSON response with the given status code.
// The Content-Type is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
