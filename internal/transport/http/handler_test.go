package httptransport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliamunaev/projection-pipeline/internal/app"
	"github.com/iliamunaev/projection-pipeline/internal/apperr"
	"github.com/iliamunaev/projection-pipeline/internal/model"
	"github.com/iliamunaev/projection-pipeline/internal/pipeline"
	"github.com/iliamunaev/projection-pipeline/internal/validate"
)

// --- stubs for unit tests ---

type stubEngine struct {
	mu        sync.Mutex
	lastRaw   model.RawScenario
	submitErr error
	batch     model.ComparisonBatchResult
	cmpErr    error
	step      pipeline.Step
}

func (s *stubEngine) Snapshot() app.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	step := s.step
	if step == 0 {
		step = pipeline.StepConfigure
	}
	return app.Snapshot{Step: step, Indicator: pipeline.Indicator(step)}
}

func (s *stubEngine) InputChanged(raw model.RawScenario) validate.Result {
	s.mu.Lock()
	s.lastRaw = raw
	s.mu.Unlock()
	return validate.Validate(raw)
}

func (s *stubEngine) Submit(_ context.Context, raw model.RawScenario) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRaw = raw
	if res := validate.Validate(raw); !res.Valid {
		return false, &apperr.ValidationError{Errors: res.Errors}
	}
	if s.submitErr != nil {
		return false, s.submitErr
	}
	s.step = pipeline.StepResults
	return true, nil
}

func (s *stubEngine) Compare(context.Context) (model.ComparisonBatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step = pipeline.StepComparison
	return s.batch, s.cmpErr
}

func (s *stubEngine) GoTo(step pipeline.Step) error {
	if !step.Valid() {
		return fmt.Errorf("pipeline: step %d out of range", int(step))
	}
	s.mu.Lock()
	s.step = step
	s.mu.Unlock()
	return nil
}

func do(t *testing.T, fn http.HandlerFunc, method, path, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	fn(w, req)

	var out Response
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

const validBody = `{"age":"30","retirement_age":"60","contribution":"10000","risk_profile":"moderate"}`

// --- unit tests (stub-based) ---

func TestHandlers_RequestValidation(t *testing.T) {
	t.Parallel()

	h := New(&stubEngine{})

	tests := []struct {
		name       string
		fn         http.HandlerFunc
		method     string
		body       string
		wantStatus int
		wantKind   string
	}{
		{name: "state_post", fn: h.HandleState, method: http.MethodPost, wantStatus: http.StatusMethodNotAllowed},
		{name: "submit_get", fn: h.HandleSubmit, method: http.MethodGet, wantStatus: http.StatusMethodNotAllowed},
		{name: "compare_get", fn: h.HandleCompare, method: http.MethodGet, wantStatus: http.StatusMethodNotAllowed},
		{name: "submit_invalid_json", fn: h.HandleSubmit, method: http.MethodPost, body: `{"age":`, wantStatus: http.StatusBadRequest, wantKind: "bad_request"},
		{name: "submit_unknown_field", fn: h.HandleSubmit, method: http.MethodPost, body: `{"salary":1}`, wantStatus: http.StatusBadRequest, wantKind: "bad_request"},
		{name: "submit_trailing_data", fn: h.HandleSubmit, method: http.MethodPost, body: validBody + `{}`, wantStatus: http.StatusBadRequest, wantKind: "bad_request"},
		{name: "step_out_of_range", fn: h.HandleStep, method: http.MethodPost, body: `{"step":5}`, wantStatus: http.StatusBadRequest, wantKind: "bad_request"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w, out := do(t, tt.fn, tt.method, "/", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantKind == "" {
				return
			}
			require.NotNil(t, out.Error)
			assert.Equal(t, tt.wantKind, out.Error.Kind)
		})
	}
}

func TestHandleState(t *testing.T) {
	t.Parallel()

	h := New(&stubEngine{step: pipeline.StepResults})
	w, out := do(t, h.HandleState, http.MethodGet, "/state", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	require.NotNil(t, out.State)
	assert.Equal(t, pipeline.StepResults, out.State.Step)
	require.Len(t, out.State.Indicator, 4)
	assert.Equal(t, pipeline.StatusCompleted, out.State.Indicator[0].Status)
}

func TestHandleScenario(t *testing.T) {
	t.Parallel()

	t.Run("valid_numbers_accepted", func(t *testing.T) {
		t.Parallel()
		eng := &stubEngine{}
		h := New(eng)

		w, out := do(t, h.HandleScenario, http.MethodPost, "/scenario",
			`{"age":30,"retirement_age":60,"contribution":10000,"risk_profile":"moderate"}`)
		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, "scheduled", out.Status)

		eng.mu.Lock()
		defer eng.mu.Unlock()
		assert.Equal(t, model.RawScenario{Age: "30", RetirementAge: "60", Contribution: "10000", RiskProfile: "moderate"}, eng.lastRaw)
	})

	t.Run("invalid", func(t *testing.T) {
		t.Parallel()
		h := New(&stubEngine{})

		w, out := do(t, h.HandleScenario, http.MethodPost, "/scenario",
			`{"age":"30","retirement_age":"60","contribution":"100","risk_profile":"moderate"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		require.NotNil(t, out.Error)
		assert.Equal(t, "validation", out.Error.Kind)
		assert.Equal(t, []string{validate.MsgContribution}, out.Error.Errors)
	})
}

func TestHandleSubmit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
		wantMsg    string
	}{
		{name: "ok", wantStatus: http.StatusOK},
		{name: "timeout", err: apperr.ErrTimeout, wantStatus: http.StatusGatewayTimeout, wantKind: "timeout", wantMsg: "Request timeout. Backend may not be running."},
		{name: "duplicate", err: apperr.ErrDuplicateRequest, wantStatus: http.StatusConflict, wantKind: "duplicate"},
		{name: "remote", err: &apperr.RemoteError{Status: 400, Detail: "bad age"}, wantStatus: http.StatusBadGateway, wantKind: "remote", wantMsg: "Backend error: bad age"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := New(&stubEngine{submitErr: tt.err})
			w, out := do(t, h.HandleSubmit, http.MethodPost, "/submit", validBody)

			assert.Equal(t, tt.wantStatus, w.Code)
			require.NotNil(t, out.State)
			if tt.err == nil {
				assert.Equal(t, "ok", out.Status)
				assert.Nil(t, out.Error)
				assert.Equal(t, pipeline.StepResults, out.State.Step)
				return
			}
			assert.Equal(t, "error", out.Status)
			require.NotNil(t, out.Error)
			assert.Equal(t, tt.wantKind, out.Error.Kind)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, out.Error.Message)
			}
			assert.Equal(t, pipeline.StepConfigure, out.State.Step)
		})
	}
}

func TestHandleCompare(t *testing.T) {
	t.Parallel()

	ok := model.ProjectionResult{Percentile50: 1}
	partial := model.ComparisonBatchResult{Entries: []model.ComparisonEntry{
		{Index: 0, Label: "Conservative", Status: "error", Kind: "timeout"},
		{Index: 1, Label: "Standard", Status: "ok", Result: &ok},
		{Index: 2, Label: "Optimistic", Status: "ok", Result: &ok},
	}}

	t.Run("partial", func(t *testing.T) {
		t.Parallel()
		h := New(&stubEngine{batch: partial})

		w, out := do(t, h.HandleCompare, http.MethodPost, "/compare", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "partial", out.Status)
		require.NotNil(t, out.Comparison)
		assert.Len(t, out.Comparison.Entries, 3)
		assert.Equal(t, pipeline.StepComparison, out.State.Step)
	})

	t.Run("busy", func(t *testing.T) {
		t.Parallel()
		h := New(&stubEngine{cmpErr: apperr.ErrBusy})

		w, out := do(t, h.HandleCompare, http.MethodPost, "/compare", "")
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Nil(t, out.Comparison)
		require.NotNil(t, out.Error)
		assert.Equal(t, "busy", out.Error.Kind)
	})

	t.Run("all_failed", func(t *testing.T) {
		t.Parallel()
		h := New(&stubEngine{cmpErr: apperr.ErrComparisonFailed})

		w, out := do(t, h.HandleCompare, http.MethodPost, "/compare", "")
		assert.Equal(t, http.StatusBadGateway, w.Code)
		require.NotNil(t, out.Error)
		assert.Equal(t, "comparison_failed", out.Error.Kind)
	})
}

func TestHandleStep(t *testing.T) {
	t.Parallel()

	h := New(&stubEngine{})
	w, out := do(t, h.HandleStep, http.MethodPost, "/step", `{"step":2}`)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, out.State)
	assert.Equal(t, pipeline.StepCalculate, out.State.Step)
}

func TestNew_NilEnginePanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for nil engine")
		}
	}()
	New(nil)
}

// --- integration test (real engine, fake service) ---

func TestRoutes_EndToEnd(t *testing.T) {
	t.Parallel()

	eval := evaluatorFunc(func(_ context.Context, s model.Scenario) (model.ProjectionResult, error) {
		return model.ProjectionResult{
			Percentile50:   float64(s.Contribution) * 500,
			MonthlyPension: 25000,
			LumpSum:        2000000,
			SuccessRate:    model.DefaultSuccessRate,
		}, nil
	})
	eng := app.NewEngine(app.Options{
		Evaluator:     eval,
		DebounceDelay: time.Hour,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(eng.Close)

	mux := http.NewServeMux()
	New(eng).Routes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	post := func(path, body string) Response {
		resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader([]byte(body)))
		require.NoError(t, err)
		defer resp.Body.Close()
		var out Response
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return out
	}

	out := post("/submit", validBody)
	assert.Equal(t, "ok", out.Status)
	require.NotNil(t, out.State.Dashboard)
	assert.Equal(t, 5000000.0, out.State.Dashboard.Corpus)
	assert.Equal(t, pipeline.StepResults, out.State.Step)

	out = post("/compare", "")
	assert.Equal(t, "ok", out.Status)
	require.NotNil(t, out.Comparison)
	require.Len(t, out.State.ComparisonRows, 3)
	assert.Equal(t, "Conservative", out.State.ComparisonRows[0].Label)
	assert.Equal(t, pipeline.StepComparison, out.State.Step)

	out = post("/step", `{"step":1}`)
	assert.Equal(t, pipeline.StepConfigure, out.State.Step)
}

type evaluatorFunc func(context.Context, model.Scenario) (model.ProjectionResult, error)

func (f evaluatorFunc) Evaluate(ctx context.Context, s model.Scenario) (model.ProjectionResult, error) {
	return f(ctx, s)
}
