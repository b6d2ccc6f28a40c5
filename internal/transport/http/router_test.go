package httptransport_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"metrology/internal/audit"
	auditapi "metrology/internal/audit/handler"
	"metrology/internal/checks"
	checksapi "metrology/internal/checks/handler"
	checkservice "metrology/internal/checks/service"
	"metrology/internal/directory"
	directoryapi "metrology/internal/directory/handler"
	"metrology/internal/domain"
	"metrology/internal/instrument"
	instrumentapi "metrology/internal/instrument/handler"
	instrumentservice "metrology/internal/instrument/service"
	"metrology/internal/lookup"
	lookupapi "metrology/internal/lookup/handler"
	"metrology/internal/projection"
	projectionapi "metrology/internal/projection/handler"
	"metrology/internal/store/memdb"
	httptransport "metrology/internal/transport/http"
)

// APISuite drives the full HTTP surface against the in-memory stack, the
// same wiring main uses when DATABASE_URL is unset.
type APISuite struct {
	suite.Suite

	server *httptest.Server
}

func (s *APISuite) SetupTest() {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := memdb.New()

	dirStore := directory.NewMemoryStore(db)
	instrStore := instrument.NewMemoryStore(db)
	checksStore := checks.NewMemoryStore(db)
	auditStore := audit.NewMemoryStore(db)
	recorder := audit.NewRecorder(auditStore, nil)

	instrSvc := instrumentservice.New(instrStore, recorder, db, nil, log)
	checksSvc := checkservice.New(checksStore, recorder, db, nil, log)
	refresher := projection.NewRefresher(checksStore, projection.NewMemoryCache(), nil, log)

	router := httptransport.NewRouter(log, nil,
		directoryapi.New(dirStore, log),
		instrumentapi.New(instrSvc, log),
		checksapi.New(checksSvc, log),
		projectionapi.New(refresher, log),
		auditapi.New(auditStore, log),
		lookupapi.New(lookup.NewMemoryStore(db), log),
	)
	s.server = httptest.NewServer(router)
}

func (s *APISuite) TearDownTest() {
	s.server.Close()
}

func (s *APISuite) do(method, path string, body any) *http.Response {
	t := s.T()
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func (s *APISuite) decode(resp *http.Response, wantStatus int, out any) {
	t := s.T()
	t.Helper()
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, wantStatus, resp.StatusCode, "body: %s", payload)
	if out != nil {
		require.NoError(t, json.Unmarshal(payload, out))
	}
}

func (s *APISuite) post(path string, body, out any) {
	s.decode(s.do(http.MethodPost, path, body), http.StatusCreated, out)
}

type idDoc struct {
	ID domain.ID `json:"id"`
}

// seedInstrument walks the API through directory and instrument setup and
// returns the ids the checks tests need.
func (s *APISuite) seedInstrument() (instrumentID, modelID, labID domain.ID) {
	var unit, loc, lab, instType, model, inst idDoc

	s.post("/api/v1/org-units", map[string]any{"code": "TSEKH-1", "name": "Assembly shop"}, &unit)
	s.post("/api/v1/locations", map[string]any{"org_unit_id": unit.ID, "code": "A-101", "name": "Line A"}, &loc)
	s.post("/api/v1/labs", map[string]any{"code": "LAB-1", "name": "Metrology lab"}, &lab)
	s.post("/api/v1/instrument-types", map[string]any{"code": "MANOMETER", "name": "Pressure gauge"}, &instType)
	s.post("/api/v1/instrument-models", map[string]any{
		"instrument_type_id": instType.ID,
		"manufacturer":       "Metran",
		"model_name":         "MP3-U",
	}, &model)
	s.post("/api/v1/instruments", map[string]any{
		"model_id":     model.ID,
		"inventory_no": "INV-001",
		"org_unit_id":  unit.ID,
		"location_id":  loc.ID,
	}, &inst)
	return inst.ID, model.ID, lab.ID
}

func (s *APISuite) TestHealthEndpoints() {
	t := s.T()

	resp := s.do(http.MethodGet, "/healthz", nil)
	s.decode(resp, http.StatusOK, nil)

	resp = s.do(http.MethodGet, "/readyz", nil)
	s.decode(resp, http.StatusOK, nil)

	resp = s.do(http.MethodGet, "/metrics", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func (s *APISuite) TestCheckLifecycleOverHTTP() {
	t := s.T()
	instrumentID, modelID, labID := s.seedInstrument()

	var checkType idDoc
	s.post("/api/v1/check-types", map[string]any{
		"code": "VERIF-ANNUAL",
		"name": "Annual verification",
		"kind": "VERIFICATION",
	}, &checkType)

	s.post("/api/v1/check-requirements", map[string]any{
		"model_id":        modelID,
		"check_type_id":   checkType.ID,
		"interval_months": 12,
	}, nil)

	var event struct {
		ID          domain.ID `json:"id"`
		NextDueDate *string   `json:"next_due_date"`
	}
	s.post("/api/v1/check-events", map[string]any{
		"instrument_id": instrumentID,
		"check_type_id": checkType.ID,
		"check_date":    "2025-03-10",
		"result":        "PASSED",
		"lab_id":        labID,
	}, &event)
	require.NotNil(t, event.NextDueDate)
	assert.Equal(t, "2026-03-10T00:00:00Z", *event.NextDueDate)

	var generated struct {
		Inserted int `json:"inserted"`
	}
	resp := s.do(http.MethodPost, "/api/v1/check-plans/generate", map[string]any{
		"from": "2026-03-01",
		"to":   "2026-03-31",
	})
	s.decode(resp, http.StatusOK, &generated)
	assert.Equal(t, 1, generated.Inserted)

	var plans []struct {
		ID       domain.ID `json:"id"`
		DueDate  string    `json:"due_date"`
		StatusID domain.ID `json:"status_id"`
	}
	resp = s.do(http.MethodGet, "/api/v1/check-plans?instrument_id="+instrumentID.String(), nil)
	s.decode(resp, http.StatusOK, &plans)
	require.Len(t, plans, 1)
	assert.Equal(t, "2026-03-10T00:00:00Z", plans[0].DueDate)

	var trail []struct {
		Action    string `json:"action"`
		TableName string `json:"table_name"`
	}
	resp = s.do(http.MethodGet, "/api/v1/audit?table=check_plan", nil)
	s.decode(resp, http.StatusOK, &trail)
	require.NotEmpty(t, trail)
	assert.Equal(t, "INSERT", trail[0].Action)
	assert.Equal(t, "check_plan", trail[0].TableName)
}

func (s *APISuite) TestDecommissionOverHTTP() {
	t := s.T()
	instrumentID, _, _ := s.seedInstrument()

	path := fmt.Sprintf("/api/v1/instruments/%s/decommission", instrumentID)
	resp := s.do(http.MethodPost, path, map[string]any{"reason": "beyond economical repair"})
	var inst struct {
		DecommissionedAt *string `json:"decommissioned_at"`
	}
	s.decode(resp, http.StatusOK, &inst)
	assert.NotNil(t, inst.DecommissionedAt)

	resp = s.do(http.MethodPost, path, map[string]any{"reason": "again"})
	var errBody struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	s.decode(resp, http.StatusConflict, &errBody)
	assert.Equal(t, "consistency_violation", errBody.Error.Code)
}

func (s *APISuite) TestValidationErrorsSurfaceAsBadRequest() {
	t := s.T()

	resp := s.do(http.MethodPost, "/api/v1/org-units", map[string]any{"name": "no code"})
	var errBody struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	s.decode(resp, http.StatusBadRequest, &errBody)
	assert.Equal(t, "validation", errBody.Error.Code)

	resp = s.do(http.MethodGet, "/api/v1/instruments/not-a-uuid", nil)
	s.decode(resp, http.StatusBadRequest, nil)
}

func (s *APISuite) TestLookupEndpoints() {
	t := s.T()

	var statuses []struct {
		Code string `json:"code"`
	}
	resp := s.do(http.MethodGet, "/api/v1/lookups/instrument-statuses", nil)
	s.decode(resp, http.StatusOK, &statuses)
	codes := make([]string, 0, len(statuses))
	for _, row := range statuses {
		codes = append(codes, row.Code)
	}
	assert.ElementsMatch(t, []string{"ACTIVE", "IN_REPAIR", "DECOMMISSIONED", "REPLACED"}, codes)

	var results []struct {
		Code      string `json:"code"`
		IsSuccess bool   `json:"is_success"`
	}
	resp = s.do(http.MethodGet, "/api/v1/lookups/check-results", nil)
	s.decode(resp, http.StatusOK, &results)
	require.Len(t, results, 3)

	resp = s.do(http.MethodGet, "/api/v1/lookups/nope", nil)
	s.decode(resp, http.StatusNotFound, nil)
}

func (s *APISuite) TestProjectionEndpoints() {
	t := s.T()

	resp := s.do(http.MethodGet, "/api/v1/projections/due_30d", nil)
	s.decode(resp, http.StatusNotFound, nil)

	resp = s.do(http.MethodPost, "/api/v1/projections/refresh", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	var snapshot struct {
		Name string `json:"name"`
	}
	resp = s.do(http.MethodGet, "/api/v1/projections/due_30d", nil)
	s.decode(resp, http.StatusOK, &snapshot)
	assert.Equal(t, "due_30d", snapshot.Name)

	resp = s.do(http.MethodGet, "/api/v1/instruments-due", nil)
	s.decode(resp, http.StatusOK, nil)
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}
