package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mdrrmo/evac-gateway/internal/core/domain"
	"github.com/mdrrmo/evac-gateway/internal/core/ports"
)

type stubRecordService struct {
	listFn   func(q ports.RecordQuery) (*ports.RecordListing, error)
	created  map[string]string
	updated  string
	deleted  string
	exportFn func(q ports.RecordQuery) ([]byte, string, error)
}

func (s *stubRecordService) List(_ context.Context, q ports.RecordQuery) (*ports.RecordListing, error) {
	return s.listFn(q)
}

func (s *stubRecordService) Create(_ context.Context, fields map[string]string) error {
	s.created = fields
	return nil
}

func (s *stubRecordService) Update(_ context.Context, dataID string, _ map[string]string) error {
	s.updated = dataID
	return nil
}

func (s *stubRecordService) Delete(_ context.Context, dataID string) error {
	s.deleted = dataID
	return nil
}

func (s *stubRecordService) ExportCSV(_ context.Context, q ports.RecordQuery) ([]byte, string, error) {
	return s.exportFn(q)
}

func TestRecordHandler_List_PassesQuery(t *testing.T) {
	e := echo.New()
	stub := &stubRecordService{
		listFn: func(q ports.RecordQuery) (*ports.RecordListing, error) {
			if q.Barangay != "San Isidro" || q.Search != "santos" {
				t.Fatalf("unexpected query: %+v", q)
			}
			return &ports.RecordListing{
				Header:     []string{domain.ColDataID},
				Households: []domain.Household{{DataID: "1", Head: domain.Row{domain.ColDataID: "1"}}},
				Stale:      true,
				FetchedAt:  time.Now(),
			}, nil
		},
	}
	h := NewRecordHandler(stub)

	req := httptest.NewRequest(http.MethodGet, "/v1/records?barangay=San+Isidro&q=santos", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["stale"] != true {
		t.Fatalf("stale flag lost: %+v", resp)
	}
}

func TestRecordHandler_Create_RequiresFields(t *testing.T) {
	e := echo.New()
	e.Validator = NewValidator()
	h := NewRecordHandler(&stubRecordService{})

	req := httptest.NewRequest(http.MethodPost, "/v1/records", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Create(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 HTTPError, got %v", err)
	}
}

func TestRecordHandler_Update(t *testing.T) {
	e := echo.New()
	e.Validator = NewValidator()
	stub := &stubRecordService{}
	h := NewRecordHandler(stub)

	body := strings.NewReader(`{"fields":{"Barangay":"Poblacion"}}`)
	req := httptest.NewRequest(http.MethodPut, "/v1/records/7", body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("data_id")
	c.SetParamValues("7")

	if err := h.Update(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if stub.updated != "7" {
		t.Fatalf("updated = %q, want 7", stub.updated)
	}
}

func TestRecordHandler_Export_SetsDisposition(t *testing.T) {
	e := echo.New()
	stub := &stubRecordService{
		exportFn: func(ports.RecordQuery) ([]byte, string, error) {
			return []byte("\"Data ID\"\r\n"), "mdrrmo_records_all.csv", nil
		},
	}
	h := NewRecordHandler(stub)

	req := httptest.NewRequest(http.MethodGet, "/v1/records/export", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Export(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if got := rec.Header().Get(echo.HeaderContentDisposition); !strings.Contains(got, "mdrrmo_records_all.csv") {
		t.Fatalf("disposition = %q", got)
	}
	if !strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), "text/csv") {
		t.Fatalf("content type = %q", rec.Header().Get(echo.HeaderContentType))
	}
}
