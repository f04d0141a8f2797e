package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"carelink-backend/internal/middleware"
	"carelink-backend/internal/websocket"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHandlerDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func shiftColumns() []string {
	return []string{
		"id", "company_id", "client_id", "carer_id",
		"scheduled_start", "scheduled_end", "actual_start", "actual_end",
		"status", "check_in_location", "check_out_location",
		"review_required", "review_reason", "created_at", "updated_at",
	}
}

// punchRequestFor builds an authenticated check-out request with the chi
// route parameter and user claims wired into the context
func punchRequestFor(shiftID string, claims middleware.UserClaims, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/carer/shifts/"+shiftID+"/check-out", strings.NewReader(body))

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", shiftID)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = context.WithValue(ctx, middleware.UserContextKey, claims)

	return req.WithContext(ctx)
}

func carerClaims() middleware.UserClaims {
	return middleware.UserClaims{
		UserID:    "carer-1",
		Email:     "carer@example.com",
		Role:      "carer",
		CompanyID: "company-1",
	}
}

func TestCheckOutShift_CompletedShiftIsConflict(t *testing.T) {
	db, mock := setupHandlerDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT \* FROM shifts WHERE id = \$1 AND company_id = \$2`).
		WithArgs("shift-1", "company-1").
		WillReturnRows(sqlmock.NewRows(shiftColumns()).
			AddRow("shift-1", "company-1", "client-1", "carer-1",
				1000, 2000, 1000, 2000,
				"completed", nil, nil,
				false, nil, 1000, 2000))

	handler := CheckOutShift(db, websocket.NewHub(), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, punchRequestFor("shift-1", carerClaims(), ""))

	assert.Equal(t, http.StatusConflict, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckOutShift_WrongCarerIsForbidden(t *testing.T) {
	db, mock := setupHandlerDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT \* FROM shifts WHERE id = \$1 AND company_id = \$2`).
		WithArgs("shift-1", "company-1").
		WillReturnRows(sqlmock.NewRows(shiftColumns()).
			AddRow("shift-1", "company-1", "client-1", "someone-else",
				1000, 2000, nil, nil,
				"in_progress", nil, nil,
				false, nil, 1000, 1000))

	handler := CheckOutShift(db, websocket.NewHub(), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, punchRequestFor("shift-1", carerClaims(), ""))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckOutShift_UnknownShiftIsNotFound(t *testing.T) {
	db, mock := setupHandlerDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT \* FROM shifts WHERE id = \$1 AND company_id = \$2`).
		WithArgs("shift-9", "company-1").
		WillReturnRows(sqlmock.NewRows(shiftColumns()))

	handler := CheckOutShift(db, websocket.NewHub(), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, punchRequestFor("shift-9", carerClaims(), ""))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckOutShift_MalformedLocationIsRejected(t *testing.T) {
	db, mock := setupHandlerDB(t)
	defer db.Close()

	// Latitude out of range: rejected before any database access
	body := `{"location": {"latitude": 123.0, "longitude": 0, "accuracy": 5}}`

	handler := CheckOutShift(db, websocket.NewHub(), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, punchRequestFor("shift-1", carerClaims(), body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckInShift_CancelledShiftIsConflict(t *testing.T) {
	db, mock := setupHandlerDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT \* FROM shifts WHERE id = \$1 AND company_id = \$2`).
		WithArgs("shift-1", "company-1").
		WillReturnRows(sqlmock.NewRows(shiftColumns()).
			AddRow("shift-1", "company-1", "client-1", "carer-1",
				1000, 2000, nil, nil,
				"cancelled", nil, nil,
				false, nil, 1000, 1000))

	req := punchRequestFor("shift-1", carerClaims(), "")
	req.URL.Path = "/api/carer/shifts/shift-1/check-in"

	handler := CheckInShift(db, websocket.NewHub())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckOutShift_MissingClaimsIsUnauthorized(t *testing.T) {
	db, _ := setupHandlerDB(t)
	defer db.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/carer/shifts/shift-1/check-out", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "shift-1")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	handler := CheckOutShift(db, websocket.NewHub(), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
