package web

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func Test_ParseIntParam(t *testing.T) {
	testCases := []struct {
		name         string
		value        string
		expectedOK   bool
		expectedID   int
		expectedCode int
		expectedBody string
	}{
		{name: "Success", value: "42", expectedOK: true, expectedID: 42, expectedCode: http.StatusOK},
		{name: "Error - not a number", value: "abc", expectedCode: http.StatusBadRequest, expectedBody: `{"error":"Invalid productId: abc"}`},
		{name: "Error - zero", value: "0", expectedCode: http.StatusBadRequest, expectedBody: `{"error":"Invalid productId: 0"}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			var gotID int
			var gotOK bool
			router := chi.NewRouter()
			router.Get("/items/{productId}", func(w http.ResponseWriter, r *http.Request) {
				gotID, gotOK = ParseIntParam(w, r, discard, "productId")
			})
			rr := httptest.NewRecorder()

			// when
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/items/"+tc.value, nil))

			// then
			assert.Equal(t, tc.expectedOK, gotOK)
			assert.Equal(t, tc.expectedID, gotID)
			assert.Equal(t, tc.expectedCode, rr.Code)
			if tc.expectedBody != "" {
				assert.JSONEq(t, tc.expectedBody, rr.Body.String())
			}
		})
	}
}

func Test_ParseOptionalGte(t *testing.T) {
	testCases := []struct {
		name       string
		query      string
		expected   int64
		expectedOK bool
	}{
		{name: "missing uses default", query: "", expected: 7, expectedOK: true},
		{name: "valid", query: "?after=3", expected: 3, expectedOK: true},
		{name: "negative", query: "?after=-1", expectedOK: false},
		{name: "garbage", query: "?after=x", expectedOK: false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/notifications"+tc.query, nil)

			got, ok := ParseOptionalGte(req, rr, discard, "after", 0, 7)

			assert.Equal(t, tc.expectedOK, ok)
			if tc.expectedOK {
				assert.Equal(t, tc.expected, got)
			} else {
				assert.Equal(t, http.StatusBadRequest, rr.Code)
			}
		})
	}
}

func Test_RequestIDInjector(t *testing.T) {
	// given
	var seen string
	handler := RequestIDInjector(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.GetReqID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.RequestIDHeader, "inbound-id")
	rr := httptest.NewRecorder()

	// when
	handler.ServeHTTP(rr, req)

	// then
	assert.Equal(t, "inbound-id", seen)
	assert.Equal(t, "inbound-id", rr.Header().Get(middleware.RequestIDHeader))
}

func Test_RequestIDInjector_GeneratesID(t *testing.T) {
	var seen string
	handler := RequestIDInjector(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.GetReqID(r.Context())
	}))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rr.Header().Get(middleware.RequestIDHeader))
}

func Test_Recoverer(t *testing.T) {
	// given
	handler := Recoverer(discard)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()

	// when
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	// then
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func Test_RespondJSON_NilPayload(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondJSON(rr, discard, http.StatusNoContent, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())
}
