package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	s := NewServer(nil, WithHealthCheck("store", ok))
	rec := serve(s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	s = NewServer(nil, WithHealthCheck("store", ok), WithHealthCheck("redis", down))
	rec = serve(s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Data["store"])
	assert.Equal(t, "connection refused", resp.Data["redis"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := NewServer(nil, WithMetrics(prometheus.NewRegistry(), "/metrics"))
	serve(s, http.MethodGet, "/healthz", "")

	rec := serve(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/healthz",status="200"} 1`)
	assert.Contains(t, rec.Body.String(), "http_in_flight_requests")
}

type pageRequest struct {
	Limit int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=100"`
	Sort  string `query:"sort" json:"sort" default:"score" validate:"oneof=score wallet"`
}

type testHandler struct{}

func (testHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/items", func(c echo.Context) error {
		req := &pageRequest{}
		if verr := ReadAndValidateRequest(c, req); verr != nil {
			return BadRequestResponse(c, verr)
		}
		return SuccessResponse(c, req)
	})
	e.GET("/missing", func(c echo.Context) error {
		return AppErrorResponse(c, NotFoundError("no such item"))
	})
	e.GET("/boom", func(c echo.Context) error {
		return AppErrorResponse(c, errors.New("plain error"))
	})
}

func TestReadAndValidateRequest(t *testing.T) {
	s := NewServer(testHandler{})

	rec := serve(s, http.MethodGet, "/items", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var ok struct {
		Data pageRequest `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ok))
	assert.Equal(t, pageRequest{Limit: 50, Sort: "score"}, ok.Data)

	rec = serve(s, http.MethodGet, "/items?limit=500&sort=age", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var bad struct {
		Data []ValidationError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bad))
	require.Len(t, bad.Data, 2)
	assert.Equal(t, "ERR_LTE", bad.Data[0].Code)
	assert.Equal(t, "limit", bad.Data[0].Field)
	assert.Equal(t, "limit must be at most 100", bad.Data[0].Message)
	assert.Equal(t, "ERR_ONEOF", bad.Data[1].Code)
	assert.Equal(t, "sort", bad.Data[1].Field)

	rec = serve(s, http.MethodGet, "/items?limit=0", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bad))
	require.Len(t, bad.Data, 1)
	assert.Equal(t, "ERR_GTE", bad.Data[0].Code)

	rec = serve(s, http.MethodGet, "/items?limit=abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bad))
	require.Len(t, bad.Data, 1)
	assert.Equal(t, "ERR_MALFORMED", bad.Data[0].Code)
}

func TestAppErrorResponse(t *testing.T) {
	s := NewServer(testHandler{})

	rec := serve(s, http.MethodGet, "/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	var resp struct {
		Status int         `json:"status"`
		Data   []*AppError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusNotFound, resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "ERR_NOT_FOUND", resp.Data[0].Code)

	rec = serve(s, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestClientFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/big":
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		case "/fail":
			http.Error(w, "upstream down", http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(r.Header.Get("Accept")))
		}
	}))
	defer srv.Close()

	c := NewClient(WithHeader("Accept", "application/json"), WithMaxBody(16))
	var got []byte
	read := func(r io.Reader) error {
		var err error
		got, err = io.ReadAll(r)
		return err
	}

	require.NoError(t, c.Fetch(context.Background(), srv.URL+"/echo", read))
	assert.Equal(t, "application/json", string(got))

	err := c.Fetch(context.Background(), srv.URL+"/fail", read)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")

	assert.Error(t, c.Fetch(context.Background(), srv.URL+"/big", read))
}
