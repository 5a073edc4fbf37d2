package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAPI(t *testing.T) (*httptest.Server, *atomic.Value) {
	t.Helper()
	lastAuth := &atomic.Value{}
	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			lastAuth.Store(c.Request().Header.Get("Authorization"))
			return next(c)
		}
	})
	e.POST("/api/v1/auth/login", func(c echo.Context) error {
		var req map[string]string
		_ = c.Bind(&req)
		if req["password"] != "pw" {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusOK, echo.Map{
			"user":    echo.Map{"id": "u1", "email": req["email"], "role": "owner"},
			"access":  echo.Map{"token": "tok-1", "expires": "2030-01-01T00:00:00Z"},
			"refresh": echo.Map{"token": "ref-1", "expires": "2030-01-14T00:00:00Z"},
		})
	})
	e.POST("/api/v1/auth/logout", func(c echo.Context) error { return c.JSON(http.StatusOK, echo.Map{"success": true}) })
	e.GET("/api/v1/auth/session", func(c echo.Context) error {
		if c.Request().Header.Get("Authorization") == "" {
			return c.JSON(http.StatusOK, echo.Map{"user": nil})
		}
		return c.JSON(http.StatusOK, echo.Map{"user": echo.Map{"id": "u1", "email": "o@x.io", "role": "owner"}})
	})
	e.GET("/api/v1/reports", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"reports": []echo.Map{{"id": "r1", "title": "T", "client_id": c.QueryParam("client_id")}}})
	})
	e.GET("/api/v1/reports/:id/metrics", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"report_id": c.Param("id"), "metrics": []echo.Map{{"id": "m1", "electricity_usage": 120.5}}})
	})
	e.GET("/api/v1/reports/:id/file", func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="Q1_audit.pdf"`)
		return c.Blob(http.StatusOK, "application/pdf", []byte("%PDF"))
	})
	e.POST("/api/v1/owner/reports", func(c echo.Context) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "file required"})
		}
		f, _ := fh.Open()
		defer f.Close()
		body, _ := io.ReadAll(f)
		return c.JSON(http.StatusCreated, echo.Map{"id": "r2", "title": c.FormValue("title") + ":" + fh.Filename + ":" + string(body), "client_id": c.FormValue("client_id")})
	})
	e.POST("/api/v1/owner/reports/:id/metrics", func(c echo.Context) error {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "electricity_usage: must be a number", "field": "electricity_usage"})
	})
	e.POST("/functions/v1/chat", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"reply": "hello"}})
	})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv, lastAuth
}

func TestClient_LoginKeepsToken(t *testing.T) {
	srv, seen := newAPI(t)
	c := New(srv.URL + "/")
	ctx := context.Background()

	u, err := c.Session(ctx)
	require.NoError(t, err)
	assert.Nil(t, u)

	resp, err := c.Login(ctx, "o@x.io", "pw")
	require.NoError(t, err)
	assert.Equal(t, "ref-1", resp.Refresh.Token)
	assert.Equal(t, "tok-1", c.Token())

	u, err = c.Session(ctx)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "owner", string(u.Role))
	assert.Equal(t, "Bearer tok-1", seen.Load())

	require.NoError(t, c.Logout(ctx))
	assert.Empty(t, c.Token())
}

func TestClient_ErrorsCarryStatus(t *testing.T) {
	srv, _ := newAPI(t)
	c := New(srv.URL)

	_, err := c.Login(context.Background(), "o@x.io", "bad")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.Empty(t, c.Token())

	_, err = c.AddMetric(context.Background(), "r1", MetricValues{ElectricityUsage: "x"})
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "electricity_usage", ae.Field)
	assert.Contains(t, ae.Error(), "must be a number")
}

func TestClient_ReportsAndMetrics(t *testing.T) {
	srv, _ := newAPI(t)
	c := New(srv.URL)
	ctx := context.Background()

	reps, err := c.ListReports(ctx, "u 2")
	require.NoError(t, err)
	require.Len(t, reps, 1)
	assert.Equal(t, "u 2", reps[0].ClientID)

	ms, err := c.ListMetrics(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, 120.5, ms[0].ElectricityUsage)

	var buf bytes.Buffer
	name, err := c.DownloadReport(ctx, "r1", &buf)
	require.NoError(t, err)
	assert.Equal(t, "Q1_audit.pdf", name)
	assert.Equal(t, "%PDF", buf.String())
}

func TestClient_UploadReport(t *testing.T) {
	srv, _ := newAPI(t)
	c := New(srv.URL)

	rep, err := c.UploadReport(context.Background(), "Audit", "", "u1", "a.pdf", bytes.NewReader([]byte("data")))
	require.NoError(t, err)
	assert.Equal(t, "Audit:a.pdf:data", rep.Title)
	assert.Equal(t, "u1", rep.ClientID)
}

func TestClient_Chat(t *testing.T) {
	srv, _ := newAPI(t)
	reply, err := New(srv.URL).Chat(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", reply)
}
