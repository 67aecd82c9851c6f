package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dashboard/internal/api"
	"dashboard/internal/models"
	"dashboard/internal/source"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func testHandler() *api.Handler {
	return api.NewHandler(api.Config{
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		SessionTTL: time.Minute,
		Clock:      clockwork.NewFakeClock(),
	})
}

func writeCSV(t *testing.T, body string) source.Reader {
	t.Helper()
	path := filepath.Join(t.TempDir(), "census.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return &source.CSV{Path: path}
}

func TestLoadSchemaErrorIsReturned(t *testing.T) {
	t.Parallel()

	reader := writeCSV(t, "year,age,ethnicity,sex,area,count\n2018,0-14,Maori,Male,Otago,lots\n")
	err := load(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)), reader, testHandler(), source.KindCSV)

	var se *models.SchemaError
	require.ErrorAs(t, err, &se)
	require.Equal(t, 0, se.Row)
}

func TestLoadReadErrorIsReturned(t *testing.T) {
	t.Parallel()

	reader := &source.CSV{Path: filepath.Join(t.TempDir(), "missing.csv")}
	err := load(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)), reader, testHandler(), source.KindCSV)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadPublishesStore(t *testing.T) {
	t.Parallel()

	h := testHandler()
	reader := writeCSV(t, "year,age,ethnicity,sex,area,count\n2018,0-14,Maori,Male,Otago,3\n")
	require.NoError(t, load(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)), reader, h, source.KindCSV))

	e := echo.New()
	e.JSONSerializer = api.JSONSerializer{}
	h.RegisterRoutes(e)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/options", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestWaitReturnsBackgroundFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("dataset load failed")
	errCh := make(chan error, 1)
	errCh <- boom
	require.ErrorIs(t, wait(context.Background(), errCh), boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, wait(ctx, make(chan error)))
}
