package handler

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/josh-kwaku/clinic-settlement/internal/domain"
)

func TestRespondDomainError_PersistenceDetailStaysInLog(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	inner := errors.New(`pq: relation "payments" does not exist`)
	err := domain.Persistence("insert payment", inner)

	rec := httptest.NewRecorder()
	RespondDomainError(rec, err)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env, _ := decodeEnvelope(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", env.Error.Code)
	assert.NotContains(t, rec.Body.String(), "pq:")
	assert.NotContains(t, rec.Body.String(), "insert payment")

	assert.Contains(t, logs.String(), "insert payment")
	assert.Contains(t, logs.String(), `pq: relation \"payments\" does not exist`)
}
