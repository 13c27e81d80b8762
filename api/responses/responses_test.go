package responses

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/courier-dispatch/pkg/errors"
	"github.com/angelmondragon/courier-dispatch/pkg/logger"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var envelope ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Error
}

func TestWriteErrorMapsDomainCodes(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{pkgerrors.New(pkgerrors.CodeInvalidTransition, "order status change not allowed"), http.StatusUnprocessableEntity, "INVALID_TRANSITION"},
		{pkgerrors.New(pkgerrors.CodeAlreadyAssigned, "delivery already has a courier"), http.StatusConflict, "ALREADY_ASSIGNED"},
		{pkgerrors.New(pkgerrors.CodeForbidden, "actor may not change this order"), http.StatusForbidden, "FORBIDDEN"},
		{pkgerrors.New(pkgerrors.CodeConflict, "transaction retries exhausted"), http.StatusConflict, "CONFLICT"},
		{errors.New("raw"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		WriteError(t.Context(), logger.Nop(), rec, tc.err)
		assert.Equal(t, tc.status, rec.Code, tc.code)
		assert.Equal(t, tc.code, decodeError(t, rec).Code)
	}
}

func TestWriteErrorHidesInternalMessages(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(t.Context(), logger.Nop(), rec, pkgerrors.New(pkgerrors.CodeConflict, "version 4 moved on"))
	body := decodeError(t, rec)
	assert.Equal(t, "concurrent update conflict", body.Message)
	assert.Nil(t, body.Details)
}

func TestWriteErrorIncludesAllowedDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeInvalidTransition, "order status change not allowed").
		WithDetails(map[string]any{"from": "PENDING", "to": "READY"})
	WriteError(t.Context(), logger.Nop(), rec, err)

	body := decodeError(t, rec)
	assert.Equal(t, "order status change not allowed", body.Message)
	assert.Equal(t, map[string]any{"from": "PENDING", "to": "READY"}, body.Details)
}

func TestWriteSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccessStatus(rec, http.StatusCreated, map[string]string{"id": "abc"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"data":{"id":"abc"}}`, rec.Body.String())
}

func TestWriteErrorEchoesRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set(RequestIDHeader, "req-42")
	WriteError(t.Context(), logger.Nop(), rec, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
	body := decodeError(t, rec)
	assert.Equal(t, "req-42", body.RequestID)
	assert.Equal(t, "order not found", body.Message)
}
