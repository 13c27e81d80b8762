package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/courier-dispatch/pkg/errors"
)

type locationBody struct {
	Latitude  *float64 `json:"lat" validate:"required,latitude"`
	Longitude *float64 `json:"lon" validate:"required,longitude"`
}

func TestDecodeJSONBodyValidates(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"lat": 120, "lon": 10}`))
	var body locationBody
	err := DecodeJSONBody(httptest.NewRecorder(), req, &body)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be a latitude between -90 and 90", details["lat"])
}

func TestDecodeJSONBodyKeysNestedFieldsByPath(t *testing.T) {
	type line struct {
		Quantity int `json:"quantity" validate:"min=1"`
	}
	type orderBody struct {
		Items []line `json:"items" validate:"required,dive"`
	}
	var body orderBody
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"items": [{"quantity": 2}, {"quantity": 0}]}`))
	err := DecodeJSONBody(httptest.NewRecorder(), req, &body)
	require.Error(t, err)

	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"items[1].quantity": "must be at least 1"}, details)
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"lat": 1, "lon": 2, "alt": 3}`))
	var body locationBody
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(DecodeJSONBody(httptest.NewRecorder(), req, &body)))
}

func TestDecodeJSONBodyRejectsEmptyAndOversized(t *testing.T) {
	var body locationBody
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	err := DecodeJSONBody(httptest.NewRecorder(), req, &body)
	require.Error(t, err)
	assert.Equal(t, "request body is required", pkgerrors.As(err).Message())

	big := `{"lat": 1, "lon": 2, "pad": "` + strings.Repeat("x", maxBodyBytes) + `"}`
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
	err = DecodeJSONBody(httptest.NewRecorder(), req, &body)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestParseQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500&unreadOnly=yes", nil)
	_, err := ParseQueryInt(req, "limit", 20, 1, 100)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
	_, err = ParseQueryBool(req, "unreadOnly")
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	req = httptest.NewRequest(http.MethodGet, "/?unreadOnly=true", nil)
	limit, err := ParseQueryInt(req, "limit", 20, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 20, limit)
	unread, err := ParseQueryBool(req, "unreadOnly")
	require.NoError(t, err)
	assert.True(t, unread)
}

func TestParseQueryUUID(t *testing.T) {
	id := uuid.New()
	got, err := ParseQueryUUID(httptest.NewRequest(http.MethodGet, "/?orderId="+id.String(), nil), "orderId")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, *got)

	got, err = ParseQueryUUID(httptest.NewRequest(http.MethodGet, "/", nil), "orderId")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = ParseQueryUUID(httptest.NewRequest(http.MethodGet, "/?orderId=42", nil), "orderId")
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("orderId", id.String())
	routeCtx.URLParams.Add("bad", "nope")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	parsed, err := ParseUUIDParam(req, "orderId")
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseUUIDParam(req, "bad")
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}
