package server

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSONSetsContentTypeAndBody(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, 202, RenderResponse{RequestID: "abc", StreamURL: "/hls/stream.m3u8"})

	assert.Equal(t, 202, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got RenderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "abc", got.RequestID)
}

func TestWriteErrorWrapsMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, 400, "bad request")

	var got ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "bad request", got.Error)
	assert.Equal(t, 400, rec.Code)
}
