package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReplyWithError(t *testing.T) {
	for _, tc := range []struct {
		err  error
		code int
	}{
		{ErrBadRequest, http.StatusBadRequest},
		{fmt.Errorf("channel abc: %w", ErrBadRequest), http.StatusBadRequest},
		{ErrNotFound, http.StatusNotFound},
		{ErrAlreadyExists, http.StatusConflict},
		{fmt.Errorf("channel abc: %w", ErrAlreadyExists), http.StatusConflict},
		{ErrStorageError, http.StatusInternalServerError},
		{errors.New("anything else"), http.StatusInternalServerError},
	} {
		rec := httptest.NewRecorder()
		ReplyWithError(rec, tc.err)

		require.Equal(t, tc.code, rec.Code, tc.err.Error())
		require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

		var resp ErrorResponse
		require.Nil(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, tc.err.Error(), resp.Msg)
	}
}
