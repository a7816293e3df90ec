package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSendSuccess(t *testing.T) {
	var gotBody []byte
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	body, err := json.Marshal(map[string]string{"userid": "u1"})
	require.NoError(t, err)

	client := NewClient(time.Second)
	require.NoError(t, client.Send(context.Background(), srv.URL, body))
	require.Equal(t, "application/json", gotContentType)
	require.JSONEq(t, `{"userid":"u1"}`, string(gotBody))
}

func TestSendNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(time.Second)
	err := client.Send(context.Background(), srv.URL, []byte(`{}`))

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
	require.Contains(t, statusErr.Error(), "503")
}

func TestSendTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	url := srv.URL
	srv.Close() // connection refused from here on

	client := NewClient(time.Second)
	err := client.Send(context.Background(), url, []byte(`{}`))

	require.Error(t, err)
	var statusErr *StatusError
	require.False(t, errors.As(err, &statusErr))
}
