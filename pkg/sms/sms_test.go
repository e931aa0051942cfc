package sms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/diagnosis/seat-reservations/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewaySend(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"SMSMessageData":{"Message":"Sent to 1/1","Recipients":[{"number":"+2348000000000","status":"Success"}]}}`))
	}))
	defer srv.Close()

	g := NewGateway(srv.URL, "sandbox", "key-1", "HALL")
	require.NoError(t, g.Send(context.Background(), "+2348000000000", "Ticket AB12CD34"))

	assert.Equal(t, "key-1", got.Header.Get("apiKey"))
	assert.Equal(t, "sandbox", got.PostForm.Get("username"))
	assert.Equal(t, "+2348000000000", got.PostForm.Get("to"))
	assert.Equal(t, "HALL", got.PostForm.Get("from"))
}

func TestGatewayRejectedRecipient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"SMSMessageData":{"Recipients":[{"number":"+1","status":"InvalidPhoneNumber"}]}}`))
	}))
	defer srv.Close()

	err := NewGateway(srv.URL, "u", "k", "").Send(context.Background(), "+1", "hi")
	assert.ErrorContains(t, err, "InvalidPhoneNumber")
}

func TestGatewayHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewGateway(srv.URL, "u", "k", "").Send(context.Background(), "+1", "hi")
	assert.ErrorContains(t, err, "status=401")
}

func TestNewFallsBackToDev(t *testing.T) {
	assert.IsType(t, &DevSender{}, New(config.SMSConfig{DevMode: false, APIKey: ""}))
	assert.IsType(t, &Gateway{}, New(config.SMSConfig{APIKey: "k", APIURL: "http://x"}))
}
