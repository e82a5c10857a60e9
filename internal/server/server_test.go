package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"paypal-billing/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type mockPaypalService struct {
	mock.Mock
}

func (m *mockPaypalService) HandleWebhook(ctx context.Context, headers http.Header, body []byte) (service.Outcome, error) {
	args := m.Called(ctx, headers, body)
	return args.Get(0).(service.Outcome), args.Error(1)
}

func (m *mockPaypalService) HandleIPN(ctx context.Context, body []byte) (service.Outcome, error) {
	args := m.Called(ctx, body)
	return args.Get(0).(service.Outcome), args.Error(1)
}

func TestRoutes(t *testing.T) {
	svc := &mockPaypalService{}
	svc.On("HandleWebhook", mock.Anything, mock.Anything, mock.Anything).Return(service.Outcome{Status: service.StatusProcessed}, nil)
	svc.On("HandleIPN", mock.Anything, mock.Anything).Return(service.Outcome{Status: service.StatusIgnored}, nil)
	h := NewServer(zap.NewNop(), "s3cret", svc).Handler()

	cases := []struct {
		method string
		target string
		body   string
		want   int
	}{
		{http.MethodGet, "/api/health", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodPost, "/api/paypal/webhook?key=s3cret", `{"id":"WH-1"}`, http.StatusOK},
		{http.MethodPost, "/api/paypal/webhook?key=wrong", `{"id":"WH-1"}`, http.StatusBadRequest},
		{http.MethodPost, "/api/paypal/ipn?key=s3cret", "txn_id=1", http.StatusOK},
		{http.MethodPost, "/api/paypal/ipn", "txn_id=1", http.StatusBadRequest},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.target, strings.NewReader(tc.body))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, tc.want, rec.Code, tc.method+" "+tc.target)
	}

	svc.AssertNumberOfCalls(t, "HandleWebhook", 1)
	svc.AssertNumberOfCalls(t, "HandleIPN", 1)
}
