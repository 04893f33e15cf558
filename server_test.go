package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"i4.energy/across/loragw/modem"
)

// stubService stands in for the gateway behind the HTTP surface.
type stubService struct {
	enqueued []UplinkJob
	full     bool
	status   GatewayStatus
	downlink *modem.DownlinkMessage
}

func (s *stubService) Enqueue(job UplinkJob) (string, error) {
	if s.full {
		return "", ErrQueueFull
	}
	if job.ID == "" {
		job.ID = "test-id"
	}
	s.enqueued = append(s.enqueued, job)
	return job.ID, nil
}

func (s *stubService) Status() (GatewayStatus, error) {
	return s.status, nil
}

func (s *stubService) LastDownlink() *modem.DownlinkMessage {
	return s.downlink
}

func newTestServer(service *stubService, token string) http.Handler {
	logger := logrus.New()
	logger.SetOutput(&strings.Builder{})
	server := &Server{Logger: logger, Service: service, Token: token}
	return server.Routes()
}

func TestHandleUplink(t *testing.T) {
	t.Run("Queues a payload", func(t *testing.T) {
		service := &stubService{}
		handler := newTestServer(service, "")

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/uplink",
			strings.NewReader(`{"payload":"hello"}`))
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusAccepted, rec.Code)

		var resp map[string]string
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "queued", resp["status"])
		assert.NotEmpty(t, resp["id"])

		require.Len(t, service.enqueued, 1)
		assert.Equal(t, "hello", service.enqueued[0].Payload)
	})

	t.Run("Rejects missing payload", func(t *testing.T) {
		service := &stubService{}
		handler := newTestServer(service, "")

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/uplink", strings.NewReader(`{}`))
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, service.enqueued)
	})

	t.Run("Rejects bad JSON", func(t *testing.T) {
		service := &stubService{}
		handler := newTestServer(service, "")

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/uplink", strings.NewReader(`{`))
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Full queue is 503", func(t *testing.T) {
		service := &stubService{full: true}
		handler := newTestServer(service, "")

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/uplink",
			strings.NewReader(`{"payload":"hello"}`))
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestBearerAuth(t *testing.T) {
	t.Run("Missing token is 401", func(t *testing.T) {
		handler := newTestServer(&stubService{}, "secret")

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/uplink",
			strings.NewReader(`{"payload":"hello"}`))
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Wrong token is 401", func(t *testing.T) {
		handler := newTestServer(&stubService{}, "secret")

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/uplink",
			strings.NewReader(`{"payload":"hello"}`))
		req.Header.Set("Authorization", "Bearer wrong")
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Correct token passes", func(t *testing.T) {
		handler := newTestServer(&stubService{}, "secret")

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/uplink",
			strings.NewReader(`{"payload":"hello"}`))
		req.Header.Set("Authorization", "Bearer secret")
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusAccepted, rec.Code)
	})

	t.Run("Liveness probe skips auth", func(t *testing.T) {
		handler := newTestServer(&stubService{}, "secret")

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestHandleStatus(t *testing.T) {
	service := &stubService{
		status: GatewayStatus{
			Identity:     modem.Identity{Manufacturer: "ASR", ModelRevision: "v4.3", SerialNumber: "00A1B2C3D4"},
			JoinState:    "joined",
			ModuleStatus: "no data operation",
			QueueDepth:   2,
		},
	}
	handler := newTestServer(service, "")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var status GatewayStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, "ASR", status.Identity.Manufacturer)
	assert.Equal(t, "joined", status.JoinState)
	assert.Equal(t, 2, status.QueueDepth)
}

func TestHandleDownlink(t *testing.T) {
	t.Run("Nothing yet is 204", func(t *testing.T) {
		handler := newTestServer(&stubService{}, "")

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/downlink", nil)
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("Returns the last downlink", func(t *testing.T) {
		service := &stubService{
			downlink: &modem.DownlinkMessage{MsgType: 1, Port: 2, Length: 4, Payload: "deadbeef"},
		}
		handler := newTestServer(service, "")

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/downlink", nil)
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]any
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "deadbeef", resp["payload"])
		assert.Equal(t, float64(2), resp["port"])
	})
}
