package channel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yajasvikhanna/Flytbase/internal/config"
	"github.com/yajasvikhanna/Flytbase/internal/domain"
	"github.com/yajasvikhanna/Flytbase/internal/pkg/errors"
	"github.com/yajasvikhanna/Flytbase/internal/pkg/worker"
)

type wsFixture struct {
	hub    *Hub
	server *httptest.Server
}

func newWSFixture(t *testing.T, snapshot SnapshotFunc, authorize AuthorizeFunc) *wsFixture {
	t.Helper()
	pools, err := worker.NewPools(context.Background(), worker.DefaultPoolConfig())
	require.NoError(t, err)
	t.Cleanup(pools.Shutdown)

	hub := NewHub(config.ChannelConfig{SubscriberBuffer: 16}, authorize)
	t.Cleanup(hub.Shutdown)
	ws := NewWSServer(hub, snapshot, pools, config.ChannelConfig{
		WriteTimeout: time.Second,
		PingInterval: time.Minute,
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The org would normally come from the JWT middleware.
		ws.Handle(w, r, r.Header.Get("X-Test-Org"))
	}))
	t.Cleanup(server.Close)
	return &wsFixture{hub: hub, server: server}
}

func (f *wsFixture) dial(t *testing.T, org string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"X-Test-Org": {org}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebsocketSubscribeAndReceive(t *testing.T) {
	f := newWSFixture(t, nil, nil)
	conn := f.dial(t, "org-1")

	require.NoError(t, conn.WriteJSON(clientFrame{Action: "subscribe", Topic: "org:org-1"}))
	require.Eventually(t, func() bool {
		return f.hub.SubscriberCount(domain.OrgTopic("org-1")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	f.hub.Publish(domain.OrgTopic("org-1"), domain.EventDroneUpdate,
		domain.DroneUpdateEvent{DroneID: "d-1", Status: domain.DroneAvailable, BatteryLevel: 88})

	msg := readMessage(t, conn)
	assert.Equal(t, domain.EventDroneUpdate, msg.Event)
	assert.Equal(t, domain.OrgTopic("org-1"), msg.Topic)
}

func TestWebsocketInitialSnapshotOnMissionSubscribe(t *testing.T) {
	snapshot := func(ctx context.Context, missionID string) (domain.MissionStatusEvent, error) {
		return domain.MissionStatusEvent{MissionID: missionID, Status: domain.MissionInProgress, Progress: 40}, nil
	}
	authorize := func(ctx context.Context, organizationID string, topic domain.Topic) error {
		return nil
	}
	f := newWSFixture(t, snapshot, authorize)
	conn := f.dial(t, "org-1")

	require.NoError(t, conn.WriteJSON(clientFrame{Action: "subscribe", Topic: "mission:m-1"}))

	msg := readMessage(t, conn)
	assert.Equal(t, domain.EventMissionStatus, msg.Event)
	payload, ok := msg.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "m-1", payload["mission_id"])
	assert.Equal(t, float64(40), payload["progress"])
}

func TestWebsocketForbiddenTopicGetsErrorEvent(t *testing.T) {
	f := newWSFixture(t, nil, nil)
	offender := f.dial(t, "org-1")
	bystander := f.dial(t, "org-2")

	require.NoError(t, bystander.WriteJSON(clientFrame{Action: "subscribe", Topic: "org:org-2"}))
	require.Eventually(t, func() bool {
		return f.hub.SubscriberCount(domain.OrgTopic("org-2")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// org-1 trying to observe org-2's topic.
	require.NoError(t, offender.WriteJSON(clientFrame{Action: "subscribe", Topic: "org:org-2"}))

	msg := readMessage(t, offender)
	assert.Equal(t, domain.EventError, msg.Event)
	payload, ok := msg.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, payload["message"], errors.CodeTopicForbidden)

	// The bystander saw nothing.
	require.NoError(t, bystander.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	var stray Message
	err := bystander.ReadJSON(&stray)
	assert.Error(t, err, "error events must not broadcast, got %+v", stray)
}

func TestWebsocketUnsubscribe(t *testing.T) {
	f := newWSFixture(t, nil, nil)
	conn := f.dial(t, "org-1")

	require.NoError(t, conn.WriteJSON(clientFrame{Action: "subscribe", Topic: "site:north-field"}))
	require.Eventually(t, func() bool {
		return f.hub.SubscriberCount(domain.SiteTopic("north-field")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(clientFrame{Action: "unsubscribe", Topic: "site:north-field"}))
	require.Eventually(t, func() bool {
		return f.hub.SubscriberCount(domain.SiteTopic("north-field")) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebsocketDisconnectCleansUp(t *testing.T) {
	f := newWSFixture(t, nil, nil)
	conn := f.dial(t, "org-1")

	require.NoError(t, conn.WriteJSON(clientFrame{Action: "subscribe", Topic: "org:org-1"}))
	require.Eventually(t, func() bool {
		return f.hub.SubscriberCount(domain.OrgTopic("org-1")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return f.hub.SubscriberCount(domain.OrgTopic("org-1")) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
