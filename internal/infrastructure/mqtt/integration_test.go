//go:build integration

package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/infrastructure/config"
)

// Requires a broker on 127.0.0.1:1883:
//
//	go test -tags=integration -count=1 ./internal/infrastructure/mqtt/...

func brokerConfig(clientID string) config.MQTTConfig {
	cfg := testConfig()
	cfg.Broker.ClientID = clientID
	return cfg
}

func mustConnect(t *testing.T, clientID string) *Client {
	t.Helper()
	c, err := Connect(brokerConfig(clientID))
	if err != nil {
		t.Fatalf("Connect(%s) error = %v", clientID, err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestIntegration_Roundtrip(t *testing.T) {
	pub := mustConnect(t, "cardcore-int-pub")
	sub := mustConnect(t, "cardcore-int-sub")

	topic := Topics{}.IODigitalInput(3)
	got := make(chan string, 4)
	if err := sub.Subscribe(topic, 1, func(_ string, p []byte) error {
		got <- string(p)
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := pub.Publish(topic, []byte("1"), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	select {
	case p := <-got:
		if p != "1" {
			t.Errorf("payload = %q, want 1", p)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no message within 5s")
	}
}

func TestIntegration_SubscriptionBookkeeping(t *testing.T) {
	c := mustConnect(t, "cardcore-int-subs")
	topics := Topics{}
	filters := []string{topics.AllDigitalInputs(), topics.AllAnalogInputs(), topics.Command()}

	for _, f := range filters {
		if err := c.Subscribe(f, 1, func(string, []byte) error { return nil }); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", f, err)
		}
	}
	if n := c.SubscriptionCount(); n != len(filters) {
		t.Fatalf("SubscriptionCount() = %d, want %d", n, len(filters))
	}

	if err := c.Unsubscribe(filters[0]); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if c.HasSubscription(filters[0]) || !c.HasSubscription(filters[1]) {
		t.Error("replay set does not match subscriptions after Unsubscribe")
	}
}

// TestIntegration_RetainedStatus checks that a late subscriber sees the
// controller online, then offline once it closes.
func TestIntegration_RetainedStatus(t *testing.T) {
	ctrl, err := Connect(brokerConfig("cardcore-int-status"))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	watcher := mustConnect(t, "cardcore-int-watcher")

	statuses := make(chan string, 4)
	if err := watcher.Subscribe(Topics{}.SystemStatus(), 1, func(_ string, p []byte) error {
		var body struct {
			Status   string `json:"status"`
			ClientID string `json:"client_id"`
		}
		if err := json.Unmarshal(p, &body); err != nil {
			return err
		}
		if body.ClientID == "cardcore-int-status" {
			statuses <- body.Status
		}
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	want := func(status string) {
		t.Helper()
		select {
		case got := <-statuses:
			if got != status {
				t.Errorf("status = %q, want %q", got, status)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("no %q status within 5s", status)
		}
	}
	want("online")
	ctrl.Close() //nolint:errcheck // always nil
	want("offline")
}

func TestIntegration_ConnectWithRetry(t *testing.T) {
	client, err := ConnectWithRetry(context.Background(), brokerConfig("cardcore-int-retry"), &mockLogger{})
	if err != nil {
		t.Fatalf("ConnectWithRetry() error = %v", err)
	}
	client.Close()

	cfg := brokerConfig("cardcore-int-retry-closed")
	cfg.Broker.Port = 19998
	cfg.Reconnect.MaxAttempts = 2
	logger := &mockLogger{}
	_, err = ConnectWithRetry(context.Background(), cfg, logger)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("ConnectWithRetry() error = %v, want ErrConnectionFailed", err)
	}
	if len(logger.warns) != 2 {
		t.Errorf("warns = %d, want 2", len(logger.warns))
	}
}
