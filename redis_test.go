package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newTestRelay(t *testing.T) (*RedisRelay, *Hub, *redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	rdb := redis.NewClient(&redis.Options{
		Addr:            mr.Addr(),
		Protocol:        2,
		DisableIdentity: true,
		MaxRetries:      -1,
	})
	t.Cleanup(func() { rdb.Close() })

	hub := NewHub(zap.NewNop(), NewStore(zap.NewNop()).Get)
	relay := NewRedisRelay(rdb, "esp32_test", hub, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := relay.Start(ctx); err != nil {
		t.Fatalf("start relay: %v", err)
	}
	return relay, hub, rdb, mr
}

func nextBroadcast(t *testing.T, hub *Hub) []byte {
	t.Helper()
	select {
	case msg := <-hub.broadcast:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for broadcast")
		return nil
	}
}

func TestRedisRelay_PublishReachesHub(t *testing.T) {
	relay, hub, _, _ := newTestRelay(t)

	current, ts := 0.8, "2025-06-01 12:30:00"
	want := Reading{Current: &current, Timing: json.RawMessage(`{"cycle":3}`), Timestamp: &ts}
	if err := relay.Publish(context.Background(), want); err != nil {
		t.Fatalf("publish: %v", err)
	}

	var got Reading
	if err := json.Unmarshal(nextBroadcast(t, hub), &got); err != nil {
		t.Fatalf("decoding broadcast: %v", err)
	}
	if got.Current == nil || *got.Current != current {
		t.Errorf("expected current %v, got %+v", current, got)
	}
	if got.Voltage != nil {
		t.Errorf("expected null voltage, got %v", *got.Voltage)
	}
	if string(got.Timing) != `{"cycle":3}` {
		t.Errorf("unexpected timing %s", got.Timing)
	}
	if got.Timestamp == nil || *got.Timestamp != ts {
		t.Errorf("expected timestamp %s, got %v", ts, got.Timestamp)
	}
}

func TestRedisRelay_SkipsUndecodablePayloads(t *testing.T) {
	relay, hub, rdb, _ := newTestRelay(t)
	ctx := context.Background()

	if err := rdb.Publish(ctx, "esp32_test", "not json").Err(); err != nil {
		t.Fatalf("publish garbage: %v", err)
	}
	voltage := 12.0
	if err := relay.Publish(ctx, Reading{Voltage: &voltage}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	var got Reading
	if err := json.Unmarshal(nextBroadcast(t, hub), &got); err != nil {
		t.Fatalf("expected only the valid reading to be forwarded: %v", err)
	}
	if got.Voltage == nil || *got.Voltage != voltage {
		t.Errorf("expected voltage %v, got %+v", voltage, got)
	}
}

func TestRedisRelay_StartFailsWithoutServer(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		Protocol:    2,
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	relay := NewRedisRelay(rdb, "esp32_test", NewHub(zap.NewNop(), NewStore(zap.NewNop()).Get), zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := relay.Start(ctx); err == nil {
		t.Fatal("expected error subscribing without a server")
	}
}

func TestRedisRelay_RedisDownStillReachesLocalHub(t *testing.T) {
	relay, hub, _, mr := newTestRelay(t)
	logger := zap.NewNop()
	store := NewStore(logger)

	srv := httptest.NewServer(newServer(store, relay, logger).routes(hub, t.TempDir()))
	defer srv.Close()

	mr.Close()

	resp, err := http.Post(srv.URL+"/api/esp32-data", "application/json", strings.NewReader(`{"current": 2.5}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with redis down, got %d", resp.StatusCode)
	}

	var got Reading
	if err := json.Unmarshal(nextBroadcast(t, hub), &got); err != nil {
		t.Fatalf("decoding broadcast: %v", err)
	}
	if got.Current == nil || *got.Current != 2.5 {
		t.Errorf("expected current 2.5 on local hub, got %+v", got)
	}
}
