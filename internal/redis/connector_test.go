package redis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/MrSnakeDoc/georegistry/internal/logger"
)

func testOptions(addr string) ConnectOptions {
	return ConnectOptions{
		Addr:           addr,
		ConnectTimeout: 300 * time.Millisecond,
		RetryInterval:  20 * time.Millisecond,
		MaxWait:        50 * time.Millisecond,
		PingTimeout:    50 * time.Millisecond,
		WarnThreshold:  1,
	}
}

func TestNewConnects(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := New(context.Background(), testOptions(mr.Addr()), logger.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = client.Close() }()

	if _, err := Ping(context.Background(), client, time.Second); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestNewTimesOut(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(context.Background(), testOptions(addr), logger.Nop())
	if err == nil {
		t.Fatal("New() should fail when redis is down")
	}
	if !strings.Contains(err.Error(), addr) {
		t.Errorf("error %q should name the address", err)
	}
}

func TestNewValidatesOptions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ConnectOptions)
	}{
		{"zero retry interval", func(o *ConnectOptions) { o.RetryInterval = 0 }},
		{"zero ping timeout", func(o *ConnectOptions) { o.PingTimeout = 0 }},
		{"negative warn threshold", func(o *ConnectOptions) { o.WarnThreshold = -1 }},
		{"empty address", func(o *ConnectOptions) { o.Addr = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions("localhost:6379")
			tt.mutate(&opts)
			if _, err := New(context.Background(), opts, logger.Nop()); err == nil {
				t.Error("New() should reject the options")
			}
		})
	}
}

func TestBackoffCaps(t *testing.T) {
	bo := backoff{wait: 10 * time.Millisecond, max: 35 * time.Millisecond}
	want := []time.Duration{10, 20, 35, 35}
	for i, w := range want {
		if got := bo.next(); got != w*time.Millisecond {
			t.Errorf("next() #%d = %v, want %v", i, got, w*time.Millisecond)
		}
	}
}

func TestTargetHidesPassword(t *testing.T) {
	opts := ConnectOptions{Addr: "cache:6379", User: "geo", Password: "s3cret", RedisDB: 2}
	if got := opts.target(); got != "geo@cache:6379/2" {
		t.Errorf("target() = %q", got)
	}
}
