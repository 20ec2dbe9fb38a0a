package reachability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"streamup/httpc"
)

func TestProbeTransitions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	hc := httpc.New(httpc.DefaultConfig())
	defer hc.Close()

	var transitions []bool
	var tmu sync.Mutex
	p := New(Config{
		Target:   server.URL,
		Interval: 10 * time.Millisecond,
		Timeout:  time.Second,
	}, hc, func(online bool) {
		tmu.Lock()
		transitions = append(transitions, online)
		tmu.Unlock()
	}, nil)

	if !p.Online() {
		t.Fatal("prober must assume online before the first probe")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	// Healthy target: no transition, still online.
	time.Sleep(50 * time.Millisecond)
	if !p.Online() {
		t.Error("healthy target should keep the prober online")
	}
	tmu.Lock()
	if len(transitions) != 0 {
		t.Errorf("transitions = %v, want none while state is stable", transitions)
	}
	tmu.Unlock()
}

func TestProbeDetectsLossAndRegain(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	target := server.URL

	hc := httpc.New(httpc.DefaultConfig())
	defer hc.Close()

	ch := make(chan bool, 8)
	p := New(Config{
		Target:   target,
		Interval: 10 * time.Millisecond,
		Timeout:  time.Second,
	}, hc, func(online bool) { ch <- online }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	// Kill the server: the prober must flip to offline.
	server.Close()
	select {
	case online := <-ch:
		if online {
			t.Fatal("first transition should be to offline")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no offline transition observed")
	}
	if p.Online() {
		t.Error("Online() should report false after loss")
	}
}

func TestServerErrorStillCountsAsOnline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	hc := httpc.New(httpc.DefaultConfig())
	defer hc.Close()

	flipped := make(chan bool, 1)
	p := New(Config{
		Target:   server.URL,
		Interval: 10 * time.Millisecond,
		Timeout:  time.Second,
	}, hc, func(online bool) { flipped <- online }, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	p.Run(ctx)

	select {
	case <-flipped:
		t.Error("a 5xx answer proves the network path works; no transition expected")
	default:
	}
	if !p.Online() {
		t.Error("Online() should stay true on HTTP-level errors")
	}
}
