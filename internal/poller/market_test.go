package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sniperctl/internal/models"
)

// fakeSource отдаёт ответы по номеру вызова
type fakeSource struct {
	mu    sync.Mutex
	calls int
	fn    func(call int) (*models.MarketSnapshot, error)
}

func (f *fakeSource) Market(ctx context.Context) (*models.MarketSnapshot, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	return f.fn(call)
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeSink фиксирует действия поллера и сигналит о каждом из них
type fakeSink struct {
	mu       sync.Mutex
	applied  []*models.MarketSnapshot
	offline  int
	activity chan string
}

func newFakeSink() *fakeSink {
	return &fakeSink{activity: make(chan string, 32)}
}

func (f *fakeSink) Apply(s *models.MarketSnapshot) {
	f.mu.Lock()
	f.applied = append(f.applied, s)
	f.mu.Unlock()
	f.activity <- "apply"
}

func (f *fakeSink) MarkOffline() {
	f.mu.Lock()
	f.offline++
	f.mu.Unlock()
	f.activity <- "offline"
}

func waitActivity(t *testing.T, sink *fakeSink, want string) {
	t.Helper()
	select {
	case got := <-sink.activity:
		if got != want {
			t.Fatalf("Expected %s, got %s", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Timed out waiting for %s", want)
	}
}

func TestMarketPoller_FailureDoesNotStopLoop(t *testing.T) {
	source := &fakeSource{fn: func(call int) (*models.MarketSnapshot, error) {
		if call == 1 {
			return nil, &models.TransientError{Err: errors.New("connection refused")}
		}
		return &models.MarketSnapshot{Symbol: "BTC/USDT"}, nil
	}}
	sink := newFakeSink()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewMarketPoller(source, sink, 5*time.Millisecond)
	go p.Run(ctx)

	// Первый тик падает, но цикл перепланируется и второй тик доносит снапшот
	waitActivity(t, sink, "offline")
	waitActivity(t, sink, "apply")

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.offline != 1 {
		t.Errorf("Expected 1 offline mark, got %d", sink.offline)
	}
	if len(sink.applied) == 0 || sink.applied[0].Symbol != "BTC/USDT" {
		t.Error("Expected recovered snapshot applied after transient failure")
	}
}

func TestMarketPoller_StopsOnCancel(t *testing.T) {
	source := &fakeSource{fn: func(call int) (*models.MarketSnapshot, error) {
		return &models.MarketSnapshot{}, nil
	}}
	sink := newFakeSink()

	ctx, cancel := context.WithCancel(context.Background())
	p := NewMarketPoller(source, sink, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	waitActivity(t, sink, "apply")
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Poller did not stop after context cancellation")
	}

	calls := source.callCount()
	time.Sleep(30 * time.Millisecond)
	if got := source.callCount(); got != calls {
		t.Errorf("Poller kept polling after cancel: %d -> %d calls", calls, got)
	}
}

func TestMarketPoller_ForceRefreshWakesLoop(t *testing.T) {
	source := &fakeSource{fn: func(call int) (*models.MarketSnapshot, error) {
		return &models.MarketSnapshot{}, nil
	}}
	sink := newFakeSink()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Интервал заведомо больше таймаута теста: второй тик возможен
	// только через ForceRefresh
	p := NewMarketPoller(source, sink, time.Hour)
	go p.Run(ctx)

	waitActivity(t, sink, "apply")
	p.ForceRefresh()
	waitActivity(t, sink, "apply")
}

func TestMarketPoller_SingleFlight(t *testing.T) {
	var inFlight, maxInFlight int32
	source := &fakeSource{fn: func(call int) (*models.MarketSnapshot, error) {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			seen := atomic.LoadInt32(&maxInFlight)
			if cur <= seen || atomic.CompareAndSwapInt32(&maxInFlight, seen, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return &models.MarketSnapshot{}, nil
	}}
	sink := newFakeSink()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// Интервал короче длительности запроса: фиксированный тикер дал бы
	// перекрытие, самоперепланирование - нет
	p := NewMarketPoller(source, sink, time.Millisecond)
	p.Run(ctx)

	if got := atomic.LoadInt32(&maxInFlight); got > 1 {
		t.Errorf("Expected at most 1 in-flight request, got %d", got)
	}
}
