package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"sniperctl/internal/models"
	"sniperctl/internal/session"
)

// newTestClient поднимает httptest-сервер и аутентифицированный клиент к нему
func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *session.Session) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	guard := session.New(srv.Client(), nil, nil)
	if err := guard.SetToken("test-token"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	return New(srv.URL, guard, srv.Client()), guard
}

func TestMarket_DecodesSnapshot(t *testing.T) {
	payload := `{
		"symbol": "BTC/USDT",
		"is_running": true,
		"is_testnet": true,
		"trader_name": "tester",
		"paper_balance": 1000.5,
		"real_balance": 42.0,
		"accumulated_pnl": 12.3,
		"risk_pct": 10,
		"active_trade": {"symbol": "BTC/USDT", "side": "BUY", "entry_price": 50000},
		"trade_history": [{"symbol": "BTC/USDT", "profit_usd": 5.5}],
		"wins": 3,
		"losses": 1,
		"win_rate": 75.0,
		"total_trades": 4,
		"is_scanning": true,
		"scanning_look": "LONG",
		"auth_status": {"has_name": true, "has_telegram": true},
		"data_5m": {"price": 50100, "rsi": 55.5},
		"data_1h": {"price": 50050},
		"status_display": "IN POSITION"
	}`

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/market" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("expected bearer token, got %q", got)
		}
		w.Write([]byte(payload))
	})

	snap, err := c.Market(context.Background())
	if err != nil {
		t.Fatalf("Market: %v", err)
	}

	if snap.Symbol != "BTC/USDT" || !snap.Running || !snap.IsTestnet {
		t.Errorf("core fields not mapped: %+v", snap)
	}
	if snap.Balances.Paper != 1000.5 || snap.Balances.Real != 42.0 || snap.Balances.AccumulatedPnl != 12.3 {
		t.Errorf("balances not mapped: %+v", snap.Balances)
	}
	if snap.ActiveTrade == nil || snap.ActiveTrade.EntryPrice != 50000 {
		t.Errorf("active trade not mapped: %+v", snap.ActiveTrade)
	}
	if len(snap.History) != 1 || snap.History[0].ProfitUsd != 5.5 {
		t.Errorf("history not mapped: %+v", snap.History)
	}
	if snap.Counters.Wins != 3 || snap.Counters.TotalTrades != 4 {
		t.Errorf("counters not mapped: %+v", snap.Counters)
	}
	if snap.Primary.Price != 50100 || snap.Macro.Price != 50050 {
		t.Errorf("timeframes not mapped: primary %+v macro %+v", snap.Primary, snap.Macro)
	}
	if snap.Connection != models.ConnectionConnected {
		t.Errorf("expected connected status, got %s", snap.Connection)
	}
	if snap.ReceivedAt.IsZero() {
		t.Error("expected ReceivedAt stamped")
	}
}

func TestMarket_MissingHistoryBecomesEmptySlice(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol": "BTC/USDT"}`))
	})

	snap, err := c.Market(context.Background())
	if err != nil {
		t.Fatalf("Market: %v", err)
	}
	if snap.History == nil {
		t.Error("expected non-nil history slice")
	}
}

func TestMarket_ServerErrorIsTransient(t *testing.T) {
	c, guard := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Market(context.Background())
	if !models.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	// Серверный сбой не разлогинивает
	if !guard.Authenticated() {
		t.Error("session must survive a 5xx response")
	}
}

func TestMarket_MalformedPayloadIsTransient(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	})

	_, err := c.Market(context.Background())
	if !models.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestMarket_SessionExpiredInvalidates(t *testing.T) {
	c, guard := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.Market(context.Background())
	if !models.IsSessionExpired(err) {
		t.Fatalf("expected session expired error, got %v", err)
	}
	if guard.Authenticated() {
		t.Error("expected session invalidated after 401")
	}
}

func TestMarket_UnauthenticatedSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	guard := session.New(srv.Client(), nil, nil)
	c := New(srv.URL, guard, srv.Client())

	_, err := c.Market(context.Background())
	if !errors.Is(err, models.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no network calls, got %d", calls.Load())
	}
}

func TestCommand_RejectionNormalized(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "message": "bot is busy"}`))
	})

	err := c.Start(context.Background())
	var rejected *models.CommandRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected CommandRejectedError, got %v", err)
	}
	if rejected.Message != "bot is busy" {
		t.Errorf("expected server message surfaced, got %q", rejected.Message)
	}
}

func TestCommand_IsRunningCountsAsSuccess(t *testing.T) {
	// Endpoint'ы start/stop не возвращают поле success
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"is_running": true}`))
	})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestCommand_Non200WithoutBodyIsRejection(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	err := c.Liquidate(context.Background())
	var rejected *models.CommandRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected CommandRejectedError, got %v", err)
	}
}

func TestSwitchMode_ReturnsServerBalance(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/switch_mode" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"success": true, "message": "switched", "new_balance": 777.77}`))
	})

	balance, msg, err := c.SwitchMode(context.Background(), true)
	if err != nil {
		t.Fatalf("SwitchMode: %v", err)
	}
	if balance != 777.77 {
		t.Errorf("expected server balance 777.77, got %v", balance)
	}
	if msg != "switched" {
		t.Errorf("expected message passthrough, got %q", msg)
	}
}

func TestSwitchMode_MissingBalanceIsRejection(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true}`))
	})

	_, _, err := c.SwitchMode(context.Background(), false)
	var rejected *models.CommandRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected CommandRejectedError, got %v", err)
	}
}

func TestLogin_StoresToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"success": true, "token": "fresh-token", "username": "tester"}`))
	}))
	defer srv.Close()

	guard := session.New(srv.Client(), nil, nil)
	c := New(srv.URL, guard, srv.Client())

	username, err := c.Login(context.Background(), "tester", "Password1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if username != "tester" {
		t.Errorf("expected username tester, got %q", username)
	}
	if guard.Token() != "fresh-token" {
		t.Errorf("expected token stored in guard, got %q", guard.Token())
	}
}

func TestLogin_RejectedCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success": false, "message": "bad credentials"}`))
	}))
	defer srv.Close()

	guard := session.New(srv.Client(), nil, nil)
	c := New(srv.URL, guard, srv.Client())

	_, err := c.Login(context.Background(), "tester", "wrong")
	var rejected *models.CommandRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected CommandRejectedError, got %v", err)
	}
	if guard.Authenticated() {
		t.Error("failed login must not create a session")
	}
}

func TestLogin_EmptyCredentialsValidation(t *testing.T) {
	guard := session.New(nil, nil, nil)
	c := New("http://127.0.0.1:1", guard, nil)

	_, err := c.Login(context.Background(), "", "")
	var vErr *models.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestGlobalStats_Decodes(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stats/get" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"wins": 10, "losses": 2, "win_rate": 83.3, "total_trades": 12}`))
	})

	counters, err := c.GlobalStats(context.Background())
	if err != nil {
		t.Fatalf("GlobalStats: %v", err)
	}
	if counters.Wins != 10 || counters.TotalTrades != 12 {
		t.Errorf("unexpected counters: %+v", counters)
	}
}
