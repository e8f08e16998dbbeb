package handlers

import (
	"context"

	"sniperctl/internal/command"
	"sniperctl/internal/models"
)

// ============================================================
// Моки зависимостей handlers
// ============================================================

type mockState struct {
	snapshot *models.MarketSnapshot
}

func (m *mockState) Snapshot() *models.MarketSnapshot {
	if m.snapshot == nil {
		return &models.MarketSnapshot{Connection: models.ConnectionConnecting}
	}
	return m.snapshot
}

type mockStats struct {
	counters *models.Counters
	err      error
}

func (m *mockStats) GlobalStats(ctx context.Context) (*models.Counters, error) {
	return m.counters, m.err
}

// mockCommands фиксирует вызовы и отдаёт заранее заданный результат
type mockCommands struct {
	calls []string
	args  map[string]interface{}
	err   error
}

func newMockCommands() *mockCommands {
	return &mockCommands{args: map[string]interface{}{}}
}

func (m *mockCommands) record(name string, arg interface{}) (*command.Result, error) {
	m.calls = append(m.calls, name)
	if arg != nil {
		m.args[name] = arg
	}
	if m.err != nil {
		return nil, m.err
	}
	return &command.Result{ID: "test-id"}, nil
}

func (m *mockCommands) Start(ctx context.Context) (*command.Result, error) {
	return m.record("start", nil)
}
func (m *mockCommands) Stop(ctx context.Context) (*command.Result, error) {
	return m.record("stop", nil)
}
func (m *mockCommands) ManualOrder(ctx context.Context, side string) (*command.Result, error) {
	return m.record("manual_order", side)
}
func (m *mockCommands) ChangeSymbol(ctx context.Context, symbol string) (*command.Result, error) {
	return m.record("change_symbol", symbol)
}
func (m *mockCommands) SwitchEnvironment(ctx context.Context, testnet bool) (*command.Result, error) {
	return m.record("switch_environment", testnet)
}
func (m *mockCommands) SetRisk(ctx context.Context, pct int) (*command.Result, error) {
	return m.record("set_risk", pct)
}
func (m *mockCommands) ResetAccount(ctx context.Context) (*command.Result, error) {
	return m.record("reset_account", nil)
}
func (m *mockCommands) Liquidate(ctx context.Context) (*command.Result, error) {
	return m.record("liquidate", nil)
}
func (m *mockCommands) PanicSellAll(ctx context.Context) (*command.Result, error) {
	return m.record("panic_sell_all", nil)
}

type mockJobs struct {
	submitted []models.BacktestConfig
	jobID     string
	job       models.BacktestJob
	err       error
	cleared   int
}

func (m *mockJobs) Submit(ctx context.Context, cfg models.BacktestConfig) (string, error) {
	m.submitted = append(m.submitted, cfg)
	if m.err != nil {
		return "", m.err
	}
	return m.jobID, nil
}

func (m *mockJobs) Job() models.BacktestJob { return m.job }

func (m *mockJobs) Clear() { m.cleared++ }
