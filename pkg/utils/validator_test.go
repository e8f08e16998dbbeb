package utils

import "testing"

func TestValidateSymbol(t *testing.T) {
	tests := []struct {
		symbol  string
		wantErr bool
	}{
		{"BTC/USDT", false},
		{"ETH/USDT", false},
		{"PEPE/USDT", false},
		{"1000SHIB/USDT", false},
		{"", true},
		{"BTCUSDT", true},
		{"btc/usdt", true},
		{"BTC/", true},
		{"/USDT", true},
		{"BTC/USDT/EXTRA", true},
	}

	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			err := ValidateSymbol(tt.symbol)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSymbol(%q) = %v, wantErr %v", tt.symbol, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"strong", "Passw0rd", false},
		{"too short", "Ab1", true},
		{"no lowercase", "PASSWORD1", true},
		{"no uppercase", "password1", true},
		{"no digit", "Password", true},
		{"long strong", "CorrectHorse7Battery", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePasswordStrength(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePasswordStrength(%q) = %v, wantErr %v", tt.password, err, tt.wantErr)
			}
		})
	}
}

func TestValidateRiskPct(t *testing.T) {
	for _, pct := range []int{1, 10, 100} {
		if err := ValidateRiskPct(pct); err != nil {
			t.Errorf("ValidateRiskPct(%d) unexpected error: %v", pct, err)
		}
	}
	for _, pct := range []int{0, -5, 101} {
		if err := ValidateRiskPct(pct); err == nil {
			t.Errorf("ValidateRiskPct(%d) expected error", pct)
		}
	}
}

func TestValidateConfirmPhrase(t *testing.T) {
	if err := ValidateConfirmPhrase("DELETE SNIPER", "sniper"); err != nil {
		t.Errorf("exact phrase rejected: %v", err)
	}
	// Регистр и пробелы по краям не важны
	if err := ValidateConfirmPhrase("  delete sniper ", "Sniper"); err != nil {
		t.Errorf("case-insensitive phrase rejected: %v", err)
	}
	if err := ValidateConfirmPhrase("DELETE OTHER", "sniper"); err == nil {
		t.Error("wrong phrase accepted")
	}
	if err := ValidateConfirmPhrase("", "sniper"); err == nil {
		t.Error("empty phrase accepted")
	}
}

func TestValidateBacktestDays(t *testing.T) {
	for _, d := range []int{1, 7, 90, 365} {
		if err := ValidateBacktestDays(d); err != nil {
			t.Errorf("ValidateBacktestDays(%d) unexpected error: %v", d, err)
		}
	}
	for _, d := range []int{0, -1, 366} {
		if err := ValidateBacktestDays(d); err == nil {
			t.Errorf("ValidateBacktestDays(%d) expected error", d)
		}
	}
}
