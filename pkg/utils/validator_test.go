package utils

import "testing"

func TestValidateSymbol(t *testing.T) {
	tests := []struct {
		name    string
		symbol  string
		wantErr bool
	}{
		{"valid XRP", "XRP/USDT", false},
		{"valid DOGE", "DOGE/USDT", false},
		{"missing separator", "XRPUSDT", true},
		{"lowercase base", "xrp/USDT", true},
		{"empty base", "/USDT", true},
		{"wrong quote", "XRP/USDC", true},
		{"empty string", "", true},
		{"extra separator", "XRP/USDT/PERP", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSymbol(tt.symbol)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSymbol(%q) error = %v, wantErr %v", tt.symbol, err, tt.wantErr)
			}
		})
	}
}

func TestBaseCurrency(t *testing.T) {
	if got := BaseCurrency("XRP/USDT"); got != "XRP" {
		t.Errorf("BaseCurrency = %q, expected XRP", got)
	}
	if got := BaseCurrency("invalid"); got != "" {
		t.Errorf("BaseCurrency for invalid symbol = %q, expected empty", got)
	}
}

func TestFormatKST(t *testing.T) {
	// KST = UTC+9
	loc := KST()
	if loc == nil {
		t.Fatal("KST() returned nil location")
	}
	_, offset := NowKST().Zone()
	if offset != 9*60*60 {
		t.Errorf("KST offset = %d seconds, expected 32400", offset)
	}
}
