package core

import "testing"

func TestMerchantKey(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"trailing digits stripped", "NETFLIX123", "NETFLIX"},
		{"different suffix, same key", "NETFLIX124", "NETFLIX"},
		{"no digits", "SPOTIFY", "SPOTIFY"},
		{"digits in the middle survive", "7-ELEVEN STORE 42", "7-ELEVEN STORE "},
		{"fully numeric name", "123456", ""},
		{"empty name", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MerchantKey(tt.raw); got != tt.want {
				t.Errorf("MerchantKey(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
