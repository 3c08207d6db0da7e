package validation

import (
	"strings"
	"testing"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		chain   Chain
		addr    string
		wantErr bool
	}{
		{"evm lowercase", ChainEVM, "0x" + strings.Repeat("ab", 20), false},
		{"evm mixed case", ChainEVM, "0xABCDEFabcdef0123456789ABCDEFabcdef012345", false},
		{"evm missing prefix", ChainEVM, strings.Repeat("ab", 21), true},
		{"evm too short", ChainEVM, "0x1234", true},
		{"evm non hex", ChainEVM, "0x" + strings.Repeat("zz", 20), true},
		{"core plain", ChainCore, "cb" + strings.Repeat("12", 21), false},
		{"core with 0x", ChainCore, "0x" + strings.Repeat("ab", 22), false},
		{"core too short", ChainCore, "cb12", true},
		{"core unknown network prefix", ChainCore, "ff" + strings.Repeat("12", 21), true},
		{"empty", ChainEVM, "", true},
		{"unknown chain", Chain("sol"), "0x00", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(tt.chain, tt.addr)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAddress(%s, %q) error = %v, wantErr %v", tt.chain, tt.addr, err, tt.wantErr)
			}
		})
	}
}

func TestParseChain(t *testing.T) {
	c, err := ParseChain(" EVM ")
	if err != nil {
		t.Fatalf("ParseChain: %v", err)
	}
	if c != ChainEVM {
		t.Errorf("chain = %q, want %q", c, ChainEVM)
	}
	if _, err := ParseChain("solana"); err == nil {
		t.Error("expected error for unknown chain")
	}
}
