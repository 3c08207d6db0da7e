package validation

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// Chain identifies an address family the bot understands.
type Chain string

const (
	// ChainEVM covers Ethereum-style chains (Polygon, BSC, ...): 0x + 20 bytes.
	ChainEVM Chain = "evm"
	// ChainCore is Core Blockchain: ICAN addresses of 22 bytes (cb.. / ab..).
	ChainCore Chain = "core"
)

var (
	evmAddressPattern  = `0x[0-9a-fA-F]{40}`
	coreAddressPattern = `(?:0x)?(?:cb|ab)[0-9a-fA-F]{42}`
)

// AddressPattern returns an unanchored regular expression fragment that
// matches an address-shaped token for the chain. The fragment only checks
// the shape; checksum and contract existence are left to the chain.
func AddressPattern(chain Chain) (string, error) {
	switch chain {
	case ChainEVM:
		return evmAddressPattern, nil
	case ChainCore:
		return coreAddressPattern, nil
	}
	return "", fmt.Errorf("unknown chain %q", chain)
}

// ParseChain converts a config value into a Chain.
func ParseChain(s string) (Chain, error) {
	c := Chain(strings.ToLower(strings.TrimSpace(s)))
	if _, err := AddressPattern(c); err != nil {
		return "", err
	}
	return c, nil
}

var (
	evmAddressRe  = regexp.MustCompile(`^` + evmAddressPattern + `$`)
	coreAddressRe = regexp.MustCompile(`^` + coreAddressPattern + `$`)
)

// ValidateAddress validates a blockchain address format for the chain.
func ValidateAddress(chain Chain, addr string) error {
	if addr == "" {
		return fmt.Errorf("address cannot be empty")
	}

	switch chain {
	case ChainEVM:
		if !evmAddressRe.MatchString(addr) {
			return fmt.Errorf("invalid address: expected 0x followed by 40 hex characters, got %q", addr)
		}
	case ChainCore:
		normalized := strings.TrimPrefix(addr, "0x")
		// 44 hex characters = 22 bytes
		if len(normalized) != 44 {
			return fmt.Errorf("invalid address length: expected 44 characters (without 0x), got %d", len(normalized))
		}
		if _, err := hex.DecodeString(normalized); err != nil {
			return fmt.Errorf("invalid hex address: %w", err)
		}
		if !coreAddressRe.MatchString(addr) {
			return fmt.Errorf("invalid address %q: expected a cb (mainnet) or ab (devin) prefix", addr)
		}
	default:
		return fmt.Errorf("unknown chain %q", chain)
	}
	return nil
}
