package blockchain

import (
	"context"
	"errors"
	"fmt"

	"github.com/core-coin/liqnotify/internal/config"
	"github.com/core-coin/liqnotify/internal/models"
	"github.com/core-coin/liqnotify/pkg/logger"
	"github.com/core-coin/liqnotify/pkg/validation"
)

// TokenABI is the subset of the ERC20/CBC20 interface the bot needs: the
// symbol() view and the Transfer event.
const TokenABI = `[{"anonymous":false,"inputs":[{"indexed":true,"internalType":"address","name":"from","type":"address"},{"indexed":true,"internalType":"address","name":"to","type":"address"},{"indexed":false,"internalType":"uint256","name":"value","type":"uint256"}],"name":"Transfer","type":"event"},{"inputs":[],"name":"symbol","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"},{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"}]`

const (
	transferEvent = "Transfer"
	symbolMethod  = "symbol"
)

var (
	// ErrInvalidAddress is returned for token strings the chain cannot parse.
	ErrInvalidAddress = errors.New("invalid token address")
	// ErrWatchClosed is reported when the upstream subscription ends without an error.
	ErrWatchClosed = errors.New("transfer subscription closed")
)

// Client is a chain backend that must be connected before use.
type Client interface {
	models.BlockchainService
	Run(ctx context.Context) error
}

// New returns the backend for cfg.Chain. Call Run on it before use.
func New(cfg *config.Config, logger *logger.Logger) (Client, error) {
	switch cfg.Chain {
	case validation.ChainEVM:
		return NewEVM(cfg.WSURL, logger)
	case validation.ChainCore:
		return NewGocore(cfg.WSURL, cfg.NetworkID, logger)
	}
	return nil, fmt.Errorf("unsupported chain %q", cfg.Chain)
}

func symbolFromResults(token string, results []interface{}) (string, error) {
	if len(results) == 0 {
		return "", fmt.Errorf("empty symbol() result for %s", token)
	}
	symbol, ok := results[0].(string)
	if !ok {
		return "", fmt.Errorf("unexpected symbol() result type %T for %s", results[0], token)
	}
	return symbol, nil
}
