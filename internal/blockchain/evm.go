package blockchain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/core-coin/liqnotify/internal/models"
	"github.com/core-coin/liqnotify/pkg/logger"
)

type evmTransfer struct {
	From  common.Address
	To    common.Address
	Value *big.Int
}

// EVM talks to Ethereum-compatible chains (Polygon, BSC, ...) over a
// websocket endpoint.
type EVM struct {
	logger *logger.Logger
	wsURL  string
	abi    abi.ABI

	mu     sync.RWMutex
	client *ethclient.Client
}

// NewEVM creates a new EVM instance.
func NewEVM(wsURL string, logger *logger.Logger) (*EVM, error) {
	parsedABI, err := abi.JSON(strings.NewReader(TokenABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token ABI: %w", err)
	}
	return &EVM{wsURL: wsURL, logger: logger, abi: parsedABI}, nil
}

func (e *EVM) Run(ctx context.Context) error {
	client, err := ethclient.DialContext(ctx, e.wsURL)
	if err != nil {
		return fmt.Errorf("failed to connect to the EVM RPC server: %w", err)
	}

	e.mu.Lock()
	e.client = client
	e.mu.Unlock()

	e.logger.Info("Connected to EVM node", "url", e.wsURL)
	return nil
}

func (e *EVM) bindToken(token string) (*bind.BoundContract, error) {
	if !common.IsHexAddress(token) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, token)
	}

	e.mu.RLock()
	client := e.client
	e.mu.RUnlock()
	if client == nil {
		return nil, fmt.Errorf("EVM client is not connected")
	}

	address := common.HexToAddress(token)
	return bind.NewBoundContract(address, e.abi, client, client, client), nil
}

func (e *EVM) Symbol(ctx context.Context, token string) (string, error) {
	contract, err := e.bindToken(token)
	if err != nil {
		return "", err
	}

	results := []interface{}{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &results, symbolMethod); err != nil {
		return "", fmt.Errorf("failed to call symbol() on %s: %w", token, err)
	}
	return symbolFromResults(token, results)
}

func (e *EVM) WatchTransferOnce(ctx context.Context, token string, handler models.TransferHandler) (models.WatchSubscription, error) {
	contract, err := e.bindToken(token)
	if err != nil {
		return nil, err
	}

	logs, sub, err := contract.WatchLogs(&bind.WatchOpts{Context: ctx}, transferEvent)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s events of %s: %w", transferEvent, token, err)
	}

	go func() {
		defer sub.Unsubscribe()
		for {
			select {
			case lg := <-logs:
				if lg.Removed {
					// reorged out, keep waiting for a canonical one
					continue
				}
				handler(e.decodeTransfer(contract, token, lg))
				return
			case err := <-sub.Err():
				if err == nil {
					err = ErrWatchClosed
				}
				handler(nil, err)
				return
			case <-ctx.Done():
				handler(nil, ctx.Err())
				return
			}
		}
	}()

	return sub, nil
}

func (e *EVM) decodeTransfer(contract *bind.BoundContract, token string, lg types.Log) (*models.Transfer, error) {
	var ev evmTransfer
	if err := contract.UnpackLog(&ev, transferEvent, lg); err != nil {
		return nil, fmt.Errorf("failed to decode %s log of %s: %w", transferEvent, token, err)
	}
	return &models.Transfer{
		Token:       token,
		From:        ev.From.Hex(),
		To:          ev.To.Hex(),
		Amount:      ev.Value,
		TxHash:      lg.TxHash.Hex(),
		BlockNumber: lg.BlockNumber,
	}, nil
}

func (e *EVM) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client != nil {
		e.client.Close()
		e.client = nil
	}
	return nil
}
