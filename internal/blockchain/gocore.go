package blockchain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/core-coin/go-core/v2/accounts/abi"
	"github.com/core-coin/go-core/v2/accounts/abi/bind"
	"github.com/core-coin/go-core/v2/common"
	"github.com/core-coin/go-core/v2/core/types"
	"github.com/core-coin/go-core/v2/xcbclient"

	"github.com/core-coin/liqnotify/internal/models"
	"github.com/core-coin/liqnotify/pkg/logger"
)

type coreTransfer struct {
	From  common.Address
	To    common.Address
	Value *big.Int
}

// Gocore talks to Core Blockchain nodes and watches CBC20 tokens.
type Gocore struct {
	logger *logger.Logger
	apiURL string
	abi    abi.ABI

	mu     sync.RWMutex
	client *xcbclient.Client
}

// NewGocore creates a new Gocore instance. networkID selects the address
// prefix (1 = mainnet cb.., 3 = devin ab..).
func NewGocore(apiURL string, networkID *big.Int, logger *logger.Logger) (*Gocore, error) {
	if networkID != nil {
		// required before any address parsing
		common.DefaultNetworkID = common.NetworkID(networkID.Int64())
	}

	parsedABI, err := abi.JSON(strings.NewReader(TokenABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse CBC20 ABI: %w", err)
	}
	return &Gocore{apiURL: apiURL, logger: logger, abi: parsedABI}, nil
}

func (g *Gocore) Run(_ context.Context) error {
	return g.ConnectToRPC()
}

func (g *Gocore) ConnectToRPC() error {
	client, err := xcbclient.Dial(g.apiURL)
	if err != nil {
		return fmt.Errorf("failed to connect to the core RPC server: %w", err)
	}

	g.mu.Lock()
	g.client = client
	g.mu.Unlock()

	g.logger.Info("Connected to Core node", "url", g.apiURL)
	return nil
}

func (g *Gocore) bindToken(token string) (*bind.BoundContract, error) {
	address, err := common.HexToAddress(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidAddress, token, err)
	}

	g.mu.RLock()
	client := g.client
	g.mu.RUnlock()
	if client == nil {
		return nil, fmt.Errorf("core client is not connected")
	}

	return bind.NewBoundContract(address, g.abi, client, client, client), nil
}

func (g *Gocore) Symbol(ctx context.Context, token string) (string, error) {
	contract, err := g.bindToken(token)
	if err != nil {
		return "", err
	}

	results := []interface{}{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &results, symbolMethod); err != nil {
		return "", fmt.Errorf("failed to call symbol() on %s: %w", token, err)
	}
	return symbolFromResults(token, results)
}

func (g *Gocore) WatchTransferOnce(ctx context.Context, token string, handler models.TransferHandler) (models.WatchSubscription, error) {
	contract, err := g.bindToken(token)
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
					continue
				}
				handler(g.decodeTransfer(contract, token, lg))
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

func (g *Gocore) decodeTransfer(contract *bind.BoundContract, token string, lg types.Log) (*models.Transfer, error) {
	var ev coreTransfer
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

func (g *Gocore) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		g.client.Close()
		g.client = nil
	}
	return nil
}
