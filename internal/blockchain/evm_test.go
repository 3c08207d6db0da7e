package blockchain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/core-coin/liqnotify/pkg/logger"
)

func TestEVMDecodeTransfer(t *testing.T) {
	e, err := NewEVM("ws://unused", logger.NewNop())
	if err != nil {
		t.Fatalf("NewEVM: %v", err)
	}

	token := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	from := common.HexToAddress("0x00000000000000000000000000000000000000f1")
	to := common.HexToAddress("0x00000000000000000000000000000000000000f2")
	value, _ := new(big.Int).SetString("10000000000000000000000", 10)

	lg := types.Log{
		Address: token,
		Topics: []common.Hash{
			e.abi.Events[transferEvent].ID,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data:        common.LeftPadBytes(value.Bytes(), 32),
		TxHash:      common.HexToHash("0x01"),
		BlockNumber: 42,
	}

	contract := bind.NewBoundContract(token, e.abi, nil, nil, nil)
	transfer, err := e.decodeTransfer(contract, token.Hex(), lg)
	if err != nil {
		t.Fatalf("decodeTransfer: %v", err)
	}
	if transfer.From != from.Hex() || transfer.To != to.Hex() {
		t.Errorf("from/to = %s/%s, want %s/%s", transfer.From, transfer.To, from.Hex(), to.Hex())
	}
	if transfer.Amount.Cmp(value) != 0 {
		t.Errorf("amount = %s, want %s", transfer.Amount, value)
	}
	if transfer.BlockNumber != 42 {
		t.Errorf("block = %d, want 42", transfer.BlockNumber)
	}
}

func TestEVMDecodeTransfer_WrongEvent(t *testing.T) {
	e, err := NewEVM("ws://unused", logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	token := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	contract := bind.NewBoundContract(token, e.abi, nil, nil, nil)

	lg := types.Log{Topics: []common.Hash{common.HexToHash("0xdead")}}
	if _, err := e.decodeTransfer(contract, token.Hex(), lg); err == nil {
		t.Error("expected signature mismatch error")
	}
}

func TestEVMSymbol_InvalidAddress(t *testing.T) {
	e, err := NewEVM("ws://unused", logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	_, err = e.Symbol(context.Background(), "0xnot-an-address-at-all-but-42-characters")
	if !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("err = %v, want ErrInvalidAddress", err)
	}
}

func TestEVMSymbol_NotConnected(t *testing.T) {
	e, err := NewEVM("ws://unused", logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Symbol(context.Background(), "0x00000000000000000000000000000000000000aa"); err == nil {
		t.Error("expected error before Run")
	}
}

func TestSymbolFromResults(t *testing.T) {
	if _, err := symbolFromResults("0x", nil); err == nil {
		t.Error("expected error for empty results")
	}
	if _, err := symbolFromResults("0x", []interface{}{42}); err == nil {
		t.Error("expected error for non-string result")
	}
	sym, err := symbolFromResults("0x", []interface{}{"FOO"})
	if err != nil || sym != "FOO" {
		t.Errorf("symbol = %q, %v", sym, err)
	}
}
