// Package format renders amounts, timestamps and the liquidity broadcast.
package format

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

const (
	// DefaultDecimals is the token precision assumed for raw amounts.
	DefaultDecimals = 18
	// AmountPlaces is the number of decimals shown in log lines.
	AmountPlaces = 4

	timestampLayout = "02/01/2006 15:04:05"
)

// FormatAmount renders a raw 18-decimals amount rounded to four places with
// thousands separators in the integer part: 10000e18 -> "10,000.0000".
func FormatAmount(raw *big.Int) string {
	return FormatUnits(raw, DefaultDecimals)
}

// FormatUnits is FormatAmount for tokens with a different precision.
func FormatUnits(raw *big.Int, decimals int32) string {
	if raw == nil {
		raw = new(big.Int)
	}
	fixed := decimal.NewFromBigInt(raw, -decimals).StringFixed(AmountPlaces)

	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	intPart, fracPart, _ := strings.Cut(fixed, ".")

	whole, ok := new(big.Int).SetString(intPart, 10)
	if !ok {
		// StringFixed always yields base-10 digits
		return sign + fixed
	}
	return sign + humanize.BigComma(whole) + "." + fracPart
}

// Timestamp formats t as DD/MM/YYYY HH:MM:SS in t's location.
func Timestamp(t time.Time) string {
	return t.Format(timestampLayout)
}

// CurrentTimestamp is Timestamp for the local wall clock.
func CurrentTimestamp() string {
	return Timestamp(time.Now().Local())
}

// Mention renders a Discord user mention.
func Mention(userID string) string {
	return "<@" + userID + ">"
}

// Mentions renders every user with Mention.
func Mentions(userIDs []string) []string {
	out := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		out = append(out, Mention(id))
	}
	return out
}

// ComposeNotification builds the liquidity broadcast. An empty mention list
// leaves an empty prefix.
func ComposeNotification(symbol, token string, mentions []string) string {
	return fmt.Sprintf("%s Liquidity has been added for **%s** (%s)", strings.Join(mentions, " "), symbol, token)
}

// TransferLogLine is the console line printed when a watched transfer fires.
func TransferLogLine(ts, from, to, amount string) string {
	return fmt.Sprintf("[%s] %s -> %s (%s)", ts, from, to, amount)
}

// ComposeMirror is the mention-free broadcast for chats outside Discord.
func ComposeMirror(symbol, token string, subscribers int) string {
	noun := "subscribers"
	if subscribers == 1 {
		noun = "subscriber"
	}
	return fmt.Sprintf("Liquidity has been added for %s (%s), %d %s notified", symbol, token, subscribers, noun)
}
