package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/core-coin/liqnotify/internal/models"
	"github.com/core-coin/liqnotify/pkg/logger"
	"github.com/core-coin/liqnotify/pkg/validation"
)

const token = "0x1234567890abcdef1234567890abcdef12345678"

type fakeApp struct {
	outcome models.SubscribeOutcome
	symbol  string
	err     error
	calls   []string
}

func (a *fakeApp) Subscribe(_ context.Context, token, user string) (models.SubscribeOutcome, string, error) {
	a.calls = append(a.calls, user+":"+token)
	return a.outcome, a.symbol, a.err
}

type recorder struct {
	replies []string
}

func (r *recorder) Reply(_ context.Context, text string) error {
	r.replies = append(r.replies, text)
	return nil
}

func newTestRouter(t *testing.T, app Subscriber, perMinute int) *Router {
	t.Helper()
	r, err := NewRouter(validation.ChainEVM, app, perMinute, logger.NewNop())
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return r
}

func TestParseEVM(t *testing.T) {
	r := newTestRouter(t, &fakeApp{}, 0)

	cmd := "!liq " + token
	if len(cmd) != 47 {
		t.Fatalf("test command length = %d", len(cmd))
	}

	tests := []struct {
		name    string
		content string
		ok      bool
	}{
		{"valid", cmd, true},
		{"uppercase hex", "!liq 0x1234567890ABCDEF1234567890ABCDEF12345678", true},
		{"too short", cmd[:46], false},
		{"too long", cmd + "9", false},
		{"trailing text", cmd + " please", false},
		{"wrong keyword", "!lix " + token, false},
		{"no space", "!liq" + token + "0", false},
		{"no 0x", "!liq 001234567890abcdef1234567890abcdef12345678", false},
		{"not hex", "!liq 0x1234567890abcdef1234567890abcdef1234567z", false},
		{"plain chat", "hello there", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Parse(tt.content)
			if ok != tt.ok {
				t.Fatalf("Parse(%q) ok = %v, want %v", tt.content, ok, tt.ok)
			}
			if ok && got != strings.TrimPrefix(tt.content, "!liq ") {
				t.Errorf("token = %q", got)
			}
		})
	}
}

func TestParseCore(t *testing.T) {
	r, err := NewRouter(validation.ChainCore, &fakeApp{}, 0, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	addr := "cb" + strings.Repeat("0", 42)
	if got, ok := r.Parse("!liq " + addr); !ok || got != addr {
		t.Errorf("Parse core = %q, %v", got, ok)
	}
	if _, ok := r.Parse("!liq " + token); ok {
		t.Error("EVM-shaped address should not match on core")
	}
	if _, ok := r.Parse("!liq ff" + strings.Repeat("0", 42)); ok {
		t.Error("core address without a network prefix should not match")
	}
}

func TestHandleIgnoresBotsAndNoise(t *testing.T) {
	app := &fakeApp{outcome: models.OutcomeCreated, symbol: "FOO"}
	r := newTestRouter(t, app, 0)
	rec := &recorder{}

	if r.Handle(context.Background(), Message{AuthorID: "1", Content: "!liq " + token, Bot: true}, rec) {
		t.Error("bot message handled")
	}
	if r.Handle(context.Background(), Message{AuthorID: "1", Content: "!liq abc"}, rec) {
		t.Error("malformed command handled")
	}
	if len(app.calls) != 0 || len(rec.replies) != 0 {
		t.Errorf("calls = %v, replies = %v", app.calls, rec.replies)
	}
}

func TestHandleReplies(t *testing.T) {
	tests := []struct {
		name  string
		app   *fakeApp
		reply string
	}{
		{
			name:  "created",
			app:   &fakeApp{outcome: models.OutcomeCreated, symbol: "FOO"},
			reply: fmt.Sprintf("I'll let you know when liquidity is added for **FOO** (%s)", token),
		},
		{
			name:  "joined",
			app:   &fakeApp{outcome: models.OutcomeJoined, symbol: "BAR"},
			reply: fmt.Sprintf("I'll let you know when liquidity is added for **BAR** (%s)", token),
		},
		{
			name:  "already subscribed",
			app:   &fakeApp{outcome: models.OutcomeAlreadySubscribed},
			reply: ReplyAlreadySubscribed,
		},
		{
			name:  "invalid token",
			app:   &fakeApp{outcome: models.OutcomeInvalidToken, err: errors.New("execution reverted")},
			reply: ReplyInvalidToken,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, tt.app, 0)
			rec := &recorder{}
			msg := Message{AuthorID: "42", AuthorTag: "alice#0001", Content: "!liq " + token}

			if !r.Handle(context.Background(), msg, rec) {
				t.Fatal("command not handled")
			}
			if len(tt.app.calls) != 1 || tt.app.calls[0] != "42:"+token {
				t.Errorf("calls = %v", tt.app.calls)
			}
			if len(rec.replies) != 1 || rec.replies[0] != tt.reply {
				t.Errorf("replies = %q, want %q", rec.replies, tt.reply)
			}
		})
	}
}

func TestHandleFailureDoesNotReply(t *testing.T) {
	app := &fakeApp{outcome: models.OutcomeFailed, err: errors.New("disk full")}
	r := newTestRouter(t, app, 0)
	rec := &recorder{}

	if !r.Handle(context.Background(), Message{AuthorID: "1", Content: "!liq " + token}, rec) {
		t.Fatal("command not handled")
	}
	if len(rec.replies) != 0 {
		t.Errorf("replies = %v, want none", rec.replies)
	}
}

func TestHandleRateLimit(t *testing.T) {
	app := &fakeApp{outcome: models.OutcomeAlreadySubscribed}
	r := newTestRouter(t, app, 1)
	rec := &recorder{}
	msg := Message{AuthorID: "1", Content: "!liq " + token}

	for i := 0; i < rateBurst+1; i++ {
		r.Handle(context.Background(), msg, rec)
	}
	if len(app.calls) != rateBurst {
		t.Errorf("app called %d times, want %d", len(app.calls), rateBurst)
	}
	if got := rec.replies[len(rec.replies)-1]; got != ReplyRateLimited {
		t.Errorf("last reply = %q, want rate limit notice", got)
	}

	// other users have their own budget
	r.Handle(context.Background(), Message{AuthorID: "2", Content: "!liq " + token}, rec)
	if len(app.calls) != rateBurst+1 {
		t.Errorf("second user was limited")
	}
}
