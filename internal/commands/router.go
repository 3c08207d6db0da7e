// Package commands turns chat messages into subscription requests.
package commands

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/core-coin/liqnotify/internal/metrics"
	"github.com/core-coin/liqnotify/internal/models"
	"github.com/core-coin/liqnotify/pkg/logger"
	"github.com/core-coin/liqnotify/pkg/validation"
)

const (
	Keyword = "!liq"

	ReplyAlreadySubscribed = "Already on it boss! :wink:"
	ReplySubscribed        = "I'll let you know when liquidity is added for **%s** (%s)"
	ReplyInvalidToken      = "That's probably not a token address, where did you get that from? :kek:"
	ReplyRateLimited       = "Easy there, one token at a time."

	rateBurst = 3
)

// Message is a chat message stripped of its transport.
type Message struct {
	AuthorID  string
	AuthorTag string
	Content   string
	Bot       bool
}

// Replier answers in the channel the message came from.
type Replier interface {
	Reply(ctx context.Context, text string) error
}

// Subscriber is the part of the application the router drives.
type Subscriber interface {
	Subscribe(ctx context.Context, token, user string) (models.SubscribeOutcome, string, error)
}

type Router struct {
	logger *logger.Logger
	app    Subscriber
	re     *regexp.Regexp

	limit rate.Limit
	mu    sync.Mutex
	users map[string]*rate.Limiter
}

// NewRouter builds a router for the address shape of chain. perMinute <= 0
// disables rate limiting.
func NewRouter(chain validation.Chain, app Subscriber, perMinute int, logger *logger.Logger) (*Router, error) {
	pattern, err := validation.AddressPattern(chain)
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile(`^` + regexp.QuoteMeta(Keyword) + ` (` + pattern + `)$`)
	if err != nil {
		return nil, fmt.Errorf("failed to compile command pattern: %w", err)
	}

	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}

	return &Router{
		logger: logger,
		app:    app,
		re:     re,
		limit:  limit,
		users:  make(map[string]*rate.Limiter),
	}, nil
}

// Parse returns the token address of a !liq command.
func (r *Router) Parse(content string) (string, bool) {
	m := r.re.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Handle runs msg through the !liq flow. It reports whether the message was
// a command.
func (r *Router) Handle(ctx context.Context, msg Message, replier Replier) bool {
	if msg.Bot {
		return false
	}
	token, ok := r.Parse(msg.Content)
	if !ok {
		return false
	}

	r.logger.Infof("[%s]: %s", msg.AuthorTag, msg.Content)

	if !r.allow(msg.AuthorID) {
		metrics.CommandsTotal.WithLabelValues("rate_limited").Inc()
		r.logger.Warn("Command rate limited", "user", msg.AuthorID, "token", token)
		r.reply(ctx, replier, ReplyRateLimited)
		return true
	}

	outcome, symbol, err := r.app.Subscribe(ctx, token, msg.AuthorID)
	metrics.CommandsTotal.WithLabelValues(outcome.String()).Inc()

	switch outcome {
	case models.OutcomeAlreadySubscribed:
		r.reply(ctx, replier, ReplyAlreadySubscribed)
	case models.OutcomeCreated, models.OutcomeJoined:
		r.reply(ctx, replier, fmt.Sprintf(ReplySubscribed, symbol, token))
	case models.OutcomeInvalidToken:
		r.logger.Warn("Symbol lookup failed", "token", token, "user", msg.AuthorID, "error", err)
		r.reply(ctx, replier, ReplyInvalidToken)
	default:
		r.logger.Error("Failed to handle command", "token", token, "user", msg.AuthorID, "error", err)
	}
	return true
}

func (r *Router) allow(user string) bool {
	if r.limit == rate.Inf {
		return true
	}

	r.mu.Lock()
	l, ok := r.users[user]
	if !ok {
		l = rate.NewLimiter(r.limit, rateBurst)
		r.users[user] = l
	}
	r.mu.Unlock()

	return l.Allow()
}

func (r *Router) reply(ctx context.Context, replier Replier, text string) {
	if err := replier.Reply(ctx, text); err != nil {
		r.logger.Error("Failed to send reply", "error", err)
	}
}
