package liqnotify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/core-coin/liqnotify/internal/config"
	"github.com/core-coin/liqnotify/internal/format"
	"github.com/core-coin/liqnotify/internal/metrics"
	"github.com/core-coin/liqnotify/internal/models"
	"github.com/core-coin/liqnotify/internal/watcher"
	"github.com/core-coin/liqnotify/pkg/logger"
)

// dispatchTimeout bounds one broadcast across all sinks
const dispatchTimeout = 30 * time.Second

// Liqnotify is the main struct for the Liqnotify application
// It contains all the necessary components to run the application
// and serves all business logic
type Liqnotify struct {
	logger *logger.Logger
	config *config.Config

	repo        models.Repository
	chain       models.BlockchainService
	notificator models.NotificationService
	watcher     *watcher.Watcher

	// mu serializes check-then-act sequences on the registry
	mu sync.Mutex
}

// NewLiqnotify creates a new Liqnotify instance
func NewLiqnotify(
	repo models.Repository,
	chain models.BlockchainService,
	notificator models.NotificationService,
	logger *logger.Logger,
	config *config.Config,
) *Liqnotify {
	l := &Liqnotify{
		repo:        repo,
		chain:       chain,
		logger:      logger,
		notificator: notificator,
		config:      config,
	}
	l.watcher = watcher.New(chain, l.HandleLiquidity, logger.Named("watcher"))
	return l
}

// Start arms a watcher for every subscription in the registry
func (l *Liqnotify) Start(_ context.Context) error {
	subs, err := l.repo.Load()
	if err != nil {
		return fmt.Errorf("failed to load subscriptions: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	armed := 0
	for _, sub := range subs {
		ok, err := l.watcher.Arm(sub.TokenAddress)
		if err != nil {
			l.logger.Error("Failed to re-arm watcher", "token", sub.TokenAddress, "error", err)
			continue
		}
		if ok {
			armed++
		}
	}
	l.logger.Info("Pending subscriptions restored", "subscriptions", len(subs), "armed", armed)
	return nil
}

func (l *Liqnotify) Stop() {
	l.watcher.Stop()
}

// Subscribe registers user for the liquidity event of token
func (l *Liqnotify) Subscribe(ctx context.Context, token, user string) (models.SubscribeOutcome, string, error) {
	subscribed, err := l.repo.IsSubscribed(token, user)
	if err != nil {
		return models.OutcomeFailed, "", fmt.Errorf("failed to check subscription: %w", err)
	}
	if subscribed {
		return models.OutcomeAlreadySubscribed, "", nil
	}

	symbol, err := l.lookupSymbol(ctx, token)
	if err != nil {
		return models.OutcomeInvalidToken, "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// a concurrent request from the same user may have won the lock first
	subscribed, err = l.repo.IsSubscribed(token, user)
	if err != nil {
		return models.OutcomeFailed, symbol, fmt.Errorf("failed to check subscription: %w", err)
	}
	if subscribed {
		return models.OutcomeAlreadySubscribed, "", nil
	}

	exists, err := l.repo.Exists(token)
	if err != nil {
		return models.OutcomeFailed, symbol, fmt.Errorf("failed to check token: %w", err)
	}

	if exists {
		if err := l.repo.AddUser(token, user); err != nil {
			return models.OutcomeFailed, symbol, fmt.Errorf("failed to add user: %w", err)
		}
		// a watch that died upstream is picked up again here
		if _, err := l.watcher.Arm(token); err != nil {
			l.logger.Warn("Failed to re-arm watcher", "token", token, "error", err)
		}
		l.logger.Info("User joined subscription", "token", token, "user", user, "symbol", symbol)
		return models.OutcomeJoined, symbol, nil
	}

	if _, err := l.watcher.Arm(token); err != nil {
		return models.OutcomeFailed, symbol, err
	}
	if err := l.repo.AddSubscription(token, user); err != nil {
		l.watcher.Disarm(token)
		return models.OutcomeFailed, symbol, fmt.Errorf("failed to add subscription: %w", err)
	}
	l.logger.Info("New subscription", "token", token, "user", user, "symbol", symbol)
	return models.OutcomeCreated, symbol, nil
}

// HandleLiquidity is called once when the first Transfer of a watched token
// is seen. It notifies the subscribers and drops the token from the registry.
func (l *Liqnotify) HandleLiquidity(token string, transfer *models.Transfer) {
	amount := format.FormatAmount(transfer.Amount)
	l.logger.Info(format.TransferLogLine(format.CurrentTimestamp(), transfer.From, transfer.To, amount))

	l.mu.Lock()
	users, ok, err := l.repo.SubscribersOf(token)
	if err != nil {
		l.mu.Unlock()
		l.logger.Error("Failed to read subscribers", "token", token, "error", err)
		return
	}
	if !ok {
		l.mu.Unlock()
		l.logger.Warn("Liquidity added for a token that is no longer tracked", "token", token)
		return
	}
	if err := l.repo.Remove(token); err != nil {
		l.logger.Error("Failed to remove subscription", "token", token, "error", err)
	}
	// a reconcile between the fire and the lock may have re-armed the token
	l.watcher.Disarm(token)
	l.mu.Unlock()

	symbol, err := l.lookupSymbol(context.Background(), token)
	if err != nil {
		l.logger.Warn("Symbol lookup failed, using the address instead", "token", token, "error", err)
		symbol = token
	}

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	l.notificator.SendNotification(ctx, &models.Notification{
		Token:       token,
		Symbol:      symbol,
		Subscribers: users,
		Amount:      amount,
	})
}

// Reconcile aligns the armed watchers with the registry: pending tokens get
// a watcher and watchers of removed tokens are cancelled.
func (l *Liqnotify) Reconcile(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	subs, err := l.repo.Load()
	if err != nil {
		return fmt.Errorf("failed to load subscriptions: %w", err)
	}

	pending := make(map[string]struct{}, len(subs))
	for _, sub := range subs {
		pending[sub.TokenAddress] = struct{}{}
		armed, err := l.watcher.Arm(sub.TokenAddress)
		if err != nil {
			l.logger.Error("Failed to arm watcher", "token", sub.TokenAddress, "error", err)
			continue
		}
		if armed {
			l.logger.Info("Armed watcher for added subscription", "token", sub.TokenAddress)
		}
	}

	for _, w := range l.watcher.Armed() {
		if _, ok := pending[w.Token]; !ok {
			l.watcher.Disarm(w.Token)
		}
	}
	return nil
}

func (l *Liqnotify) Subscriptions() ([]models.Subscription, error) {
	return l.repo.Load()
}

func (l *Liqnotify) Subscription(token string) (*models.Subscription, error) {
	subs, err := l.repo.Load()
	if err != nil {
		return nil, err
	}
	for _, sub := range subs {
		if sub.TokenAddress == token {
			s := sub.Clone()
			return &s, nil
		}
	}
	return nil, models.ErrSubscriptionNotFound
}

func (l *Liqnotify) Watchers() []models.WatcherInfo {
	return l.watcher.Armed()
}

// WatcherState reports the lifecycle state of the watcher of token.
func (l *Liqnotify) WatcherState(token string) watcher.State {
	return l.watcher.State(token)
}

func (l *Liqnotify) lookupSymbol(ctx context.Context, token string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.lookupTimeout())
	defer cancel()

	start := time.Now()
	symbol, err := l.chain.Symbol(ctx, token)
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.SymbolLookupSeconds.WithLabelValues(result).Observe(time.Since(start).Seconds())
	return symbol, err
}

func (l *Liqnotify) lookupTimeout() time.Duration {
	if l.config == nil || l.config.LookupTimeout <= 0 {
		return 15 * time.Second
	}
	return l.config.LookupTimeout
}
