// Package session drives the dashboard: it connects through the
// ConnectionManager, runs the account queries and broadcasts the results.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"kaidash/pkg/config"
	"kaidash/pkg/models"
	"kaidash/pkg/provider"
	"kaidash/pkg/utils"
	"kaidash/pkg/wallet"

	"go.uber.org/zap"
)

// MaxHistory bounds the number of balance points kept for the graph.
const MaxHistory = 120

var (
	ErrNotConnected  = errors.New("not connected")
	ErrStaleResponse = errors.New("response arrived after the connection changed")
)

// Session owns the connection and the latest account snapshot.
type Session struct {
	manager   *wallet.ConnectionManager
	providers []models.ProviderInfo
	cfg       config.GlobalConfig
	logger    *zap.Logger
	now       func() time.Time

	snapshot    models.Snapshot
	history     []models.BalancePoint
	subscribers []Subscriber
	mu          sync.RWMutex
}

func New(manager *wallet.ConnectionManager, providers []models.ProviderInfo, cfg config.GlobalConfig, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		manager:   manager,
		providers: providers,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Subscribe adds a new subscriber and returns a channel to receive events.
func (s *Session) Subscribe() Subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(Subscriber, 100)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber.
func (s *Session) Unsubscribe(ch Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subscribers {
		if sub == ch {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

func (s *Session) notify(event Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subscribers {
		select {
		case sub <- event:
		default:
			s.logger.Warn("dropping event for slow subscriber", zap.String("event", string(event.Type)))
		}
	}
}

// Connect connects to kind and, on success, loads the account snapshot.
// The handshake is bounded by the configured connect timeout and by ctx.
// Query failures after a successful connect are reported through events,
// not through the returned error.
func (s *Session) Connect(ctx context.Context, kind provider.Kind) error {
	cctx, cancel := withTimeout(ctx, s.cfg.ConnectTimeout())
	defer cancel()

	s.notify(Event{Type: EventConnecting, Data: string(kind)})

	if err := s.manager.Connect(cctx, kind); err != nil {
		s.notify(Event{Type: EventConnectFailed, Data: models.ConnectError{
			Provider: string(kind),
			Reason:   Reason(err),
			Message:  err.Error(),
		}})
		return err
	}
	// A failed reconnect keeps the old connection, so the old panels stay
	// until the new account is in place.
	s.mu.Lock()
	s.snapshot = models.Snapshot{}
	s.history = nil
	s.mu.Unlock()
	s.notify(Event{Type: EventConnected, Data: s.manager.State().Info()})

	if _, err := s.Refresh(ctx); err != nil {
		s.logger.Warn("initial refresh failed", zap.Error(err))
	}
	return nil
}

// Refresh queries balance, node info and transaction count in sequence.
// Results that arrive after a disconnect or reconnect are discarded.
func (s *Session) Refresh(ctx context.Context) (models.Snapshot, error) {
	state := s.manager.State()
	if !state.Connected() {
		return models.Snapshot{}, ErrNotConnected
	}
	p := state.Provider
	snap := models.Snapshot{Provider: string(state.Kind), Address: state.Address}

	var raw string
	err := s.query(ctx, "balance", state.Generation, func(ctx context.Context) error {
		bal, err := p.Balance(ctx, state.Address)
		if err == nil {
			raw = bal.String()
		}
		return err
	})
	if err == nil {
		snap.RawBalance = raw
		snap.Balance, err = utils.FormatUnits(raw, int32(s.cfg.UnitDecimals), " "+s.cfg.UnitSymbol)
	}
	if err == nil {
		err = s.query(ctx, "node info", state.Generation, func(ctx context.Context) error {
			info, err := p.NodeInfo(ctx)
			snap.NodeInfo = info
			return err
		})
	}
	if err == nil {
		err = s.query(ctx, "transaction count", state.Generation, func(ctx context.Context) error {
			n, err := p.TransactionCount(ctx, state.Address)
			if err == nil {
				snap.TransactionCount = strconv.FormatUint(n, 10)
			}
			return err
		})
	}
	if errors.Is(err, ErrStaleResponse) {
		s.logger.Debug("discarding stale query response", zap.String("address", state.Address))
		return models.Snapshot{}, err
	}

	snap.UpdatedAt = s.now()
	if err != nil {
		snap.Error = err.Error()
	}

	s.mu.Lock()
	if !s.manager.Current(state.Generation) {
		s.mu.Unlock()
		return models.Snapshot{}, ErrStaleResponse
	}
	s.snapshot = snap
	if err == nil {
		s.appendHistoryLocked(snap)
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("query failed", zap.String("address", state.Address), zap.Error(err))
		s.notify(Event{Type: EventQueryFailed, Data: models.QueryError{Query: queryName(err), Message: err.Error()}})
		return snap, err
	}
	s.notify(Event{Type: EventSnapshotUpdated, Data: snap})
	return snap, nil
}

type queryError struct {
	name string
	err  error
}

func (e *queryError) Error() string { return fmt.Sprintf("%s query failed: %v", e.name, e.err) }
func (e *queryError) Unwrap() error { return e.err }

func queryName(err error) string {
	var qe *queryError
	if errors.As(err, &qe) {
		return qe.name
	}
	return "balance"
}

func (s *Session) query(ctx context.Context, name string, generation uint64, fn func(context.Context) error) error {
	qctx, cancel := withTimeout(ctx, s.cfg.QueryTimeout())
	defer cancel()
	err := fn(qctx)
	if !s.manager.Current(generation) {
		return ErrStaleResponse
	}
	if err != nil {
		return &queryError{name: name, err: err}
	}
	return nil
}

func (s *Session) appendHistoryLocked(snap models.Snapshot) {
	d, err := utils.ParseUnits(snap.RawBalance, int32(s.cfg.UnitDecimals))
	if err != nil {
		return
	}
	v, _ := d.Float64()
	s.history = append(s.history, models.BalancePoint{Timestamp: snap.UpdatedAt, Value: v})
	if len(s.history) > MaxHistory {
		s.history = s.history[len(s.history)-MaxHistory:]
	}
}

// Disconnect clears the connection, the snapshot and the balance history.
// The provider handle is closed before s.mu is taken.
func (s *Session) Disconnect() {
	changed := s.manager.Disconnect()

	s.mu.Lock()
	s.snapshot = models.Snapshot{}
	s.history = nil
	s.mu.Unlock()

	if changed {
		s.notify(Event{Type: EventDisconnected})
	}
}

func (s *Session) State() models.ConnectionInfo {
	return s.manager.State().Info()
}

func (s *Session) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// History returns a copy of the recorded balance points.
func (s *Session) History() []models.BalancePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]models.BalancePoint, len(s.history))
	copy(cp, s.history)
	return cp
}

func (s *Session) Providers() []models.ProviderInfo {
	cp := make([]models.ProviderInfo, len(s.providers))
	copy(cp, s.providers)
	return cp
}

// Config returns the settings the session was built with.
func (s *Session) Config() config.GlobalConfig {
	return s.cfg
}

// Reason classifies a connect error for display.
func Reason(err error) string {
	switch {
	case errors.Is(err, provider.ErrProviderMissing):
		return "missing"
	case errors.Is(err, provider.ErrProviderRejected):
		return "rejected"
	case errors.Is(err, provider.ErrNoAccounts):
		return "no_accounts"
	case errors.Is(err, wallet.ErrConnectSuperseded):
		return "superseded"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}
	return "error"
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
