// Package feed maintains the real-time event views for a single match: four
// newest-first trade lists partitioned by kind (shadow vs. original) and by
// viewer identity (everyone vs. mine), mirrored to durable slots on every
// change.
package feed

import (
	"context"
	"log/slog"
	"sync"

	"github.com/monachad/matchfeed/internal/domain"
)

// DefaultMaxWindow is the bound on the "all" lists. The "mine" lists are
// unbounded.
const DefaultMaxWindow = 30

// StoreConfig configures a Store.
type StoreConfig struct {
	// MatchID scopes the store and its durable slots.
	MatchID string

	// MaxWindow bounds the allShadow and allOriginal lists. Zero means
	// DefaultMaxWindow.
	MaxWindow int

	// Viewer is the connected wallet's address. Empty means no wallet is
	// connected and mineShadow never receives entries.
	Viewer string

	// FollowedMonachad is the address of the currently followed Monachad.
	// Empty means mineOriginal never receives entries.
	FollowedMonachad string

	// Mirror persists the lists across restarts. Nil disables persistence.
	Mirror domain.FeedMirror

	// Dedupe drops events whose transactionHash is already present in the
	// bounded window. Off by default: the relay may replay events after a
	// reconnect and the original client shows replays as-is.
	Dedupe bool

	// OnShadowEvict and OnOriginalEvict receive entries pushed out of the
	// bounded lists, oldest last. Optional.
	OnShadowEvict   func([]domain.ShadowTrade)
	OnOriginalEvict func([]domain.OriginalTrade)

	Logger *slog.Logger
}

// Store owns the four in-memory trade lists for one match. All mutation goes
// through the ingest methods and Reset; the transport layer never touches
// list state directly.
type Store struct {
	mu sync.RWMutex

	matchID   string
	maxWindow int
	viewer    string
	followed  string
	dedupe    bool

	mirror          domain.FeedMirror
	onShadowEvict   func([]domain.ShadowTrade)
	onOriginalEvict func([]domain.OriginalTrade)
	logger          *slog.Logger

	allShadow    []domain.ShadowTrade
	mineShadow   []domain.ShadowTrade
	allOriginal  []domain.OriginalTrade
	mineOriginal []domain.OriginalTrade

	// Transaction hashes currently inside the bounded windows, maintained in
	// lockstep with allShadow/allOriginal. Only populated when dedupe is on.
	seenShadow   map[string]struct{}
	seenOriginal map[string]struct{}
}

// NewStore creates a Store for cfg.MatchID and hydrates each list from its
// durable slot when a mirror is configured. Hydration failures leave the
// affected list empty.
func NewStore(ctx context.Context, cfg StoreConfig) *Store {
	if cfg.MaxWindow <= 0 {
		cfg.MaxWindow = DefaultMaxWindow
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Store{
		matchID:         cfg.MatchID,
		maxWindow:       cfg.MaxWindow,
		viewer:          cfg.Viewer,
		followed:        cfg.FollowedMonachad,
		dedupe:          cfg.Dedupe,
		mirror:          cfg.Mirror,
		onShadowEvict:   cfg.OnShadowEvict,
		onOriginalEvict: cfg.OnOriginalEvict,
		logger:          cfg.Logger.With(slog.String("component", "feed_store"), slog.String("match_id", cfg.MatchID)),
	}
	if s.dedupe {
		s.seenShadow = make(map[string]struct{}, s.maxWindow)
		s.seenOriginal = make(map[string]struct{}, s.maxWindow)
	}

	if s.mirror != nil {
		// A slot written under a larger window is truncated to the current
		// bound; the lists are newest-first so the newest entries survive.
		if trades, ok := s.mirror.LoadAllShadow(ctx, s.matchID); ok {
			if len(trades) > s.maxWindow {
				trades = trades[:s.maxWindow]
			}
			s.allShadow = trades
			s.rebuildSeenShadow()
		}
		if s.viewer != "" {
			if trades, ok := s.mirror.LoadMineShadow(ctx, s.matchID, s.viewer); ok {
				s.mineShadow = trades
			}
		}
		if trades, ok := s.mirror.LoadAllOriginal(ctx, s.matchID); ok {
			if len(trades) > s.maxWindow {
				trades = trades[:s.maxWindow]
			}
			s.allOriginal = trades
			s.rebuildSeenOriginal()
		}
		if s.followed != "" {
			if trades, ok := s.mirror.LoadMineOriginal(ctx, s.matchID, s.followed); ok {
				s.mineOriginal = trades
			}
		}
	}

	return s
}

// IngestShadow files a single copy-trade event.
func (s *Store) IngestShadow(trade domain.ShadowTrade) {
	s.IngestShadowBatch([]domain.ShadowTrade{trade})
}

// IngestShadowBatch files a batch of copy-trade events as one atomic update:
// a single prepend to allShadow followed by a single truncation, and at most
// one prepend to mineShadow. Batch order is preserved and the batch as a
// whole is newer than anything already stored.
func (s *Store) IngestShadowBatch(trades []domain.ShadowTrade) {
	s.mu.Lock()

	accepted := trades
	if s.dedupe {
		accepted = filterUnseen(trades, s.seenShadow, func(t domain.ShadowTrade) string { return t.TransactionHash })
	}
	if len(accepted) == 0 {
		s.mu.Unlock()
		return
	}

	var evicted []domain.ShadowTrade
	s.allShadow, evicted = prepend(accepted, s.allShadow, s.maxWindow)
	if s.dedupe {
		for i := range accepted {
			s.seenShadow[accepted[i].TransactionHash] = struct{}{}
		}
		for i := range evicted {
			delete(s.seenShadow, evicted[i].TransactionHash)
		}
	}
	allCopy := snapshotOf(s.allShadow)

	var mineCopy []domain.ShadowTrade
	mineChanged := false
	if s.viewer != "" {
		var mine []domain.ShadowTrade
		for i := range accepted {
			if domain.SameAddress(accepted[i].SupporterAddress, s.viewer) {
				mine = append(mine, accepted[i])
			}
		}
		if len(mine) > 0 {
			s.mineShadow = append(mine, s.mineShadow...)
			mineCopy = snapshotOf(s.mineShadow)
			mineChanged = true
		}
	}

	viewer := s.viewer
	s.mu.Unlock()

	// Saves run outside the lock, so a save can land after a concurrent
	// Reset. The slots belong to the next mount; Reset never touches them.
	if s.mirror != nil {
		s.mirror.SaveAllShadow(context.Background(), s.matchID, allCopy)
		if mineChanged {
			s.mirror.SaveMineShadow(context.Background(), s.matchID, viewer, mineCopy)
		}
	}
	if len(evicted) > 0 && s.onShadowEvict != nil {
		s.onShadowEvict(evicted)
	}
}

// IngestOriginal files a single Monachad-trade event.
func (s *Store) IngestOriginal(trade domain.OriginalTrade) {
	s.IngestOriginalBatch([]domain.OriginalTrade{trade})
}

// IngestOriginalBatch mirrors IngestShadowBatch for Monachad trades, with
// mineOriginal filtered by the followed Monachad's address.
func (s *Store) IngestOriginalBatch(trades []domain.OriginalTrade) {
	s.mu.Lock()

	accepted := trades
	if s.dedupe {
		accepted = filterUnseen(trades, s.seenOriginal, func(t domain.OriginalTrade) string { return t.TransactionHash })
	}
	if len(accepted) == 0 {
		s.mu.Unlock()
		return
	}

	var evicted []domain.OriginalTrade
	s.allOriginal, evicted = prepend(accepted, s.allOriginal, s.maxWindow)
	if s.dedupe {
		for i := range accepted {
			s.seenOriginal[accepted[i].TransactionHash] = struct{}{}
		}
		for i := range evicted {
			delete(s.seenOriginal, evicted[i].TransactionHash)
		}
	}
	allCopy := snapshotOf(s.allOriginal)

	var mineCopy []domain.OriginalTrade
	mineChanged := false
	if s.followed != "" {
		var mine []domain.OriginalTrade
		for i := range accepted {
			if domain.SameAddress(accepted[i].MonachadAddress, s.followed) {
				mine = append(mine, accepted[i])
			}
		}
		if len(mine) > 0 {
			s.mineOriginal = append(mine, s.mineOriginal...)
			mineCopy = snapshotOf(s.mineOriginal)
			mineChanged = true
		}
	}

	followed := s.followed
	s.mu.Unlock()

	if s.mirror != nil {
		s.mirror.SaveAllOriginal(context.Background(), s.matchID, allCopy)
		if mineChanged {
			s.mirror.SaveMineOriginal(context.Background(), s.matchID, followed, mineCopy)
		}
	}
	if len(evicted) > 0 && s.onOriginalEvict != nil {
		s.onOriginalEvict(evicted)
	}
}

// Reset clears all four in-memory lists. Durable slots are left untouched;
// they belong to the next mount of the same match.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.allShadow = nil
	s.mineShadow = nil
	s.allOriginal = nil
	s.mineOriginal = nil
	if s.dedupe {
		s.seenShadow = make(map[string]struct{}, s.maxWindow)
		s.seenOriginal = make(map[string]struct{}, s.maxWindow)
	}
}

// SetViewer changes the viewer identity. Already-filed mineShadow entries are
// not re-filtered; only future events are evaluated under the new identity.
// If the new identity has a durable slot for this match, mineShadow is
// rehydrated from it wholesale.
func (s *Store) SetViewer(ctx context.Context, viewer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.viewer = viewer
	if s.mirror != nil && viewer != "" {
		if trades, ok := s.mirror.LoadMineShadow(ctx, s.matchID, viewer); ok {
			s.mineShadow = trades
		}
	}
}

// SetFollowedMonachad changes the followed Monachad. Same non-retroactive
// semantics as SetViewer, against mineOriginal.
func (s *Store) SetFollowedMonachad(ctx context.Context, monachad string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.followed = monachad
	if s.mirror != nil && monachad != "" {
		if trades, ok := s.mirror.LoadMineOriginal(ctx, s.matchID, monachad); ok {
			s.mineOriginal = trades
		}
	}
}

// MatchID returns the match this store is bound to.
func (s *Store) MatchID() string {
	return s.matchID
}

// AllShadow returns a copy of the bounded copy-trade list, newest first.
func (s *Store) AllShadow() []domain.ShadowTrade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotOf(s.allShadow)
}

// MineShadow returns a copy of the viewer's copy-trade list, newest first.
func (s *Store) MineShadow() []domain.ShadowTrade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotOf(s.mineShadow)
}

// AllOriginal returns a copy of the bounded Monachad-trade list, newest first.
func (s *Store) AllOriginal() []domain.OriginalTrade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotOf(s.allOriginal)
}

// MineOriginal returns a copy of the followed Monachad's trade list, newest
// first.
func (s *Store) MineOriginal() []domain.OriginalTrade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotOf(s.mineOriginal)
}

// rebuildSeenShadow resets the shadow seen-set from the current window.
// Caller must hold s.mu (or have exclusive access during construction).
func (s *Store) rebuildSeenShadow() {
	if !s.dedupe {
		return
	}
	s.seenShadow = make(map[string]struct{}, s.maxWindow)
	for i := range s.allShadow {
		s.seenShadow[s.allShadow[i].TransactionHash] = struct{}{}
	}
}

func (s *Store) rebuildSeenOriginal() {
	if !s.dedupe {
		return
	}
	s.seenOriginal = make(map[string]struct{}, s.maxWindow)
	for i := range s.allOriginal {
		s.seenOriginal[s.allOriginal[i].TransactionHash] = struct{}{}
	}
}

// prepend puts batch (in order) ahead of list and truncates to max entries.
// It returns the new list and whatever fell off the tail.
func prepend[T any](batch, list []T, max int) (kept, evicted []T) {
	updated := make([]T, 0, len(batch)+len(list))
	updated = append(updated, batch...)
	updated = append(updated, list...)
	if len(updated) > max {
		return updated[:max], updated[max:]
	}
	return updated, nil
}

// filterUnseen drops entries whose key is already in seen or duplicated
// earlier in the same batch.
func filterUnseen[T any](batch []T, seen map[string]struct{}, key func(T) string) []T {
	out := make([]T, 0, len(batch))
	inBatch := make(map[string]struct{}, len(batch))
	for _, item := range batch {
		k := key(item)
		if _, dup := seen[k]; dup {
			continue
		}
		if _, dup := inBatch[k]; dup {
			continue
		}
		inBatch[k] = struct{}{}
		out = append(out, item)
	}
	return out
}

func snapshotOf[T any](list []T) []T {
	out := make([]T, len(list))
	copy(out, list)
	return out
}

// Compile-time interface check.
var _ domain.TradeSink = (*Store)(nil)
