package history

import (
	"context"
	"sync"

	"github.com/keetahub/keeta-history-indexer/internal/flags"
)

// Manager owns one session per account key. Sessions are created lazily
// on first use and torn down explicitly; no state is shared between
// sessions for different accounts.
type Manager struct {
	base  SessionConfig
	deps  SessionDeps
	flags *flags.Store

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a manager. base acts as a template; Account is set
// per session. flagStore may be nil, in which case defaults apply.
func NewManager(base SessionConfig, deps SessionDeps, flagStore *flags.Store) *Manager {
	return &Manager{
		base:     base,
		deps:     deps,
		flags:    flagStore,
		sessions: make(map[string]*Session),
	}
}

// Session returns the session for an account, creating it on first use.
// Pipeline flags are snapshotted at construction; a flag flip applies to
// sessions created afterwards, never to one mid-flight.
func (m *Manager) Session(ctx context.Context, account string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[account]; ok {
		return s
	}

	cfg := m.base
	cfg.Account = account
	cfg.IncludeStaples = true
	if m.flags != nil {
		cfg.IncludeStaples = m.flags.GetBool(ctx, flags.FlagIncludeStaples, true)
	}

	s := NewSession(cfg, m.deps)
	m.sessions[account] = s
	return s
}

// Reset closes and removes the session for an account. The next Session
// call starts from a clean dedupe set, metadata cache and cursor.
func (m *Manager) Reset(account string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[account]; ok {
		s.Close()
		delete(m.sessions, account)
	}
}

// Close tears down every session.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for account, s := range m.sessions {
		s.Close()
		delete(m.sessions, account)
	}
}
