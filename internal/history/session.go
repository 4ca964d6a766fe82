package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/keetahub/keeta-history-indexer/internal/constants"
	"github.com/keetahub/keeta-history-indexer/internal/models"
	"github.com/keetahub/keeta-history-indexer/internal/provider"
	"github.com/keetahub/keeta-history-indexer/internal/retry"
	"github.com/keetahub/keeta-history-indexer/internal/storage"
)

// ErrSessionClosed is returned when a page is requested from a session
// that was torn down by an account switch.
var ErrSessionClosed = errors.New("history session closed")

// SessionConfig holds per-session pipeline settings
type SessionConfig struct {
	Account        string
	PageSize       int
	FetchDepth     int
	IncludeStaples bool
	BaseTicker     string
	Now            func() time.Time
	Logger         *logrus.Logger
}

// SessionDeps contains the external sources a session reads from
type SessionDeps struct {
	Provider  storage.HistorySource
	Blocks    storage.BlockSource
	Tokens    storage.TokenMetadataSource
	MetaCache storage.OperationCache // optional read-through metadata cache
}

// Session owns every piece of mutable pipeline state for one account:
// dedupe set, token metadata map, block timestamp cache, in-flight sets,
// grouped rows and the provider cursor. Sessions are constructed on
// account activation and closed on account switch; enrichment goroutines
// re-check the session is still open before committing, so responses that
// arrive after a switch are discarded rather than leaking across accounts.
type Session struct {
	cfg  SessionConfig
	deps SessionDeps
	norm *Normalizer
	log  *logrus.Logger

	mu             sync.Mutex
	closed         bool
	seen           map[string]struct{}
	ops            []*models.NormalizedOperation
	grouped        []models.GroupedOperation
	tokenMeta      map[string]*models.TokenMetadata
	blockTimes     map[string]string
	inflightTokens map[string]struct{}
	inflightBlocks map[string]struct{}
	cursor         string
	hasMore        bool
	fetched        bool
}

// Page is one page of display-ready rows
type Page struct {
	Items    []models.GroupedOperation `json:"items"`
	Page     int                       `json:"page"`
	PageSize int                       `json:"pageSize"`
	HasMore  bool                      `json:"hasMore"`

	// PendingTimestamps counts rows still carrying a placeholder date;
	// zero means the page is fully resolved.
	PendingTimestamps int `json:"pendingTimestamps"`
}

// NewSession creates a session for one account
func NewSession(cfg SessionConfig, deps SessionDeps) *Session {
	if cfg.PageSize <= 0 {
		cfg.PageSize = constants.PageSize
	}
	if cfg.FetchDepth <= 0 {
		cfg.FetchDepth = constants.FetchDepth
	}
	if cfg.BaseTicker == "" {
		cfg.BaseTicker = constants.BaseTokenTicker
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	return &Session{
		cfg:  cfg,
		deps: deps,
		norm: &Normalizer{Account: cfg.Account, BaseTicker: cfg.BaseTicker, Now: cfg.Now},
		log:  cfg.Logger,

		seen:           make(map[string]struct{}),
		tokenMeta:      make(map[string]*models.TokenMetadata),
		blockTimes:     make(map[string]string),
		inflightTokens: make(map[string]struct{}),
		inflightBlocks: make(map[string]struct{}),
	}
}

// Account returns the account key this session serves
func (s *Session) Account() string {
	return s.cfg.Account
}

// Close tears the session down. In-flight lookups finish but their results
// are dropped at commit time.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// GetPage returns page n (1-based) of the grouped, time-sorted history.
// Already-fetched rows are served from memory; the underlying cursor fetch
// runs only when the requested page exceeds available rows and the
// provider reports more. All pages are retained, so backward navigation
// never refetches (cursors are not idempotent).
func (s *Session) GetPage(ctx context.Context, page int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	need := page*s.cfg.PageSize + 1

	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, ErrSessionClosed
		}
		enough := len(s.grouped) >= need || (s.fetched && !s.hasMore)
		s.mu.Unlock()
		if enough {
			break
		}
		if err := s.loadMore(ctx); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := (page - 1) * s.cfg.PageSize
	end := start + s.cfg.PageSize
	if start > len(s.grouped) {
		start = len(s.grouped)
	}
	if end > len(s.grouped) {
		end = len(s.grouped)
	}

	items := make([]models.GroupedOperation, end-start)
	copy(items, s.grouped[start:end])

	pending := 0
	for _, row := range items {
		if row.DatePlaceholder {
			pending++
		}
	}

	return &Page{
		Items:             items,
		Page:              page,
		PageSize:          s.cfg.PageSize,
		HasMore:           len(s.grouped) > page*s.cfg.PageSize || s.hasMore,
		PendingTimestamps: pending,
	}, nil
}

// FetchLatest pulls the newest provider page, runs it through the
// pipeline and returns the grouped rows containing operations not seen
// before. Used by the background poller.
func (s *Session) FetchLatest(ctx context.Context) ([]models.GroupedOperation, error) {
	resp, err := s.deps.Provider.History(ctx, s.historyOptions(""))
	if err != nil {
		return nil, err
	}

	added := s.ingest(resp.Records)
	if len(added) == 0 {
		return nil, nil
	}

	s.hydrate(ctx)
	s.regroup()

	hashes := make(map[string]struct{}, len(added))
	for _, op := range added {
		hashes[op.BlockHash] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []models.GroupedOperation
	for _, row := range s.grouped {
		if _, ok := hashes[row.BlockHash]; ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (s *Session) historyOptions(cursor string) provider.HistoryOptions {
	return provider.HistoryOptions{
		Account:              s.cfg.Account,
		Depth:                s.cfg.FetchDepth,
		Cursor:               cursor,
		IncludeOperations:    true,
		IncludeTokenMetadata: true,
	}
}

// loadMore advances the provider cursor by one fetch and runs the new
// records through extraction, normalization, dedup, hydration and
// grouping.
func (s *Session) loadMore(ctx context.Context) error {
	s.mu.Lock()
	cursor := s.cursor
	s.mu.Unlock()

	resp, err := s.deps.Provider.History(ctx, s.historyOptions(cursor))
	if err != nil {
		return fmt.Errorf("history fetch: %w", err)
	}

	added := s.ingest(resp.Records)

	s.mu.Lock()
	s.fetched = true
	s.hasMore = resp.HasMore
	// a provider stuck on the same cursor with nothing new would loop forever
	if len(resp.Records) == 0 && resp.Cursor == cursor {
		s.hasMore = false
	}
	s.cursor = resp.Cursor
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"account": s.cfg.Account,
		"records": len(resp.Records),
		"added":   len(added),
	}).Debug("ingested history page")

	s.hydrate(ctx)
	s.regroup()
	return nil
}

// ingest extracts, normalizes and dedupes raw records, appending the
// survivors. Cached metadata and block timestamps are applied immediately
// so repeat tokens need no second lookup.
func (s *Session) ingest(records []models.RawRecord) []*models.NormalizedOperation {
	candidates := ExtractCandidates(records, ExtractOptions{IncludeStaples: s.cfg.IncludeStaples})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	var added []*models.NormalizedOperation
	for _, c := range candidates {
		op, ok := s.norm.Normalize(c)
		if !ok {
			continue
		}

		key := dedupeKey(op)
		if _, dup := s.seen[key]; dup {
			// expected: the same operation reappears across pages and sources
			continue
		}
		s.seen[key] = struct{}{}

		if entry, ok := s.tokenMeta[tokenLookupID(op)]; ok {
			applyTokenMeta(op, entry)
		}
		if iso, ok := s.blockTimes[op.BlockHash]; ok && op.DatePlaceholder {
			op.BlockDate = iso
			op.DatePlaceholder = false
		}

		s.ops = append(s.ops, op)
		added = append(added, op)
	}
	return added
}

// hydrate resolves missing token metadata and block timestamps. The two
// concerns run concurrently and merge idempotently keyed by token id and
// block hash, so settlement order is irrelevant. Failures degrade to
// unresolved fields; nothing here aborts the batch.
func (s *Session) hydrate(ctx context.Context) {
	tokens, blocks := s.pendingWork()
	if len(tokens) == 0 && len(blocks) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.resolveTokens(gctx, tokens)
		return nil
	})
	g.Go(func() error {
		s.resolveBlocks(gctx, blocks)
		return nil
	})
	_ = g.Wait()
}

// pendingWork collects unresolved token ids (with any inline metadata
// blob) and placeholder block hashes, marking both in-flight so the same
// resource is never requested twice concurrently.
func (s *Session) pendingWork() (map[string]string, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens := make(map[string]string)
	var blocks []string
	if s.closed {
		return tokens, blocks
	}

	for _, op := range s.ops {
		if needsLookup(op, s.cfg.BaseTicker) {
			id := op.Token
			_, known := s.tokenMeta[id]
			_, busy := s.inflightTokens[id]
			if !known && !busy {
				s.inflightTokens[id] = struct{}{}
				blob := ""
				if op.TokenMetadata != nil {
					blob = op.TokenMetadata.MetadataBase64
				}
				tokens[id] = blob
			}
		}

		if op.DatePlaceholder {
			hash := op.BlockHash
			_, known := s.blockTimes[hash]
			_, busy := s.inflightBlocks[hash]
			if !known && !busy {
				s.inflightBlocks[hash] = struct{}{}
				blocks = append(blocks, hash)
			}
		}
	}
	return tokens, blocks
}

// resolveTokens fetches metadata for each pending token. Metadata lookups
// are not retried; a failure just leaves ticker/decimals unresolved.
func (s *Session) resolveTokens(ctx context.Context, tokens map[string]string) {
	for id, blob := range tokens {
		entry, err := s.lookupTokenMeta(ctx, id, blob)

		s.mu.Lock()
		delete(s.inflightTokens, id)
		s.mu.Unlock()

		if err != nil {
			s.log.WithError(err).WithField("token", id).Debug("token metadata unresolved")
			continue
		}
		s.commitTokenMeta(id, entry)
	}
}

func (s *Session) lookupTokenMeta(ctx context.Context, id, blob string) (*models.TokenMetadata, error) {
	if s.deps.MetaCache != nil {
		if cached, err := s.deps.MetaCache.GetTokenMeta(ctx, id); err == nil && cached != nil {
			return cached, nil
		}
	}

	fetched, err := s.deps.Tokens.GetTokenMeta(ctx, id)
	if err != nil {
		return nil, err
	}

	entry := &models.TokenMetadata{}

	// the base64 blob decodes first, then the service fields overlay
	// without overwriting anything already known
	if blob == "" {
		blob = fetched.MetadataBase64
	}
	if blob != "" {
		if decoded, err := decodeMetadataBlob(blob); err == nil {
			mergeTokenMeta(entry, decoded)
		} else {
			s.log.WithError(err).WithField("token", id).Debug("bad metadata blob")
		}
	}
	mergeTokenMeta(entry, &models.TokenMetadata{
		Name:     fetched.Name,
		Ticker:   fetched.Ticker,
		Decimals: fetched.Decimals,
	})
	if entry.Decimals != nil && entry.FieldType == "" {
		entry.FieldType = models.FieldTypeDecimals
	}

	if s.deps.MetaCache != nil {
		_ = s.deps.MetaCache.SetTokenMeta(ctx, id, entry)
	}
	return entry, nil
}

func (s *Session) commitTokenMeta(id string, entry *models.TokenMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		// response for a switched-away account; drop it
		return
	}

	s.tokenMeta[id] = entry
	for _, op := range s.ops {
		if tokenLookupID(op) == id {
			applyTokenMeta(op, entry)
		}
	}
}

// resolveBlocks fetches each pending block and extracts its timestamp,
// retrying because explorer responses are unpredictable across versions.
func (s *Session) resolveBlocks(ctx context.Context, blocks []string) {
	for _, hash := range blocks {
		var iso string
		err := retry.Do(ctx, constants.BlockLookupAttempts, retry.Fixed(constants.BlockLookupBackoff), func(ctx context.Context) error {
			block, err := s.deps.Blocks.GetBlock(ctx, hash)
			if err != nil {
				return err
			}
			ts, ok := timestampFromBlock(block)
			if !ok {
				return fmt.Errorf("no usable timestamp in block %s", hash)
			}
			iso = ts.UTC().Format(time.RFC3339)
			return nil
		})

		s.mu.Lock()
		delete(s.inflightBlocks, hash)
		s.mu.Unlock()

		if err != nil {
			s.log.WithError(err).WithField("block", hash).Debug("block timestamp unresolved")
			continue
		}
		s.commitBlockTime(hash, iso)
	}
}

func (s *Session) commitBlockTime(hash, iso string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.blockTimes[hash] = iso
	for _, op := range s.ops {
		if op.BlockHash == hash && op.DatePlaceholder {
			op.BlockDate = iso
			op.DatePlaceholder = false
		}
	}
}

func (s *Session) regroup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.grouped = GroupOperations(s.ops)
}
