package policy

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Store persists the policy document on local disk. Every mutation does an
// independent load-modify-save of the whole document, serialized per tenant
// so concurrent admin commands against the same guild cannot lose updates.
type Store struct {
	path   string
	logger *slog.Logger

	// defaultDomains seed a guild's allow-list on first reference.
	defaultDomains []string

	// locks holds one mutex per tenant id, created lazily.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a policy store backed by the JSON document at path.
func NewStore(path string, defaultDomains []string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:           path,
		logger:         logger.With("component", "policy-store"),
		defaultDomains: append([]string(nil), defaultDomains...),
		locks:          make(map[string]*sync.Mutex),
	}
}

// Path returns the location of the persisted document.
func (s *Store) Path() string { return s.path }

// tenantLock returns the mutex for a tenant id, creating it on first use.
func (s *Store) tenantLock(tenantID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[tenantID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[tenantID] = l
	}
	return l
}

// Load reads the durable document. A missing file yields an empty document
// (persisted on first mutation). A malformed file is treated as empty: it is
// logged and never crashes the caller.
func (s *Store) Load() Document {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to read policy document, starting empty", "path", s.path, "error", err)
		}
		return Document{}
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("malformed policy document, starting empty", "path", s.path, "error", err)
		return Document{}
	}
	if doc == nil {
		doc = Document{}
	}
	return doc
}

// Save serializes the full document atomically: it writes to a temporary
// file in the same directory and renames it over the target, so a reader
// never observes a half-written document.
func (s *Store) Save(doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling policy document: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".policy-*.json")
	if err != nil {
		return fmt.Errorf("creating temp policy file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing policy document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp policy file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing policy document: %w", err)
	}
	return nil
}

// GetOrCreate returns the policy for a tenant, materializing and persisting
// a default entry if none exists. The returned policy is a copy; callers
// never mutate store-owned state directly.
func (s *Store) GetOrCreate(tenantID string) (*TenantPolicy, error) {
	lock := s.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()

	doc := s.Load()
	if p, ok := doc[tenantID]; ok {
		return p.clone(), nil
	}
	p := s.defaultPolicy()
	doc[tenantID] = p
	if err := s.Save(doc); err != nil {
		return nil, fmt.Errorf("persisting default policy for %s: %w", tenantID, err)
	}
	s.logger.Info("created default policy", "tenant", tenantID)
	return p.clone(), nil
}

func (s *Store) defaultPolicy() *TenantPolicy {
	p := &TenantPolicy{
		Extensions: append([]string(nil), DefaultExtensions...),
	}
	for _, d := range s.defaultDomains {
		if nd := NormalizeDomain(d); nd != "" {
			p.Domains, _ = addValue(p.Domains, nd)
		}
	}
	return p
}

// AddDomain adds a domain to a tenant's allow-list. Returns whether the
// list actually changed; a repeat add is a reported no-op.
func (s *Store) AddDomain(tenantID, domain string) (bool, error) {
	domain = NormalizeDomain(domain)
	if domain == "" {
		return false, errors.New("empty domain")
	}
	return s.mutate(tenantID, func(p *TenantPolicy) bool {
		var changed bool
		p.Domains, changed = addValue(p.Domains, domain)
		return changed
	})
}

// RemoveDomain removes a domain from a tenant's allow-list.
func (s *Store) RemoveDomain(tenantID, domain string) (bool, error) {
	domain = NormalizeDomain(domain)
	if domain == "" {
		return false, errors.New("empty domain")
	}
	return s.mutate(tenantID, func(p *TenantPolicy) bool {
		var changed bool
		p.Domains, changed = removeValue(p.Domains, domain)
		return changed
	})
}

// AddExtension adds an extension (with or without leading dot) to a
// tenant's allow-list.
func (s *Store) AddExtension(tenantID, ext string) (bool, error) {
	ext = NormalizeExtension(ext)
	if ext == "" {
		return false, errors.New("empty extension")
	}
	return s.mutate(tenantID, func(p *TenantPolicy) bool {
		var changed bool
		p.Extensions, changed = addValue(p.Extensions, ext)
		return changed
	})
}

// RemoveExtension removes an extension from a tenant's allow-list.
func (s *Store) RemoveExtension(tenantID, ext string) (bool, error) {
	ext = NormalizeExtension(ext)
	if ext == "" {
		return false, errors.New("empty extension")
	}
	return s.mutate(tenantID, func(p *TenantPolicy) bool {
		var changed bool
		p.Extensions, changed = removeValue(p.Extensions, ext)
		return changed
	})
}

// mutate applies fn to the tenant's policy under its lock and persists the
// whole document only when fn reports a change. A no-op never rewrites the
// file.
func (s *Store) mutate(tenantID string, fn func(*TenantPolicy) bool) (bool, error) {
	lock := s.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()

	doc := s.Load()
	p, ok := doc[tenantID]
	created := false
	if !ok {
		p = s.defaultPolicy()
		doc[tenantID] = p
		created = true
	}
	changed := fn(p)
	if !changed && !created {
		return false, nil
	}
	if err := s.Save(doc); err != nil {
		return changed, fmt.Errorf("persisting policy for %s: %w", tenantID, err)
	}
	return changed, nil
}
