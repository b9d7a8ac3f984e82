// Package testutil provides in-memory fakes for pipeline tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/bryanwahyu/scriptsage/internal/domain/analysis"
	"github.com/bryanwahyu/scriptsage/internal/domain/cache"
	"github.com/bryanwahyu/scriptsage/internal/domain/embedding"
	"github.com/bryanwahyu/scriptsage/internal/domain/fingerprint"
)

// MemStore is an in-memory cache.Store with the same atomicity contract
// as the SQL-backed repositories: Reserve is a single insert-if-absent
// under one mutex.
type MemStore struct {
	mu        sync.Mutex
	entries   map[fingerprint.Fingerprint]*cache.Entry
	artifacts map[string]fingerprint.Fingerprint

	// FailAttachAnalysis, when set, makes AttachAnalysis fail for the
	// given fingerprints to exercise failure paths.
	FailAttachAnalysis map[fingerprint.Fingerprint]error
}

func NewMemStore() *MemStore {
	return &MemStore{
		entries:   make(map[fingerprint.Fingerprint]*cache.Entry),
		artifacts: make(map[string]fingerprint.Fingerprint),
	}
}

func (s *MemStore) Lookup(_ context.Context, fp fingerprint.Fingerprint) (*cache.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[fp]
	if !ok {
		return nil, cache.ErrNotFound
	}
	return copyEntry(e), nil
}

func (s *MemStore) Reserve(_ context.Context, fp fingerprint.Fingerprint) (*cache.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[fp]; ok {
		return copyEntry(e), false, nil
	}
	now := time.Now().UTC()
	e := &cache.Entry{Fingerprint: fp, CreatedAt: now, UpdatedAt: now}
	s.entries[fp] = e
	return copyEntry(e), true, nil
}

func (s *MemStore) AttachAnalysis(_ context.Context, fp fingerprint.Fingerprint, res *analysis.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.FailAttachAnalysis[fp]; err != nil {
		return err
	}
	e, ok := s.entries[fp]
	if !ok {
		return cache.ErrNotFound
	}
	cp := *res
	e.Analysis = &cp
	e.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemStore) AttachEmbedding(_ context.Context, fp fingerprint.Fingerprint, vec embedding.Vector) error {
	if err := vec.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[fp]
	if !ok {
		return cache.ErrNotFound
	}
	e.Embedding = append(embedding.Vector(nil), vec...)
	e.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemStore) LinkArtifact(_ context.Context, fp fingerprint.Fingerprint, artifactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[fp]
	if !ok {
		return cache.ErrNotFound
	}
	for _, id := range e.ArtifactIDs {
		if id == artifactID {
			return nil
		}
	}
	e.ArtifactIDs = append(e.ArtifactIDs, artifactID)
	s.artifacts[artifactID] = fp
	return nil
}

func (s *MemStore) FingerprintByArtifact(_ context.Context, artifactID string) (fingerprint.Fingerprint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fp, ok := s.artifacts[artifactID]
	if !ok {
		return "", cache.ErrNotFound
	}
	return fp, nil
}

func copyEntry(e *cache.Entry) *cache.Entry {
	cp := *e
	cp.ArtifactIDs = append([]string(nil), e.ArtifactIDs...)
	cp.Embedding = append(embedding.Vector(nil), e.Embedding...)
	if e.Analysis != nil {
		a := *e.Analysis
		cp.Analysis = &a
	}
	return &cp
}
