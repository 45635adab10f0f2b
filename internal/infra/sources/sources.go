// Package sources adapts each storage backend to the uniform
// domain.Source capability the cascade and audit engine iterate over.
package sources

import (
	"context"
	"encoding/json"
	"fmt"

	"certus/internal/domain"
	"certus/internal/infra/cachemem"
	"certus/internal/infra/objectstore"
)

// ProofObjectKey is where the mirror copy of a proof lives in an object
// store.
func ProofObjectKey(hash string) string {
	return "proofs/" + hash + ".json"
}

type ObjectStoreSource struct {
	Store objectstore.Store
}

func (s *ObjectStoreSource) Name() string {
	return "primary"
}

func (s *ObjectStoreSource) FetchProof(ctx context.Context, hash string) (*domain.Proof, error) {
	data, err := s.Store.GetObject(ctx, ProofObjectKey(hash))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, domain.ErrNotFound
	}
	var proof domain.Proof
	if err := json.Unmarshal(data, &proof); err != nil {
		return nil, fmt.Errorf("corrupt proof object: %w", err)
	}
	return &proof, nil
}

type ProofGetter interface {
	GetByHash(ctx context.Context, hash string) (*domain.Proof, error)
}

type DatastoreSource struct {
	Proofs ProofGetter
}

func (s *DatastoreSource) Name() string {
	return "datastore"
}

func (s *DatastoreSource) FetchProof(ctx context.Context, hash string) (*domain.Proof, error) {
	return s.Proofs.GetByHash(ctx, hash)
}

type CacheSource struct {
	Cache *cachemem.Cache
}

func (s *CacheSource) Name() string {
	return "cache"
}

func (s *CacheSource) FetchProof(ctx context.Context, hash string) (*domain.Proof, error) {
	proof, ok := s.Cache.Get(ctx, hash)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return proof, nil
}
