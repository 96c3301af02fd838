package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"meridian-hq/meridian/pkg/rules"
)

// MemoryStore implements Store using in-memory maps. It backs unit tests
// and the one-shot CLI evaluation mode; the server uses the SQLite store.
type MemoryStore struct {
	mu          sync.RWMutex
	versions    map[string][]*VersionedEntity // key: entityType/entityId, ascending version order
	deployments map[string]*Deployment        // key: entityType/entityId/env

	writeLocks  *keyedMutex
	deployLocks *keyedMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		versions:    make(map[string][]*VersionedEntity),
		deployments: make(map[string]*Deployment),
		writeLocks:  newKeyedMutex(),
		deployLocks: newKeyedMutex(),
	}
}

func entityKey(t EntityType, id string) string {
	return string(t) + "/" + id
}

func deployKey(t EntityType, id string, env rules.Environment) string {
	return string(t) + "/" + id + "/" + string(env)
}

// CreateVersion appends a new immutable version for the entity.
func (s *MemoryStore) CreateVersion(ctx context.Context, entityType EntityType, entityID string, payload []byte, createdBy string) (*VersionedEntity, error) {
	if !entityType.Valid() {
		return nil, fmt.Errorf("unknown entity type %q", entityType)
	}

	unlock := s.writeLocks.lock(entityKey(entityType, entityID))
	defer unlock()

	// Copy the payload so later caller mutations cannot reach the stored
	// version.
	stored := make([]byte, len(payload))
	copy(stored, payload)

	s.mu.Lock()
	defer s.mu.Unlock()

	key := entityKey(entityType, entityID)
	version := len(s.versions[key]) + 1

	ve := &VersionedEntity{
		EntityType: entityType,
		EntityID:   entityID,
		Version:    version,
		Payload:    stored,
		Checksum:   PayloadChecksum(stored),
		CreatedBy:  createdBy,
		CreatedAt:  time.Now().UTC(),
	}
	s.versions[key] = append(s.versions[key], ve)

	return copyVersion(ve), nil
}

// GetVersion returns one version of an entity.
func (s *MemoryStore) GetVersion(ctx context.Context, entityType EntityType, entityID string, version int) (*VersionedEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ve := range s.versions[entityKey(entityType, entityID)] {
		if ve.Version == version {
			return copyVersion(ve), nil
		}
	}
	return nil, &VersionNotFoundError{EntityType: entityType, EntityID: entityID, Version: version}
}

// LatestVersion returns the entity's newest version. A deleted entity, one
// whose newest version is a tombstone, reads as not found.
func (s *MemoryStore) LatestVersion(ctx context.Context, entityType EntityType, entityID string) (*VersionedEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vs := s.versions[entityKey(entityType, entityID)]
	if len(vs) == 0 {
		return nil, &VersionNotFoundError{EntityType: entityType, EntityID: entityID}
	}
	latest := vs[len(vs)-1]
	if latest.Deleted() {
		return nil, &VersionNotFoundError{EntityType: entityType, EntityID: entityID}
	}
	return copyVersion(latest), nil
}

// ListVersions returns all versions of an entity in ascending order.
func (s *MemoryStore) ListVersions(ctx context.Context, entityType EntityType, entityID string) ([]*VersionedEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vs := s.versions[entityKey(entityType, entityID)]
	out := make([]*VersionedEntity, len(vs))
	for i, ve := range vs {
		out[i] = copyVersion(ve)
	}
	return out, nil
}

// Deploy repoints the environment's pointer at an existing version.
// Deploys to the same (entity, environment) are serialized last-writer-wins;
// deploys to different environments proceed independently.
func (s *MemoryStore) Deploy(ctx context.Context, entityType EntityType, entityID string, version int, env rules.Environment, actor string) error {
	unlock := s.deployLocks.lock(deployKey(entityType, entityID, env))
	defer unlock()

	ve, err := s.GetVersion(ctx, entityType, entityID, version)
	if err != nil {
		return err
	}
	if ve.Deleted() {
		return &ImmutabilityError{EntityType: entityType, EntityID: entityID, Version: version, Reason: "version is a deletion marker"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.deployments[deployKey(entityType, entityID, env)] = &Deployment{
		EntityType:  entityType,
		EntityID:    entityID,
		Environment: env,
		Version:     version,
		DeployedBy:  actor,
		DeployedAt:  time.Now().UTC(),
	}
	return nil
}

// GetDeployed returns the version currently deployed to the environment.
func (s *MemoryStore) GetDeployed(ctx context.Context, entityType EntityType, entityID string, env rules.Environment) (*VersionedEntity, error) {
	s.mu.RLock()
	d, ok := s.deployments[deployKey(entityType, entityID, env)]
	s.mu.RUnlock()

	if !ok {
		return nil, &NotDeployedError{EntityType: entityType, EntityID: entityID, Environment: env}
	}
	return s.GetVersion(ctx, entityType, entityID, d.Version)
}

// GetDeployment returns the environment's deployment pointer.
func (s *MemoryStore) GetDeployment(ctx context.Context, entityType EntityType, entityID string, env rules.Environment) (*Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.deployments[deployKey(entityType, entityID, env)]
	if !ok {
		return nil, &NotDeployedError{EntityType: entityType, EntityID: entityID, Environment: env}
	}
	cp := *d
	return &cp, nil
}

// ListDeployments returns all deployment pointers for an entity.
func (s *MemoryStore) ListDeployments(ctx context.Context, entityType EntityType, entityID string) ([]*Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Deployment
	for _, env := range rules.Environments() {
		if d, ok := s.deployments[deployKey(entityType, entityID, env)]; ok {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Environment < out[j].Environment })
	return out, nil
}

// DiscardVersion removes the entity's latest version. Compensation hook for
// the workflow; refuses when the version is not the latest or is deployed.
func (s *MemoryStore) DiscardVersion(ctx context.Context, entityType EntityType, entityID string, version int) error {
	unlock := s.writeLocks.lock(entityKey(entityType, entityID))
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	key := entityKey(entityType, entityID)
	vs := s.versions[key]
	if len(vs) == 0 || vs[len(vs)-1].Version != version {
		return &ImmutabilityError{EntityType: entityType, EntityID: entityID, Version: version, Reason: "only the latest version may be discarded"}
	}
	for _, env := range rules.Environments() {
		if d, ok := s.deployments[deployKey(entityType, entityID, env)]; ok && d.Version == version {
			return &ImmutabilityError{EntityType: entityType, EntityID: entityID, Version: version, Reason: "version is deployed to " + string(env)}
		}
	}

	s.versions[key] = vs[:len(vs)-1]
	return nil
}

// ClearDeployment removes the environment's deployment pointer.
// Compensation hook for the workflow.
func (s *MemoryStore) ClearDeployment(ctx context.Context, entityType EntityType, entityID string, env rules.Environment) error {
	unlock := s.deployLocks.lock(deployKey(entityType, entityID, env))
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.deployments, deployKey(entityType, entityID, env))
	return nil
}

// Close releases no resources for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}

func copyVersion(ve *VersionedEntity) *VersionedEntity {
	cp := *ve
	cp.Payload = make([]byte, len(ve.Payload))
	copy(cp.Payload, ve.Payload)
	return &cp
}
