package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"meridian-hq/meridian/pkg/rules"
)

// EntityType identifies the kind of governed entity a version belongs to.
type EntityType string

const (
	EntityTypeRule       EntityType = "RULE"
	EntityTypeRuleset    EntityType = "RULESET"
	EntityTypeFeature    EntityType = "FEATURE"
	EntityTypeModel      EntityType = "MODEL"
	EntityTypeDataField  EntityType = "DATA_FIELD"
	EntityTypeDictionary EntityType = "DATA_DICTIONARY"
)

// EntityTypes lists all governed entity types.
func EntityTypes() []EntityType {
	return []EntityType{
		EntityTypeRule,
		EntityTypeRuleset,
		EntityTypeFeature,
		EntityTypeModel,
		EntityTypeDataField,
		EntityTypeDictionary,
	}
}

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	switch t {
	case EntityTypeRule, EntityTypeRuleset, EntityTypeFeature,
		EntityTypeModel, EntityTypeDataField, EntityTypeDictionary:
		return true
	}
	return false
}

// VersionedEntity is one immutable version of a governed entity.
type VersionedEntity struct {
	EntityType EntityType      `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Version    int             `json:"version"`
	Payload    json.RawMessage `json:"payload"`

	// Checksum is the SHA-256 of the payload, recorded at creation so that
	// immutability can be verified after the fact.
	Checksum string `json:"checksum"`

	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// PayloadChecksum computes the checksum recorded for a version payload.
func PayloadChecksum(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Tombstone is the payload of a deletion marker version. Deleting an entity
// appends a tombstone instead of erasing history; the marked entity is
// retired from reads while every prior version stays queryable.
var Tombstone = json.RawMessage(`{"deleted":true}`)

// IsTombstone reports whether a version payload is a deletion marker.
func IsTombstone(payload []byte) bool {
	var marker struct {
		Deleted bool `json:"deleted"`
	}
	if err := json.Unmarshal(payload, &marker); err != nil {
		return false
	}
	return marker.Deleted
}

// Deleted reports whether this version is a deletion marker.
func (ve *VersionedEntity) Deleted() bool {
	return IsTombstone(ve.Payload)
}

// Deployment records which version of an entity an environment points at.
type Deployment struct {
	EntityType  EntityType        `json:"entityType"`
	EntityID    string            `json:"entityId"`
	Environment rules.Environment `json:"environment"`
	Version     int               `json:"version"`
	DeployedBy  string            `json:"deployedBy"`
	DeployedAt  time.Time         `json:"deployedAt"`
}

// Store is the versioned deployment store contract.
//
// CreateVersion appends a new immutable version and returns it; the version
// number is one greater than the entity's current latest. Deploy repoints
// an environment's pointer at an existing version; it never mutates version
// content and is idempotent when the pointer already targets that version.
// Tombstone versions cannot be deployed, and LatestVersion treats an entity
// whose newest version is a tombstone as not found. GetVersion still serves
// every version, tombstones included, so history stays auditable.
//
// DiscardVersion and ClearDeployment exist solely as compensation hooks for
// the maker-checker workflow's apply+audit atomicity: when an audit write
// fails after a change was applied, the workflow uses them to back the
// change out before surfacing the failure. DiscardVersion only removes the
// entity's latest version and refuses if any environment points at it.
//
// Implementations must serialize writes per (entityType, entityId) and per
// (entityType, entityId, environment), and must be safe for concurrent use.
type Store interface {
	CreateVersion(ctx context.Context, entityType EntityType, entityID string, payload []byte, createdBy string) (*VersionedEntity, error)
	GetVersion(ctx context.Context, entityType EntityType, entityID string, version int) (*VersionedEntity, error)
	LatestVersion(ctx context.Context, entityType EntityType, entityID string) (*VersionedEntity, error)
	ListVersions(ctx context.Context, entityType EntityType, entityID string) ([]*VersionedEntity, error)

	Deploy(ctx context.Context, entityType EntityType, entityID string, version int, env rules.Environment, actor string) error
	GetDeployed(ctx context.Context, entityType EntityType, entityID string, env rules.Environment) (*VersionedEntity, error)
	GetDeployment(ctx context.Context, entityType EntityType, entityID string, env rules.Environment) (*Deployment, error)
	ListDeployments(ctx context.Context, entityType EntityType, entityID string) ([]*Deployment, error)

	DiscardVersion(ctx context.Context, entityType EntityType, entityID string, version int) error
	ClearDeployment(ctx context.Context, entityType EntityType, entityID string, env rules.Environment) error

	Close() error
}
