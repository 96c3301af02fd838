package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"meridian-hq/meridian/pkg/dictionary"
	"meridian-hq/meridian/pkg/rules"
	"meridian-hq/meridian/pkg/store"
)

// LoaderConfig contains configuration for the definition file loader.
type LoaderConfig struct {
	// Path is the file or directory to load definitions from.
	Path string

	// Environment is the deployment target loaded definitions are published
	// to. Default: DEV.
	Environment rules.Environment

	// Actor is recorded as the creator/deployer of seeded versions.
	// Default: "file-loader".
	Actor string
}

// ApplyDefaults fills unset fields with defaults.
func (c *LoaderConfig) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = rules.EnvDev
	}
	if c.Actor == "" {
		c.Actor = "file-loader"
	}
}

// Loader publishes ruleset and dictionary definition files into the
// versioned deployment store.
type Loader struct {
	store  store.Store
	config *LoaderConfig
	logger *slog.Logger
}

// NewLoader creates a definition file loader.
func NewLoader(st store.Store, config *LoaderConfig, logger *slog.Logger) *Loader {
	if config == nil {
		config = &LoaderConfig{}
	}
	config.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		store:  st,
		config: config,
		logger: logger.With("component", "source-loader"),
	}
}

// Sync loads every definition file under the configured path and publishes
// each as a deployed version. Files that fail to parse are skipped with an
// error log; Sync returns an error only when the path itself is unusable.
// It returns the number of definitions published (skipping unchanged ones).
func (l *Loader) Sync(ctx context.Context) (int, error) {
	info, err := os.Stat(l.config.Path)
	if err != nil {
		return 0, fmt.Errorf("definition path %q: %w", l.config.Path, err)
	}

	var paths []string
	if info.IsDir() {
		err = filepath.Walk(l.config.Path, func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if fi.IsDir() {
				if strings.HasPrefix(filepath.Base(path), ".") && path != l.config.Path {
					return filepath.SkipDir
				}
				return nil
			}
			if isDefinitionFile(path) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("failed to scan definition directory %q: %w", l.config.Path, err)
		}
	} else {
		paths = []string{l.config.Path}
	}

	published := 0
	for _, path := range paths {
		changed, err := l.LoadFile(ctx, path)
		if err != nil {
			l.logger.Error("Failed to load definition file",
				"path", path,
				"error", err,
			)
			continue
		}
		if changed {
			published++
		}
	}

	l.logger.Info("Definition sync complete",
		"path", l.config.Path,
		"files", len(paths),
		"published", published,
		"environment", string(l.config.Environment),
	)
	return published, nil
}

// LoadFile parses a single definition file and publishes it. It returns true
// when a new version was created, false when the stored latest version
// already matches the file content.
func (l *Loader) LoadFile(ctx context.Context, path string) (bool, error) {
	kind, err := sniffKind(path)
	if err != nil {
		return false, err
	}

	switch kind {
	case store.EntityTypeRuleset:
		rs, err := rules.ParseRulesetFile(path)
		if err != nil {
			return false, err
		}
		return l.publish(ctx, store.EntityTypeRuleset, rs.ID, rs)

	case store.EntityTypeDictionary:
		d, err := dictionary.ParseDictionaryFile(path)
		if err != nil {
			return false, err
		}
		return l.publish(ctx, store.EntityTypeDictionary, d.ID, d)
	}
	return false, fmt.Errorf("definition file %q: unrecognized content", path)
}

// publish creates a new version for the entity and deploys it, skipping
// the write when the latest stored payload is identical.
func (l *Loader) publish(ctx context.Context, entityType store.EntityType, entityID string, v any) (bool, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("failed to encode %s %q: %w", entityType, entityID, err)
	}

	latest, err := l.store.LatestVersion(ctx, entityType, entityID)
	if err != nil {
		var notFound *store.VersionNotFoundError
		if !errors.As(err, &notFound) {
			return false, err
		}
	}
	if latest != nil && latest.Checksum == store.PayloadChecksum(payload) {
		// Ensure the pointer exists even when the content is unchanged, so a
		// cleared environment recovers on the next sync.
		if _, err := l.store.GetDeployment(ctx, entityType, entityID, l.config.Environment); err == nil {
			return false, nil
		}
		if err := l.store.Deploy(ctx, entityType, entityID, latest.Version, l.config.Environment, l.config.Actor); err != nil {
			return false, err
		}
		return false, nil
	}

	created, err := l.store.CreateVersion(ctx, entityType, entityID, payload, l.config.Actor)
	if err != nil {
		return false, err
	}
	if err := l.store.Deploy(ctx, entityType, entityID, created.Version, l.config.Environment, l.config.Actor); err != nil {
		return false, err
	}

	l.logger.Info("Published definition",
		"entity_type", string(entityType),
		"entity_id", entityID,
		"version", created.Version,
		"environment", string(l.config.Environment),
	)
	return true, nil
}

// sniffKind decides whether a file defines a ruleset or a data dictionary by
// looking at its top-level keys: rulesets carry `rules`, dictionaries carry
// `fields`.
func sniffKind(path string) (store.EntityType, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read definition file %q: %w", path, err)
	}

	var top map[string]any
	if err := yaml.Unmarshal(data, &top); err != nil {
		return "", fmt.Errorf("failed to parse definition file %q: %w", path, err)
	}

	_, hasRules := top["rules"]
	_, hasFields := top["fields"]
	switch {
	case hasRules && !hasFields:
		return store.EntityTypeRuleset, nil
	case hasFields && !hasRules:
		return store.EntityTypeDictionary, nil
	}
	return "", fmt.Errorf("definition file %q: expected exactly one of 'rules' or 'fields'", path)
}

func isDefinitionFile(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
