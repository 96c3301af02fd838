// Package source seeds the versioned deployment store from ruleset and
// dictionary definition files on disk.
//
// The loader walks a directory of YAML files, sniffs each file as either a
// ruleset or a data dictionary, and publishes it into the store as a new
// version deployed to the configured environment. Loads are idempotent: a
// file whose content matches the entity's latest stored version is skipped.
//
// The watcher wraps the loader with fsnotify so that edits to the directory
// are picked up at runtime. Events are debounced to absorb editor save
// storms; a reload failure is logged and the previous deployed versions stay
// in effect.
package source
