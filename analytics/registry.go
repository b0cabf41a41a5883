// Package analytics compiles user-authored report specs into parameterized
// SQL against a fixed registry of data sources and executes them with a row
// cap and a wall-clock timeout. Every field, operator, aggregation and date
// transform a spec references is checked against an explicit whitelist; user
// values only ever reach the store as bound parameters, never as SQL text.
package analytics

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
)

//go:embed sources.json
var defaultSources []byte

// FieldType is the semantic type of a registered field.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldDate    FieldType = "date"
	FieldBoolean FieldType = "boolean"
)

// Dialect identifies the SQL flavor a physical store speaks. Date transform
// templates differ per dialect; placeholders ($n) do not.
type Dialect string

const (
	DialectPostgres   Dialect = "postgres"
	DialectClickHouse Dialect = "clickhouse"
)

// FieldDefinition describes one queryable column of a source. A field name is
// meaningless outside its owning source.
type FieldDefinition struct {
	Type     FieldType `json:"type"`
	Label    string    `json:"label"`
	Category string    `json:"category"`
}

// SourceDefinition describes one pre-registered table or view eligible for
// querying, and the exhaustive set of fields that may be referenced on it.
type SourceDefinition struct {
	Key         string
	Table       string
	Store       string
	Label       string
	Description string
	Fields      map[string]FieldDefinition
}

// StoreDefinition describes a physical store a source routes to.
type StoreDefinition struct {
	Dialect Dialect
}

// Registry is the static catalog of permitted stores and sources. It is
// loaded once at process start and never mutated, so all lookups are safe to
// call concurrently without synchronization.
type Registry struct {
	stores  map[string]StoreDefinition
	sources map[string]SourceDefinition
}

type registryConfig struct {
	Stores  map[string]storeConfig  `json:"stores"`
	Sources map[string]sourceConfig `json:"sources"`
}

type storeConfig struct {
	Dialect string `json:"dialect"`
}

type sourceConfig struct {
	Table       string                     `json:"table"`
	Store       string                     `json:"store"`
	Label       string                     `json:"label"`
	Description string                     `json:"description"`
	Fields      map[string]FieldDefinition `json:"fields"`
}

// identifierRE constrains every name that ends up in SQL text without a
// placeholder: source keys, table names, field names, aliases.
var identifierRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var validFieldTypes = map[FieldType]bool{
	FieldString:  true,
	FieldNumber:  true,
	FieldDate:    true,
	FieldBoolean: true,
}

var validDialects = map[Dialect]bool{
	DialectPostgres:   true,
	DialectClickHouse: true,
}

// DefaultRegistry loads the registry embedded in the binary.
func DefaultRegistry() (*Registry, error) {
	return LoadRegistry(defaultSources)
}

// LoadRegistryFile loads a registry from a JSON file on disk, for deployments
// that override the embedded source catalog.
func LoadRegistryFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources config: %w", err)
	}
	return LoadRegistry(data)
}

// LoadRegistry parses and validates a registry config. Every table and field
// name is checked against the identifier charset here so that nothing the
// builders later inline into SQL text can carry injection payloads, even from
// a misconfigured catalog.
func LoadRegistry(data []byte) (*Registry, error) {
	var cfg registryConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse sources config: %w", err)
	}
	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("sources config declares no sources")
	}

	stores := make(map[string]StoreDefinition, len(cfg.Stores))
	for key, sc := range cfg.Stores {
		d := Dialect(sc.Dialect)
		if !validDialects[d] {
			return nil, fmt.Errorf("store %q: unknown dialect %q", key, sc.Dialect)
		}
		stores[key] = StoreDefinition{Dialect: d}
	}

	sources := make(map[string]SourceDefinition, len(cfg.Sources))
	for key, sc := range cfg.Sources {
		if !identifierRE.MatchString(key) {
			return nil, fmt.Errorf("source %q: key is not a valid identifier", key)
		}
		if !identifierRE.MatchString(sc.Table) {
			return nil, fmt.Errorf("source %q: table %q is not a valid identifier", key, sc.Table)
		}
		if _, ok := stores[sc.Store]; !ok {
			return nil, fmt.Errorf("source %q: references undeclared store %q", key, sc.Store)
		}
		if len(sc.Fields) == 0 {
			return nil, fmt.Errorf("source %q: declares no fields", key)
		}
		fields := make(map[string]FieldDefinition, len(sc.Fields))
		for name, fd := range sc.Fields {
			if !identifierRE.MatchString(name) {
				return nil, fmt.Errorf("source %q: field %q is not a valid identifier", key, name)
			}
			if !validFieldTypes[fd.Type] {
				return nil, fmt.Errorf("source %q: field %q has unknown type %q", key, name, fd.Type)
			}
			fields[name] = fd
		}
		sources[key] = SourceDefinition{
			Key:         key,
			Table:       sc.Table,
			Store:       sc.Store,
			Label:       sc.Label,
			Description: sc.Description,
			Fields:      fields,
		}
	}

	return &Registry{stores: stores, sources: sources}, nil
}

// Source resolves a source key, failing with ErrUnknownSource for anything
// not declared.
func (r *Registry) Source(key string) (SourceDefinition, error) {
	src, ok := r.sources[key]
	if !ok {
		return SourceDefinition{}, fmt.Errorf("%w: %q", ErrUnknownSource, key)
	}
	return src, nil
}

// Store resolves the physical store a source routes to.
func (r *Registry) Store(key string) (StoreDefinition, error) {
	st, ok := r.stores[key]
	if !ok {
		return StoreDefinition{}, fmt.Errorf("%w: %q", ErrUnknownStore, key)
	}
	return st, nil
}

// Sources returns all registered sources in key order.
func (r *Registry) Sources() []SourceDefinition {
	out := make([]SourceDefinition, 0, len(r.sources))
	for _, src := range r.sources {
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
