// Package exporter serializes flow documents to a portable JSON
// snapshot and imports them back, validating structure and plan
// limits before anything is admitted.
package exporter

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/zapfunnel/flow-service/internal/flow"
	"github.com/zapfunnel/flow-service/internal/quota"
	"github.com/zapfunnel/flow-service/internal/validator"
	"github.com/zapfunnel/flow-service/pkg/types"
)

// FormatVersion names the snapshot layout. Imports accept only this
// version.
const FormatVersion = "1"

var (
	// ErrUnsupportedVersion rejects snapshots from other layouts.
	ErrUnsupportedVersion = errors.New("unsupported export version")
	// ErrInvalidSnapshot rejects snapshots that fail schema validation.
	ErrInvalidSnapshot = errors.New("invalid flow snapshot")
)

// Snapshot is the wire form of one exported flow.
type Snapshot struct {
	Version    string          `json:"version"`
	ExportedAt time.Time       `json:"exportedAt"`
	Flow       *types.Document `json:"flow"`
}

// Exporter validates snapshots against the embedded schema.
type Exporter struct {
	schema *jsonschema.Schema
}

// New compiles the embedded snapshot schema.
func New() (*Exporter, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	if err := compiler.AddResource("snapshot.json", strings.NewReader(snapshotSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add snapshot schema: %w", err)
	}
	schema, err := compiler.Compile("snapshot.json")
	if err != nil {
		return nil, fmt.Errorf("compile snapshot schema: %w", err)
	}
	return &Exporter{schema: schema}, nil
}

// Export renders the document as a portable snapshot. The graph goes
// out as-is, warnings and all, so a work-in-progress flow survives a
// round trip.
func (e *Exporter) Export(doc *types.Document) ([]byte, error) {
	cp := doc.Clone()
	if cp.Edges == nil {
		cp.Edges = []types.Edge{}
	}
	snap := Snapshot{
		Version:    FormatVersion,
		ExportedAt: time.Now().UTC(),
		Flow:       cp,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// ImportResult carries the admitted document plus the structural
// findings surfaced to the caller.
type ImportResult struct {
	Flow   *types.Document   `json:"flow"`
	Issues []validator.Issue `json:"issues,omitempty"`
}

// Import parses and admits a snapshot. A snapshot that fails to parse
// or validate is rejected wholesale; nothing is partially imported.
// The plan gate is re-checked so an export from a bigger plan cannot
// smuggle its node counts past the limits.
func (e *Exporter) Import(data []byte, limits quota.Limits) (*ImportResult, error) {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if err := e.schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if snap.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, snap.Version)
	}

	doc := snap.Flow
	if limits.MessageNodes >= 0 && doc.CountKind(types.KindMessage) > limits.MessageNodes {
		return nil, fmt.Errorf("%w: flow has %d message nodes, plan allows %d",
			flow.ErrQuotaExceeded, doc.CountKind(types.KindMessage), limits.MessageNodes)
	}

	result := validator.Validate(doc)
	for _, is := range result.Errors() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSnapshot, is.Message)
	}

	return &ImportResult{Flow: doc, Issues: result.Issues}, nil
}

const snapshotSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "snapshot.json",
  "title": "Flow Snapshot",
  "type": "object",
  "required": ["version", "flow"],
  "properties": {
    "version": {
      "type": "string"
    },
    "exportedAt": {
      "type": "string"
    },
    "flow": {
      "type": "object",
      "required": ["id", "nodes", "edges"],
      "properties": {
        "id": {
          "type": "string",
          "minLength": 1
        },
        "name": {
          "type": "string",
          "minLength": 1
        },
        "nodes": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["id", "kind", "position"],
            "properties": {
              "id": {
                "type": "string",
                "minLength": 1
              },
              "kind": {
                "type": "string",
                "enum": ["start", "message", "choice", "collect", "delay", "ai", "http", "end"]
              },
              "position": {
                "type": "object",
                "required": ["x", "y"],
                "properties": {
                  "x": {
                    "type": "number"
                  },
                  "y": {
                    "type": "number"
                  }
                }
              },
              "data": {
                "type": "object"
              }
            }
          }
        },
        "edges": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["id", "from", "to"],
            "properties": {
              "id": {
                "type": "string",
                "minLength": 1
              },
              "from": {
                "type": "string",
                "minLength": 1
              },
              "to": {
                "type": "string",
                "minLength": 1
              },
              "label": {
                "type": "string"
              },
              "condition": {
                "type": "string"
              }
            }
          }
        }
      }
    }
  }
}`
