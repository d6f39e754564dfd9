// Package parser implements the workflow document parser/serializer:
// YAML/JSON in, a workflow.WithSource out, and back. It never re-serializes
// a stored revision from its parsed model to answer a read — the original
// document text is carried alongside the model and only ever patched in
// place by UpdateMetadata (metadata.go), preserving the author's formatting
// byte-for-byte outside the touched lines.
package parser

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flowkeep/flowkeep/pkg/domain"
	"github.com/flowkeep/flowkeep/pkg/domain/workflow"
)

const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// document is the wire shape of a revision: top-level keys namespace, id,
// version?, name, description, parameters?, steps, active?, createdAt?,
// updatedAt?.
type document struct {
	Namespace   string                        `yaml:"namespace" json:"namespace"`
	ID          string                        `yaml:"id" json:"id"`
	Version     int                           `yaml:"version,omitempty" json:"version,omitempty"`
	Name        string                        `yaml:"name" json:"name"`
	Description string                        `yaml:"description" json:"description"`
	Parameters  []workflow.ParameterDefinition `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Steps       []interface{}                 `yaml:"steps" json:"steps"`
	Active      *bool                         `yaml:"active,omitempty" json:"active,omitempty"`
	CreatedAt   string                        `yaml:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt   string                        `yaml:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// Parse decodes source (in the given format) into a revision paired with its
// original text. Unknown step types, missing required fields, and malformed
// syntax all surface as a domain.ParseError carrying the underlying cause.
func Parse(source []byte, format string) (workflow.WithSource, error) {
	var doc document
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(source, &doc); err != nil {
			return workflow.WithSource{}, domain.NewParseError("invalid YAML document", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(source, &doc); err != nil {
			return workflow.WithSource{}, domain.NewParseError("invalid JSON document", err)
		}
	default:
		return workflow.WithSource{}, domain.NewParseError(fmt.Sprintf("unsupported document format %q", format), nil)
	}

	steps := make([]workflow.Step, 0, len(doc.Steps))
	for i, raw := range doc.Steps {
		step, err := workflow.DecodeStep(raw)
		if err != nil {
			return workflow.WithSource{}, domain.NewParseError(fmt.Sprintf("step %d: %v", i, err), err)
		}
		steps = append(steps, step)
	}

	rev := workflow.Revision{
		Namespace:   doc.Namespace,
		ID:          doc.ID,
		Version:     doc.Version,
		Name:        doc.Name,
		Description: doc.Description,
		Parameters:  doc.Parameters,
		Steps:       steps,
	}
	if doc.Active != nil {
		rev.Active = *doc.Active
	}
	if doc.CreatedAt != "" {
		t, err := time.Parse(time.RFC3339, doc.CreatedAt)
		if err != nil {
			return workflow.WithSource{}, domain.NewParseError("createdAt is not a valid RFC3339 timestamp", err)
		}
		rev.CreatedAt = domain.TimestampFrom(t)
	}
	if doc.UpdatedAt != "" {
		t, err := time.Parse(time.RFC3339, doc.UpdatedAt)
		if err != nil {
			return workflow.WithSource{}, domain.NewParseError("updatedAt is not a valid RFC3339 timestamp", err)
		}
		rev.UpdatedAt = domain.TimestampFrom(t)
	}

	return workflow.WithSource{Revision: rev, Source: string(source), Format: format}, nil
}

// ParseAndValidate parses source and additionally checks the revision's
// structural invariants, returning a single domain error rather than a
// cascade of field-by-field failures.
func ParseAndValidate(source []byte, format string) (workflow.WithSource, error) {
	parsed, err := Parse(source, format)
	if err != nil {
		return workflow.WithSource{}, err
	}
	if err := parsed.Revision.Validate(); err != nil {
		return workflow.WithSource{}, err
	}
	return parsed, nil
}

// Serialize renders rev back into the given format. It is used to produce a
// fresh document for a brand new revision (where no author source exists
// yet); once a revision has been saved, its stored Source is returned
// instead of re-serializing — see UpdateMetadata.
func Serialize(rev workflow.Revision, format string) ([]byte, error) {
	doc := document{
		Namespace:   rev.Namespace,
		ID:          rev.ID,
		Version:     rev.Version,
		Name:        rev.Name,
		Description: rev.Description,
		Parameters:  rev.Parameters,
		Active:      &rev.Active,
	}
	if !rev.CreatedAt.IsZero() {
		doc.CreatedAt = rev.CreatedAt.Format(time.RFC3339)
	}
	if !rev.UpdatedAt.IsZero() {
		doc.UpdatedAt = rev.UpdatedAt.Format(time.RFC3339)
	}
	doc.Steps = make([]interface{}, len(rev.Steps))
	for i, step := range rev.Steps {
		encoded := step.Encode()
		encoded["type"] = step.Type()
		doc.Steps[i] = encoded
	}

	switch format {
	case FormatYAML:
		out, err := yaml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("serialize revision as yaml: %w", err)
		}
		return out, nil
	case FormatJSON:
		out, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("serialize revision as json: %w", err)
		}
		return out, nil
	default:
		return nil, domain.NewParseError(fmt.Sprintf("unsupported document format %q", format), nil)
	}
}
