package parser

import (
	"reflect"
	"testing"
	"time"

	"github.com/flowkeep/flowkeep/pkg/domain"
	"github.com/flowkeep/flowkeep/pkg/domain/workflow"
)

const sampleYAML = `namespace: n
id: w
name: W
description: D
steps:
  - type: LogTask
    message: "hi"
`

func TestParseYAML(t *testing.T) {
	parsed, err := Parse([]byte(sampleYAML), FormatYAML)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rev := parsed.Revision
	if rev.Namespace != "n" || rev.ID != "w" || rev.Name != "W" || rev.Description != "D" {
		t.Errorf("unexpected revision %+v", rev)
	}
	if len(rev.Steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(rev.Steps))
	}
	logTask, ok := rev.Steps[0].(*workflow.LogTask)
	if !ok {
		t.Fatalf("expected *LogTask, got %T", rev.Steps[0])
	}
	if logTask.Message != "hi" {
		t.Errorf("message = %q", logTask.Message)
	}
	if parsed.Source != sampleYAML {
		t.Error("source text must be preserved verbatim")
	}
	if parsed.Format != FormatYAML {
		t.Errorf("format = %q", parsed.Format)
	}
}

func TestParseJSON(t *testing.T) {
	doc := `{
  "namespace": "n",
  "id": "w",
  "name": "W",
  "description": "D",
  "parameters": [{"name": "u", "type": "STRING", "required": true}],
  "steps": [{"type": "LogTask", "message": "hello"}]
}`
	parsed, err := Parse([]byte(doc), FormatJSON)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(parsed.Revision.Parameters) != 1 || parsed.Revision.Parameters[0].Name != "u" {
		t.Errorf("parameters = %+v", parsed.Revision.Parameters)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		format string
	}{
		{name: "malformed yaml", source: "steps: [:", format: FormatYAML},
		{name: "malformed json", source: "{", format: FormatJSON},
		{name: "unknown step type", source: "namespace: n\nid: w\nname: W\ndescription: D\nsteps:\n  - type: ShellTask\n", format: FormatYAML},
		{name: "step missing type", source: "namespace: n\nid: w\nname: W\ndescription: D\nsteps:\n  - message: hi\n", format: FormatYAML},
		{name: "bad createdAt", source: "namespace: n\nid: w\nname: W\ndescription: D\ncreatedAt: yesterday\nsteps:\n  - type: LogTask\n    message: hi\n", format: FormatYAML},
		{name: "unsupported format", source: "namespace: n", format: "toml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.source), tt.format)
			kind, ok := domain.KindOf(err)
			if !ok || kind != domain.KindParseError {
				t.Errorf("expected ParseError, got %v", err)
			}
		})
	}
}

func TestParseAndValidateAggregates(t *testing.T) {
	// Parses fine but violates a structural invariant.
	doc := "namespace: n\nid: w\nname: W\ndescription: D\nsteps: []\n"
	_, err := ParseAndValidate([]byte(doc), FormatYAML)
	kind, ok := domain.KindOf(err)
	if !ok || kind != domain.KindInvalidRevision {
		t.Fatalf("expected InvalidRevision, got %v", err)
	}
}

func TestSerializeParseRoundTrip(t *testing.T) {
	created := domain.TimestampFrom(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	updated := domain.TimestampFrom(time.Date(2025, 6, 2, 8, 30, 0, 0, time.UTC))

	revisions := []workflow.Revision{
		{
			Namespace:   "ns",
			ID:          "simple",
			Version:     1,
			CreatedAt:   created,
			UpdatedAt:   updated,
			Name:        "Simple",
			Description: "One log step",
			Steps:       []workflow.Step{&workflow.LogTask{Message: "hi"}},
		},
		{
			Namespace:   "ns",
			ID:          "nested",
			Version:     3,
			CreatedAt:   created,
			UpdatedAt:   updated,
			Name:        "Nested",
			Description: "Composite tree",
			Active:      true,
			Parameters: []workflow.ParameterDefinition{
				{Name: "env", Type: "STRING", Required: true},
				{Name: "retries", Type: "INTEGER", Default: 3},
			},
			Steps: []workflow.Step{
				&workflow.Sequence{Steps: []workflow.Step{
					&workflow.LogTask{Message: "start"},
					&workflow.If{
						Condition: "${env} == 'prod'",
						IfTrue:    &workflow.LogTask{Message: "prod"},
						IfFalse:   &workflow.LogTask{Message: "not prod"},
					},
				}},
			},
		},
	}

	for _, format := range []string{FormatYAML, FormatJSON} {
		for _, rev := range revisions {
			out, err := Serialize(rev, format)
			if err != nil {
				t.Fatalf("Serialize(%s %s): %v", rev.ID, format, err)
			}
			parsed, err := Parse(out, format)
			if err != nil {
				t.Fatalf("Parse(Serialize(%s %s)): %v", rev.ID, format, err)
			}
			got := parsed.Revision

			// Defaults decode as untyped numbers; canonicalize before
			// comparing so 3 and float64(3) do not spuriously differ.
			if got.Namespace != rev.Namespace || got.ID != rev.ID || got.Version != rev.Version ||
				got.Name != rev.Name || got.Description != rev.Description || got.Active != rev.Active {
				t.Errorf("%s/%s scalar fields differ: %+v", format, rev.ID, got)
			}
			if !got.CreatedAt.Equal(rev.CreatedAt.Time) || !got.UpdatedAt.Equal(rev.UpdatedAt.Time) {
				t.Errorf("%s/%s timestamps differ", format, rev.ID)
			}
			if len(got.Parameters) != len(rev.Parameters) {
				t.Fatalf("%s/%s parameter count differs", format, rev.ID)
			}
			for i := range rev.Parameters {
				if got.Parameters[i].Name != rev.Parameters[i].Name ||
					got.Parameters[i].Type != rev.Parameters[i].Type ||
					got.Parameters[i].Required != rev.Parameters[i].Required {
					t.Errorf("%s/%s parameter %d differs: %+v", format, rev.ID, i, got.Parameters[i])
				}
			}
			if !reflect.DeepEqual(encodeStepsForTest(got.Steps), encodeStepsForTest(rev.Steps)) {
				t.Errorf("%s/%s step trees differ", format, rev.ID)
			}
		}
	}
}

func encodeStepsForTest(steps []workflow.Step) []map[string]interface{} {
	out := make([]map[string]interface{}, len(steps))
	for i, s := range steps {
		m := s.Encode()
		m["type"] = s.Type()
		out[i] = m
	}
	return out
}
