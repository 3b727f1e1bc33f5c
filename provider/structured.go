package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mohammad-safakhou/intelliweb/internal/helpers"
	"github.com/mohammad-safakhou/intelliweb/models"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema is a named JSON Schema that structured model replies must satisfy.
type Schema struct {
	Name string
	raw  string

	once     sync.Once
	compiled *jsonschema.Schema
	err      error
}

// NewSchema declares a schema. It is compiled on first use.
func NewSchema(name, raw string) *Schema {
	return &Schema{Name: name, raw: raw}
}

// JSON returns the raw schema document.
func (s *Schema) JSON() string { return s.raw }

func (s *Schema) compile() (*jsonschema.Schema, error) {
	s.once.Do(func() {
		compiler := jsonschema.NewCompiler()
		res := s.Name + ".json"
		if err := compiler.AddResource(res, strings.NewReader(s.raw)); err != nil {
			s.err = fmt.Errorf("add schema resource: %w", err)
			return
		}
		s.compiled, s.err = compiler.Compile(res)
		if s.err != nil {
			s.err = fmt.Errorf("compile %s schema: %w", s.Name, s.err)
		}
	})
	return s.compiled, s.err
}

// SchemaError reports a model reply that is not JSON or does not conform to
// the requested schema.
type SchemaError struct {
	Schema string
	Reply  string
	Err    error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: reply does not match schema: %v", e.Schema, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// Decode validates reply against s and unmarshals it into out. Fenced or
// chatty replies are reduced to their first JSON value first.
func (s *Schema) Decode(reply string, out any) error {
	compiled, err := s.compile()
	if err != nil {
		return err
	}
	doc, err := helpers.ExtractJSON(reply)
	if err != nil {
		return &SchemaError{Schema: s.Name, Reply: reply, Err: err}
	}
	var v any
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		return &SchemaError{Schema: s.Name, Reply: reply, Err: err}
	}
	if err := compiled.Validate(v); err != nil {
		return &SchemaError{Schema: s.Name, Reply: reply, Err: err}
	}
	if err := json.Unmarshal([]byte(doc), out); err != nil {
		return &SchemaError{Schema: s.Name, Reply: reply, Err: err}
	}
	return nil
}

// Structured runs req with an instruction to answer as JSON matching schema and
// decodes the reply into out. Transport errors are returned as is; malformed
// replies yield a *SchemaError.
func Structured(ctx context.Context, p Provider, req Request, schema *Schema, out any) error {
	instr := models.Turn{
		Role: models.RoleSystem,
		Content: "Respond ONLY with a JSON object that validates against this JSON Schema. " +
			"Do not add any other text.\n" + schema.JSON(),
	}
	msgs := make([]models.Turn, 0, len(req.Messages)+1)
	if len(req.Messages) > 0 && req.Messages[0].Role == models.RoleSystem {
		lead := req.Messages[0]
		lead.Content = lead.Content + "\n\n" + instr.Content
		msgs = append(msgs, lead)
		msgs = append(msgs, req.Messages[1:]...)
	} else {
		msgs = append(msgs, instr)
		msgs = append(msgs, req.Messages...)
	}
	req.Messages = msgs
	req.JSON = true
	reply, err := Complete(ctx, p, req)
	if err != nil {
		return err
	}
	return schema.Decode(reply, out)
}

// Retry calls fn up to attempts times, sleeping backoff between failures.
// It returns nil on the first success, otherwise the last error. A cancelled
// context stops the loop early.
func Retry(ctx context.Context, attempts int, backoff time.Duration, fn func(attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(attempt); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		if backoff > 0 {
			t := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
			case <-t.C:
			}
		} else if ctx.Err() != nil {
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		}
	}
	return err
}
