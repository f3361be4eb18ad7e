package validate

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/botcsync/internal/entity"
)

//go:embed character.cue
var characterSchema string

const characterDef = "#Character"

// Schema validates public character records against the embedded CUE
// definition.
type Schema struct {
	ctx     *cue.Context
	def     cue.Value
	allowed map[string]bool
}

// NewSchema compiles the character schema.
func NewSchema() (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(characterSchema, cue.Filename("character.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile character schema: %w", err)
	}

	def := v.LookupPath(cue.ParsePath(characterDef))
	if !def.Exists() {
		return nil, fmt.Errorf("character schema: %s not defined", characterDef)
	}

	allowed := make(map[string]bool)
	iter, err := def.Fields(cue.Optional(true))
	if err != nil {
		return nil, fmt.Errorf("character schema fields: %w", err)
	}
	for iter.Next() {
		allowed[strings.TrimSuffix(iter.Label(), "?")] = true
	}

	return &Schema{ctx: ctx, def: def, allowed: allowed}, nil
}

// Check validates one entity, including any fields it was decoded with that
// the model does not define. In strict mode those fields are reported.
func (s *Schema) Check(e *entity.Entity, strict bool) []Issue {
	record := e.Public()
	for k, v := range e.Extra {
		if _, ok := record[k]; !ok {
			record[k] = v
		}
	}
	return s.CheckRecord(e.ID, record, strict)
}

// CheckRecord validates a decoded public record.
func (s *Schema) CheckRecord(id string, record map[string]any, strict bool) []Issue {
	var issues []Issue

	val := s.ctx.Encode(record)
	if err := val.Err(); err != nil {
		return []Issue{{Code: ErrSchema, EntityID: id, Message: err.Error()}}
	}

	if err := s.def.Unify(val).Validate(cue.Concrete(true)); err != nil {
		for _, ce := range cueerrors.Errors(err) {
			format, args := ce.Msg()
			issues = append(issues, Issue{
				Code:     ErrSchema,
				EntityID: id,
				Field:    fieldPath(ce.Path()),
				Message:  fmt.Sprintf(format, args...),
			})
		}
	}

	if strict {
		for k := range record {
			if !s.allowed[k] {
				issues = append(issues, Issue{
					Code:     ErrUnknownField,
					EntityID: id,
					Field:    k,
					Message:  "field is not part of the character schema",
				})
			}
		}
	}

	sortIssues(issues)
	return issues
}

// fieldPath joins a CUE error path relative to the record, dropping the
// definition root.
func fieldPath(p []string) string {
	if len(p) > 0 && p[0] == characterDef {
		p = p[1:]
	}
	return strings.Join(p, ".")
}

// Run performs integrity checks and schema validation over the dataset.
func Run(schema *Schema, entities []*entity.Entity, strict bool) []Issue {
	issues := Integrity(entities)
	if schema != nil {
		for _, e := range entities {
			issues = append(issues, schema.Check(e, strict)...)
		}
	}
	sortIssues(issues)
	return issues
}
