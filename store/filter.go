package store

import (
	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"
)

// campaignFilterEnv declares the attributes a list filter may reference,
// e.g. `status == "active" && "purchase" in goals`.
func campaignFilterEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("name", cel.StringType),
		cel.Variable("description", cel.StringType),
		cel.Variable("status", cel.StringType),
		cel.Variable("goals", cel.ListType(cel.StringType)),
		cel.Variable("channels", cel.ListType(cel.StringType)),
		cel.Variable("estimatedAudienceSize", cel.IntType),
	)
}

// CampaignFilter is a compiled list-filter expression.
type CampaignFilter struct {
	program cel.Program
}

// CompileCampaignFilter parses and checks a CEL filter expression.
func CompileCampaignFilter(expression string) (*CampaignFilter, error) {
	env, err := campaignFilterEnv()
	if err != nil {
		return nil, errors.Wrap(err, "create filter env")
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrap(issues.Err(), "invalid filter")
	}
	if ast.OutputType() != cel.BoolType {
		return nil, errors.New("filter must evaluate to a boolean")
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrap(err, "plan filter")
	}
	return &CampaignFilter{program: program}, nil
}

// Match evaluates the filter against one campaign record.
// Evaluation errors (e.g. a referenced attribute the record lacks a usable
// value for) exclude the record rather than failing the listing.
func (f *CampaignFilter) Match(record Record) bool {
	activation := map[string]any{
		"name":                  stringField(record, "name"),
		"description":           stringField(record, "description"),
		"status":                stringField(record, "status"),
		"goals":                 stringList(record, "goals"),
		"channels":              stringList(record, "channels"),
		"estimatedAudienceSize": int64(numberField(record, "estimatedAudienceSize")),
	}
	out, _, err := f.program.Eval(activation)
	if err != nil {
		return false
	}
	matched, ok := out.Value().(bool)
	return ok && matched
}

func stringList(r Record, key string) []string {
	items, ok := r[key].([]any)
	if !ok {
		return []string{}
	}
	values := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			values = append(values, s)
		}
	}
	return values
}
