package forms

import (
	"github.com/spec-kit/ticket-bot/internal/domain"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util"
)

// Category describes a selectable ticket category for the panel menu.
type Category struct {
	Value       string
	Label       string
	Description string
}

var categories = []Category{
	{Value: "support", Label: "🛠️ Support", Description: "questions, bugs etc."},
	{Value: "moderation", Label: "🛡️ Moderation", Description: "reports, appeals, refunds"},
	{Value: "partnership", Label: "🤝 Partnership", Description: "partner and event proposals"},
}

var catalog = map[string][]domain.FieldSpec{
	"support": {
		{ID: "username", Label: "In-game username", Required: true, MaxLength: 32, Placeholder: "Ex: JohnDoe1234"},
		{ID: "subject", Label: "Request type", Required: true, MaxLength: 32, Placeholder: "Ex: Bug, Question, Help request"},
		{ID: "instance", Label: "Concerned instance", Required: true, MaxLength: 32, Placeholder: "Ex: Spawn, Mining.."},
		{ID: "description", Label: "Request description", Required: true, MinLength: 50, MaxLength: 2500, Multiline: true, Placeholder: "Hello, here is my request.. Thank you!"},
		{ID: "extra", Label: "Additional information", MaxLength: 300, Placeholder: "Ex: Position X Y Z, screenshot link, etc."},
	},
	"moderation": {
		{ID: "username", Label: "In-game username", Required: true, MaxLength: 32, Placeholder: "Ex: JohnDoe1234"},
		{ID: "subject", Label: "Request type", Required: true, MaxLength: 32, Placeholder: "Ex: Report, Appeal, Refund"},
		{ID: "instance", Label: "Concerned instance", Required: true, MaxLength: 32, Placeholder: "Ex: Spawn, Mining.."},
		{ID: "description", Label: "Description", Required: true, MinLength: 50, MaxLength: 2500, Multiline: true, Placeholder: "Hello, here is my issue.. Thank you!"},
		{ID: "extra", Label: "Additional information", MaxLength: 300, Multiline: true, Placeholder: "Ex: Position X Y Z, screenshot link, etc."},
	},
	"partnership": {
		{ID: "username", Label: "In-game username", Required: true, MaxLength: 32, Placeholder: "Ex: JohnDoe1234"},
		{ID: "project", Label: "Project name", Required: true, MaxLength: 32, Placeholder: "Ex: MyProject, ArtistName.."},
		{ID: "type", Label: "Partnership type", Required: true, MinLength: 50, MaxLength: 2500, Multiline: true, Placeholder: "Ex: Partner, Event, Other.."},
		{ID: "proposal", Label: "Proposal", Required: true, MinLength: 50, MaxLength: 2500, Multiline: true, Placeholder: "Hello, here is my proposal.. Thank you!"},
		{ID: "contact", Label: "Contact", Required: true, MaxLength: 300, Placeholder: "Ex: Discord, Twitter, etc."},
	},
}

// Categories returns the selectable categories in menu order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// FieldsFor returns the ordered field specs for a category.
func FieldsFor(category string) ([]domain.FieldSpec, error) {
	specs, ok := catalog[category]
	if !ok {
		return nil, apperrors.NewUnknownCategory(category)
	}
	out := make([]domain.FieldSpec, len(specs))
	copy(out, specs)
	return out, nil
}

// Validate checks submitted responses against the category's field specs.
// Responses must arrive in catalog order; optional fields may be empty.
func Validate(category string, responses []domain.FieldValue) error {
	specs, err := FieldsFor(category)
	if err != nil {
		return err
	}
	if len(responses) != len(specs) {
		return apperrors.NewValidationError("unexpected number of responses", map[string]any{
			"want": len(specs),
			"got":  len(responses),
		})
	}
	for i, spec := range specs {
		value := responses[i].Value
		if value == "" {
			if spec.Required {
				return apperrors.NewValidationError("required field missing", map[string]any{"field": spec.Label})
			}
			continue
		}
		if spec.MinLength > 0 && len(value) < spec.MinLength {
			return apperrors.NewValidationError("field below minimum length", map[string]any{"field": spec.Label, "min": spec.MinLength})
		}
		if spec.MaxLength > 0 && len(value) > spec.MaxLength {
			return apperrors.NewValidationError("field above maximum length", map[string]any{"field": spec.Label, "max": spec.MaxLength})
		}
	}
	return nil
}
