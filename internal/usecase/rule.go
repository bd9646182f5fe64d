package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rosterly/rosterd/internal/auth"
	"github.com/rosterly/rosterd/internal/domain"
	"github.com/rosterly/rosterd/internal/repository"
	"github.com/rosterly/rosterd/internal/rules"
)

type RuleUsecase struct {
	rules     repository.RuleRepository
	employees repository.EmployeeRepository
	parser    *rules.Parser
	logger    *slog.Logger
}

func NewRuleUsecase(
	ruleRepo repository.RuleRepository,
	employees repository.EmployeeRepository,
	parser *rules.Parser,
	logger *slog.Logger,
) *RuleUsecase {
	return &RuleUsecase{
		rules:     ruleRepo,
		employees: employees,
		parser:    parser,
		logger:    logger.With("component", "rule"),
	}
}

// ParseResult is the preview of a parse: either a structured rule or the
// candidate interpretations when the text is ambiguous.
type ParseResult struct {
	Parsed     *rules.Result     `json:"parsed,omitempty"`
	Ambiguous  bool              `json:"ambiguous"`
	Candidates []rules.Candidate `json:"candidates,omitempty"`
}

// Parse interprets rule text without persisting anything, so clients can
// show a preview before committing.
func (u *RuleUsecase) Parse(ctx context.Context, actor Actor, text string) (*ParseResult, error) {
	if !actor.Can(auth.PermRuleRead) {
		return nil, forbidden("not allowed to parse rules")
	}
	refs, err := u.employeeRefs(ctx)
	if err != nil {
		return nil, err
	}

	result, err := u.parser.Parse(text, refs)
	if err != nil {
		var amb *rules.AmbiguousError
		if errors.As(err, &amb) {
			return &ParseResult{Ambiguous: true, Candidates: amb.Candidates}, nil
		}
		return nil, err
	}
	return &ParseResult{Parsed: result}, nil
}

type CreateRuleInput struct {
	Text     string
	Priority int
	// Confirmed accepts the parse even when confidence is low but a single
	// interpretation exists. Truly ambiguous text still fails.
	Confirmed bool
}

// Create parses the text and persists the resulting rule. Ambiguity is an
// error; the client resolves it by rephrasing or confirming a candidate.
func (u *RuleUsecase) Create(ctx context.Context, actor Actor, input CreateRuleInput) (*domain.Rule, error) {
	if !actor.Can(auth.PermRuleWrite) {
		return nil, forbidden("not allowed to create rules")
	}
	if input.Text == "" {
		return nil, domain.Validation("rule text is required", map[string]string{"text": "required"})
	}
	priority := input.Priority
	if priority == 0 {
		priority = 5
	}
	if priority < 1 || priority > 10 {
		return nil, domain.Validation("invalid rule", map[string]string{
			"priority": "must be between 1 and 10",
		})
	}

	refs, err := u.employeeRefs(ctx)
	if err != nil {
		return nil, err
	}
	parsed, err := u.parser.Parse(input.Text, refs)
	if err != nil {
		var amb *rules.AmbiguousError
		if errors.As(err, &amb) {
			return nil, domain.E(domain.KindValidation, "rule_ambiguous",
				"rule text is ambiguous; use the parse preview to refine it")
		}
		return nil, err
	}
	if parsed.Confidence < rules.ConfidenceFloor && !input.Confirmed {
		return nil, domain.E(domain.KindValidation, "rule_low_confidence",
			fmt.Sprintf("parse confidence %.2f is below the floor; confirm to persist anyway", parsed.Confidence))
	}

	created, err := u.rules.Create(ctx, &domain.Rule{
		Type:       parsed.Type,
		EmployeeID: parsed.EmployeeID,
		Priority:   priority,
		Active:     true,
		SourceText: input.Text,
		Payload:    parsed.Payload,
		Confidence: parsed.Confidence,
	})
	if err != nil {
		return nil, fmt.Errorf("create rule: %w", err)
	}
	u.logger.Info("rule created", "rule_id", created.ID, "type", created.Type,
		"confidence", created.Confidence, "by", actor.ID)
	return created, nil
}

func (u *RuleUsecase) Get(ctx context.Context, actor Actor, id string) (*domain.Rule, error) {
	if !actor.Can(auth.PermRuleRead) {
		return nil, forbidden("not allowed to view rules")
	}
	return u.rules.GetByID(ctx, id)
}

type ListRulesResult struct {
	Rules []*domain.Rule
	Total int
}

func (u *RuleUsecase) List(ctx context.Context, actor Actor, input repository.ListRulesInput) (ListRulesResult, error) {
	if !actor.Can(auth.PermRuleRead) {
		return ListRulesResult{}, forbidden("not allowed to list rules")
	}
	if input.Limit <= 0 || input.Limit > 100 {
		input.Limit = clampLimit(input.Limit)
	}
	rows, total, err := u.rules.List(ctx, input)
	if err != nil {
		return ListRulesResult{}, fmt.Errorf("list rules: %w", err)
	}
	return ListRulesResult{Rules: rows, Total: total}, nil
}

type UpdateRuleInput struct {
	Priority *int
	Active   *bool
}

// Update adjusts priority or toggles a rule. The parsed payload is
// immutable; changing the meaning means creating a new rule from new text.
func (u *RuleUsecase) Update(ctx context.Context, actor Actor, id string, input UpdateRuleInput) (*domain.Rule, error) {
	if !actor.Can(auth.PermRuleWrite) {
		return nil, forbidden("not allowed to update rules")
	}
	rule, err := u.rules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Priority != nil {
		if *input.Priority < 1 || *input.Priority > 10 {
			return nil, domain.Validation("invalid rule", map[string]string{
				"priority": "must be between 1 and 10",
			})
		}
		rule.Priority = *input.Priority
	}
	if input.Active != nil {
		rule.Active = *input.Active
	}
	updated, err := u.rules.Update(ctx, rule)
	if err != nil {
		return nil, fmt.Errorf("update rule: %w", err)
	}
	return updated, nil
}

func (u *RuleUsecase) Delete(ctx context.Context, actor Actor, id string) error {
	if !actor.Can(auth.PermRuleWrite) {
		return forbidden("not allowed to delete rules")
	}
	if _, err := u.rules.GetByID(ctx, id); err != nil {
		return err
	}
	if err := u.rules.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	u.logger.Info("rule deleted", "rule_id", id, "by", actor.ID)
	return nil
}

func (u *RuleUsecase) employeeRefs(ctx context.Context) ([]rules.EmployeeRef, error) {
	emps, err := u.employees.ListActive(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("load employee directory: %w", err)
	}
	refs := make([]rules.EmployeeRef, len(emps))
	for i, e := range emps {
		refs[i] = rules.EmployeeRef{ID: e.ID, FirstName: e.FirstName, LastName: e.LastName}
	}
	return refs, nil
}
