package core

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
)

// Policy decides what a committing import does with a reference to an
// entity identifier that does not exist. The set of policies is closed:
// the unexported method keeps other packages from adding arms, and every
// arm must implement resolve.
type Policy interface {
	// Action returns the wire name of the policy.
	Action() string
	resolve(ctx context.Context, r *resolver, uid string) (resolution, error)
}

// CreatePolicy creates a placeholder entity named after the identifier.
// An unknown or empty EntityType falls back to organization.
type CreatePolicy struct {
	EntityType string
}

// MarkUnknownPolicy rewrites the reference to the UNKNOWN sentinel entity.
type MarkUnknownPolicy struct{}

// SkipPolicy drops rows that reference the identifier.
type SkipPolicy struct{}

func (CreatePolicy) Action() string      { return "create" }
func (MarkUnknownPolicy) Action() string { return "unknown" }
func (SkipPolicy) Action() string        { return "skip" }

func (p CreatePolicy) resolve(ctx context.Context, r *resolver, uid string) (resolution, error) {
	if err := r.ensurePlaceholder(ctx, uid, p.EntityType); err != nil {
		return resolution{}, err
	}
	return resolution{uid: uid}, nil
}

func (MarkUnknownPolicy) resolve(ctx context.Context, r *resolver, _ string) (resolution, error) {
	if err := r.ensureSentinel(ctx); err != nil {
		return resolution{}, err
	}
	return resolution{uid: SentinelUID}, nil
}

func (SkipPolicy) resolve(context.Context, *resolver, string) (resolution, error) {
	return resolution{skip: true}, nil
}

// UnknownAction is the wire form of a policy.
type UnknownAction struct {
	Action         string `json:"action" validate:"required,oneof=create unknown skip"`
	EntityTypeCode string `json:"entity_type_code,omitempty"`
}

// ParsePolicy converts a wire action into a Policy.
func ParsePolicy(action, entityType string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "create":
		return CreatePolicy{EntityType: strings.TrimSpace(entityType)}, nil
	case "unknown":
		return MarkUnknownPolicy{}, nil
	case "skip":
		return SkipPolicy{}, nil
	}
	return nil, requestError(errors.WithHint(
		errors.Newf("invalid unknown action %q", action),
		"Use one of: create, unknown, skip"))
}

// ParsePolicies converts the unknown_actions map of a request.
func ParsePolicies(actions map[string]UnknownAction) (map[string]Policy, error) {
	policies := make(map[string]Policy, len(actions))
	for uid, a := range actions {
		p, err := ParsePolicy(a.Action, a.EntityTypeCode)
		if err != nil {
			return nil, errors.Wrapf(err, "unknown_actions[%s]", uid)
		}
		policies[strings.TrimSpace(uid)] = p
	}
	return policies, nil
}
