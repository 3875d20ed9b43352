// Package redaction defines the attribute rules applied by the attributes/redact processor.
package redaction

import (
	"regexp"
	"slices"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/otelsynth/pkg/catalog"
)

// Action is an attributes processor action.
type Action string

// Supported actions.
const (
	Delete Action = "delete"
	Upsert Action = "upsert"
)

var envNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Rule is one attributes processor action. Upserts read their value from Env.
type Rule struct {
	Key    string
	Action Action
	Env    catalog.EnvVar
}

// DeleteRule builds a delete rule for key.
func DeleteRule(key string) Rule {
	return Rule{Key: key, Action: Delete}
}

// UpsertRule builds an upsert rule whose value comes from env.
func UpsertRule(key string, env catalog.EnvVar) Rule {
	return Rule{Key: key, Action: Upsert, Env: env}
}

// Defaults returns the built-in rules: sensitive request data is dropped and
// deployment tags are stamped from the environment.
func Defaults() []Rule {
	return []Rule{
		DeleteRule("http.request.header.authorization"),
		DeleteRule("http.request.header.cookie"),
		DeleteRule("http.response.header.set-cookie"),
		DeleteRule("user.password"),
		DeleteRule("db.connection_string"),
		UpsertRule("deployment.environment", catalog.EnvVar{
			Name:        "DEPLOYMENT_ENVIRONMENT",
			Description: "Deployment environment stamped on every signal",
			Required:    true,
			Default:     "development",
		}),
		UpsertRule("service.namespace", catalog.EnvVar{
			Name:        "SERVICE_NAMESPACE",
			Description: "Service namespace stamped on every signal",
			Required:    true,
			Default:     "default",
		}),
	}
}

// Normalize validates rules and returns them with every delete ahead of every
// upsert, keeping the relative order inside each group.
func Normalize(rules []Rule) ([]Rule, error) {
	seen := make(map[string]struct{}, len(rules))

	for _, rule := range rules {
		if rule.Key == "" {
			return nil, ewrap.New("redaction rule key is required")
		}

		switch rule.Action {
		case Delete:
		case Upsert:
			if !envNamePattern.MatchString(rule.Env.Name) {
				return nil, ewrap.Newf("redaction upsert %q has invalid env var name %q", rule.Key, rule.Env.Name)
			}
		default:
			return nil, ewrap.Newf("redaction rule %q has unsupported action %q", rule.Key, rule.Action)
		}

		id := string(rule.Action) + "/" + rule.Key
		if _, dup := seen[id]; dup {
			return nil, ewrap.Newf("duplicate redaction rule %s %q", rule.Action, rule.Key)
		}

		seen[id] = struct{}{}
	}

	out := slices.Clone(rules)
	slices.SortStableFunc(out, func(a, b Rule) int {
		return rank(a.Action) - rank(b.Action)
	})

	return out, nil
}

// RuntimeTags returns the env vars referenced by upsert rules, deduplicated.
func RuntimeTags(rules []Rule) []catalog.EnvVar {
	var (
		out  []catalog.EnvVar
		seen = map[string]struct{}{}
	)

	for _, rule := range rules {
		if rule.Action != Upsert {
			continue
		}

		if _, ok := seen[rule.Env.Name]; ok {
			continue
		}

		seen[rule.Env.Name] = struct{}{}
		out = append(out, rule.Env)
	}

	return out
}

func rank(a Action) int {
	if a == Delete {
		return 0
	}

	return 1
}
