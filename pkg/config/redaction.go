package config

import (
	"github.com/hyp3rd/otelsynth/pkg/catalog"
	"github.com/hyp3rd/otelsynth/pkg/redaction"
)

// Rules converts the redaction section into processor rules. An empty
// section yields the built-in defaults.
func (rc RedactionConfig) Rules() []redaction.Rule {
	if len(rc.Delete) == 0 && len(rc.Upsert) == 0 {
		return redaction.Defaults()
	}

	rules := make([]redaction.Rule, 0, len(rc.Delete)+len(rc.Upsert))
	for _, key := range rc.Delete {
		rules = append(rules, redaction.DeleteRule(key))
	}

	for _, upsert := range rc.Upsert {
		description := upsert.Description
		if description == "" {
			description = "Value stamped on the " + upsert.Key + " attribute"
		}

		rules = append(rules, redaction.UpsertRule(upsert.Key, catalog.EnvVar{
			Name:        upsert.Env,
			Description: description,
			Required:    true,
			Default:     upsert.Default,
		}))
	}

	return rules
}
