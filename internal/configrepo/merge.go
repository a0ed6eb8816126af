package configrepo

import (
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/pkg/models"
	"github.com/rs/zerolog/log"
)

// merge combines a normalized incoming configuration with the stored one.
//
// Incoming values win everywhere except in provider groups whose stored
// details carry real settings (see models.ProviderGroup.Preservable). For
// such a group an empty incoming details list keeps the stored list, and an
// off incoming flag or provider keeps the stored flag or provider. A
// non-empty incoming list replaces the stored one outright.
func merge(existing, incoming *models.AgentConfiguration) *models.AgentConfiguration {
	merged := incoming.Clone()
	if existing == nil {
		return merged
	}
	prev := existing.ProviderGroups()
	for i, g := range merged.ProviderGroups() {
		old := prev[i]
		if !old.Preservable() || len(*g.Details) > 0 {
			continue
		}
		*g.Details = append([]models.ProviderConfig(nil), *old.Details...)
		if models.IsOff(*g.Enabled) {
			*g.Enabled = *old.Enabled
		}
		if models.IsOff(*g.Provider) {
			*g.Provider = *old.Provider
		}
		log.Debug().
			Str("agent", merged.AgentName).
			Str("group", g.Kind).
			Str("enabled", *g.Enabled).
			Msg("Kept stored provider settings")
	}
	return merged
}
