package configrepo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/pkg/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// discovery finds candidate parameter paths for an agent.
type discovery struct {
	name string
	find func(ctx context.Context, agentName string) ([]string, error)
}

// Delete removes every parameter that belongs to agentName.
//
// Parameters were written under several naming schemes over time, so a
// single prefix listing misses some. Three independent searches run and
// their results are unioned by path: the agent's own subtree, a substring
// match over the whole /agent/ namespace, and existence probes of known
// legacy paths. A path that is already gone is not a failure.
func (r *Repository) Delete(ctx context.Context, agentName string) (*models.DeletionReport, error) {
	if err := models.ValidateAgentName(agentName); err != nil {
		return nil, err
	}

	passes := []discovery{
		{"subtree", r.findSubtree},
		{"namespace", r.findInNamespace},
		{"legacy", r.probeLegacy},
	}
	var (
		mu    sync.Mutex
		found = map[string]string{}
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range passes {
		p := p
		g.Go(func() error {
			paths, err := p.find(gctx, agentName)
			if err != nil {
				return fmt.Errorf("%s search for %s: %w", p.name, agentName, err)
			}
			mu.Lock()
			defer mu.Unlock()
			for _, path := range paths {
				if _, seen := found[path]; !seen {
					found[path] = p.name
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, &ErrNotFound{Entity: "agent parameters", Key: agentName}
	}

	paths := make([]string, 0, len(found))
	for path := range found {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	report := &models.DeletionReport{
		AgentName: agentName,
		Deleted:   []string{},
		Failed:    []models.PathFailure{},
	}
	for _, path := range paths {
		deleted, err := r.params.Delete(ctx, path)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("agent", agentName).Str("path", path).Msg("Failed to delete parameter")
			report.Failed = append(report.Failed, models.PathFailure{Path: path, Error: err.Error()})
		case deleted:
			report.Deleted = append(report.Deleted, path)
		default:
			log.Debug().Str("path", path).Msg("Parameter already gone")
		}
	}

	log.Info().
		Str("agent", agentName).
		Int("deleted", len(report.Deleted)).
		Int("failed", len(report.Failed)).
		Msg("Agent configuration deleted")
	return report, nil
}

func (r *Repository) findSubtree(ctx context.Context, agentName string) ([]string, error) {
	items, err := r.params.ListByPrefix(ctx, agentPrefix(agentName))
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(items))
	for _, it := range items {
		paths = append(paths, it.Path)
	}
	return paths, nil
}

// findInNamespace lists all of /agent/ and keeps paths whose part below
// /agent/ mentions the agent name. Paths inside another agent's subtree are
// skipped when that agent still has a configuration record, so "qa" never
// deletes "qa_v2".
func (r *Repository) findInNamespace(ctx context.Context, agentName string) ([]string, error) {
	items, err := r.params.ListByPrefix(ctx, agentRoot)
	if err != nil {
		return nil, err
	}
	live := map[string]bool{}
	for _, it := range items {
		if owner := ownerOf(it.Path); owner != "" && it.Path == ConfigPath(owner) {
			live[owner] = true
		}
	}
	var paths []string
	for _, it := range items {
		if !strings.Contains(strings.TrimPrefix(it.Path, agentRoot), agentName) {
			continue
		}
		if owner := ownerOf(it.Path); owner != "" && owner != agentName && live[owner] {
			continue
		}
		paths = append(paths, it.Path)
	}
	return paths, nil
}

func (r *Repository) probeLegacy(ctx context.Context, agentName string) ([]string, error) {
	var paths []string
	for _, path := range legacyPromptPaths(agentName) {
		ok, err := r.params.Exists(ctx, path)
		if err != nil {
			return nil, err
		}
		if ok {
			paths = append(paths, path)
		}
	}
	return paths, nil
}
