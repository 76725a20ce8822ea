package recall

import (
	"context"
	"log/slog"
	"strings"

	"github.com/membridge/membridge/internal/graphmem"
	"github.com/membridge/membridge/internal/metrics"
	"github.com/membridge/membridge/internal/pipeline"
	"github.com/membridge/membridge/internal/scope"
)

// Searcher is the slice of the memory service the read path uses.
type Searcher interface {
	Search(ctx context.Context, query string, groupIDs []string, maxFacts int) ([]graphmem.Fact, error)
}

// Aggregator fans a query out across the enabled scopes, merges the
// results and caps the total. It is stateless; per-request state only.
type Aggregator struct {
	searcher Searcher
	resolver pipeline.Resolver
}

func NewAggregator(searcher Searcher, resolver pipeline.Resolver) *Aggregator {
	return &Aggregator{searcher: searcher, resolver: resolver}
}

// Facts searches each enabled scope in priority order, session first,
// then workspace, then user, deduplicating by fact UUID (falling back
// to the fact text) and stopping at the configured cap. A failing
// scope is logged and skipped; the remaining scopes still run. Blank
// queries and invalid configuration yield an empty result, never an
// error: recall is best effort.
func (a *Aggregator) Facts(ctx context.Context, sessionID, query string) []graphmem.Fact {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	cfg, ok := a.resolver.Resolve(ctx)
	if !ok {
		metrics.RecallRequestsTotal.WithLabelValues("disabled").Inc()
		return nil
	}

	maxFacts := cfg.MaxRecallFacts
	seen := make(map[string]bool)
	var facts []graphmem.Fact

	for _, sc := range scope.RecallOrder(cfg.Scopes) {
		if len(facts) >= maxFacts {
			break
		}
		groupID, ok := recallGroupID(cfg, sc, sessionID)
		if !ok {
			continue
		}

		remaining := maxFacts - len(facts)
		results, err := a.searcher.Search(ctx, query, []string{groupID}, remaining)
		if err != nil {
			slog.Warn("recall: scope search failed", "scope", sc, "error", err)
			continue
		}

		for _, f := range results {
			key := f.UUID
			if key == "" {
				key = f.Fact
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			facts = append(facts, f)
			if len(facts) >= maxFacts {
				break
			}
		}
	}

	metrics.RecallRequestsTotal.WithLabelValues("ok").Inc()
	return facts
}

func recallGroupID(cfg pipeline.ResolvedConfig, sc scope.Scope, sessionID string) (string, bool) {
	switch sc {
	case scope.Session:
		if sessionID == "" {
			return "", false
		}
		return scope.GroupID(cfg.GroupStrategy, scope.Session, sessionID), true
	case scope.Workspace:
		key := cfg.WorkspaceKey
		if key == "" {
			key = cfg.WorkspaceID
		}
		if key == "" {
			return "", false
		}
		return scope.GroupID(cfg.GroupStrategy, scope.Workspace, key), true
	case scope.User:
		if cfg.UserKey == "" {
			return "", false
		}
		return scope.GroupID(cfg.GroupStrategy, scope.User, cfg.UserKey), true
	}
	return "", false
}
