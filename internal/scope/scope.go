package scope

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/membridge/membridge/internal/config"
)

// Scope identifies which memory partition a turn is written to.
type Scope string

const (
	Session   Scope = "session"
	Workspace Scope = "workspace"
	User      Scope = "user"
)

// Target is one fan-out destination for an enqueue operation.
type Target struct {
	Scope   Scope
	GroupID string
}

// GroupID derives the memory service partition key for a scope and its
// human-meaningful key. The "hashed" strategy keeps raw identifiers
// (session IDs, workspace paths) out of the external store.
func GroupID(strategy string, s Scope, key string) string {
	if strategy == "raw" {
		return fmt.Sprintf("%s-%s", s, key)
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s", s, key)))
	return fmt.Sprintf("%s-%s", s, hex.EncodeToString(sum[:])[:32])
}

// Targets computes the fan-out destinations for a snapshot of the given
// session under the configured scope set. The session target is omitted
// when sessionID is empty; the user target exists only under "all".
func Targets(cfg config.PipelineConfig, sessionID string) []Target {
	workspaceKey := cfg.WorkspaceKey
	if workspaceKey == "" {
		workspaceKey = cfg.WorkspaceID
	}

	var targets []Target
	add := func(s Scope, key string) {
		if key == "" {
			return
		}
		targets = append(targets, Target{Scope: s, GroupID: GroupID(cfg.GroupStrategy, s, key)})
	}

	switch cfg.Scopes {
	case "session":
		add(Session, sessionID)
	case "workspace":
		add(Workspace, workspaceKey)
	case "both":
		add(Session, sessionID)
		add(Workspace, workspaceKey)
	case "all":
		add(Session, sessionID)
		add(Workspace, workspaceKey)
		add(User, cfg.UserKey)
	}
	return targets
}

// RecallOrder lists the scopes to search, highest priority first, for
// the configured scope set.
func RecallOrder(scopes string) []Scope {
	switch scopes {
	case "session":
		return []Scope{Session}
	case "workspace":
		return []Scope{Workspace}
	case "all":
		return []Scope{Session, Workspace, User}
	default:
		return []Scope{Session, Workspace}
	}
}
