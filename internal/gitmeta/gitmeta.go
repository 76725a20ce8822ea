package gitmeta

import (
	"fmt"
	"strings"

	"github.com/membridge/membridge/internal/config"
	"github.com/membridge/membridge/internal/graphmem"
)

// Static supplies ownership context from configuration. Collecting
// live git metadata is a collaborator's job; deployments hand the
// resolved values in via config.
type Static struct {
	workspaceID string
	repo        string
	branch      string
	owner       string
}

func NewStatic(pipelineCfg config.PipelineConfig, gitCfg config.GitConfig) *Static {
	return &Static{
		workspaceID: pipelineCfg.WorkspaceID,
		repo:        gitCfg.Repo,
		branch:      gitCfg.Branch,
		owner:       gitCfg.Owner,
	}
}

// ContextMessage builds the synthetic leading system message that
// attributes a conversation to its repository and owner. ok is false
// when there is nothing worth attributing.
func (s *Static) ContextMessage() (graphmem.Message, bool) {
	var parts []string
	if s.repo != "" {
		parts = append(parts, "repository "+s.repo)
	}
	if s.branch != "" {
		parts = append(parts, "branch "+s.branch)
	}
	if s.owner != "" {
		parts = append(parts, "owned by "+s.owner)
	}
	if len(parts) == 0 {
		return graphmem.Message{}, false
	}
	return graphmem.Message{
		RoleType: graphmem.RoleSystem,
		Role:     "system",
		Content:  fmt.Sprintf("Conversation context: %s.", strings.Join(parts, ", ")),
	}, true
}

// SourceDescription labels where ingested messages came from.
func (s *Static) SourceDescription() string {
	if s.repo != "" {
		return fmt.Sprintf("chat session in %s", s.repo)
	}
	return fmt.Sprintf("chat session in workspace %s", s.workspaceID)
}
