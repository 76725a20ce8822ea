package graphmem

// RoleType is the coarse message classification understood by the
// memory service.
type RoleType string

const (
	RoleUser      RoleType = "user"
	RoleAssistant RoleType = "assistant"
	RoleSystem    RoleType = "system"
)

// Message is the wire format for a single ingested message. Immutable
// once constructed; content is length-capped before construction.
type Message struct {
	RoleType          RoleType `json:"role_type"`
	Role              string   `json:"role"`
	Content           string   `json:"content"`
	Timestamp         string   `json:"timestamp,omitempty"`
	SourceDescription string   `json:"source_description,omitempty"`
}

// Fact is a single recalled fact from the knowledge graph.
type Fact struct {
	UUID string `json:"uuid,omitempty"`
	Fact string `json:"fact"`
}

// Episode is a previously ingested message returned by the episodes
// diagnostic endpoint.
type Episode struct {
	UUID      string `json:"uuid"`
	Content   string `json:"content"`
	RoleType  string `json:"role_type,omitempty"`
	Role      string `json:"role,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// StatusResponse is the generic success/message envelope the memory
// service returns for mutating calls.
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
