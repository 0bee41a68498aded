package model

// GuidanceBundle is static remediation metadata attached to a problem type.
// All fields may be empty; an empty bundle means no guidance is known.
type GuidanceBundle struct {
	Steps       []string `json:"steps,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	Tools       []string `json:"tools,omitempty"`
	Commands    []string `json:"commands,omitempty"`
}

// Empty reports whether the bundle carries no guidance at all
func (b GuidanceBundle) Empty() bool {
	return len(b.Steps) == 0 && len(b.Permissions) == 0 && len(b.Tools) == 0 && len(b.Commands) == 0
}
