package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version  int             `toml:"version"`
	Sessions []sessionSchema `toml:"sessions"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported sessions schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

// sessionSchema holds only non-secret session fields.
type sessionSchema struct {
	Kind          string `toml:"kind"`
	Method        string `toml:"method"`
	State         string `toml:"state"`
	Address       string `toml:"address,omitempty"`
	PublicKey     string `toml:"public_key,omitempty"`
	Name          string `toml:"name,omitempty"`
	CanSign       bool   `toml:"can_sign"`
	PeerTopic     string `toml:"peer_topic,omitempty"`
	ConnectedAt   string `toml:"connected_at,omitempty"`
	UpdatedAt     string `toml:"updated_at,omitempty"`
	FailureReason string `toml:"failure_reason,omitempty"`
}
