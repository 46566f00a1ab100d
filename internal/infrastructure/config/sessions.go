package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SessionsConfig holds dynamic session definitions (read/write).
type SessionsConfig struct {
	Sessions map[string]SessionEntry `yaml:"sessions,omitempty"`
}

// SessionEntry holds configuration for a specific game session.
type SessionEntry struct {
	Collection   string             `yaml:"collection"`
	Description  string             `yaml:"description,omitempty"`
	Participants []ParticipantEntry `yaml:"participants,omitempty"`
}

// ParticipantEntry is one registered participant of a session.
type ParticipantEntry struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Role string `yaml:"role"`
}

// LoadSessions loads session configuration from the .realms directory.
func LoadSessions(basePath string) (*SessionsConfig, error) {
	sessionsFile := filepath.Join(basePath, DefaultConfigDir, DefaultSessionsFile)

	data, err := os.ReadFile(sessionsFile)
	if os.IsNotExist(err) {
		// Return empty config if file doesn't exist
		return &SessionsConfig{
			Sessions: make(map[string]SessionEntry),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading sessions file: %w", err)
	}

	var cfg SessionsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing sessions file: %w", err)
	}

	if cfg.Sessions == nil {
		cfg.Sessions = make(map[string]SessionEntry)
	}

	return &cfg, nil
}

// Save writes the session configuration to the sessions file.
func (s *SessionsConfig) Save(basePath string) error {
	configDir := filepath.Join(basePath, DefaultConfigDir)
	sessionsFile := filepath.Join(configDir, DefaultSessionsFile)

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling sessions config: %w", err)
	}

	if err := os.WriteFile(sessionsFile, data, 0600); err != nil {
		return fmt.Errorf("writing sessions file: %w", err)
	}

	return nil
}

// Add adds a session to the configuration.
func (s *SessionsConfig) Add(name string, entry SessionEntry) {
	if s.Sessions == nil {
		s.Sessions = make(map[string]SessionEntry)
	}
	s.Sessions[name] = entry
}

// Remove removes a session from the configuration.
func (s *SessionsConfig) Remove(name string) {
	if s.Sessions != nil {
		delete(s.Sessions, name)
	}
}

// Get returns the configuration for a specific session.
func (s *SessionsConfig) Get(name string) (*SessionEntry, error) {
	if len(s.Sessions) == 0 {
		return nil, errors.New("no sessions configured")
	}

	entry, ok := s.Sessions[name]
	if !ok {
		var b strings.Builder
		count := 0
		for k := range s.Sessions {
			if count > 0 {
				b.WriteString(", ")
			}
			b.WriteString(k)
			count++
			if count >= 5 {
				b.WriteString(", ...")
				break
			}
		}
		return nil, fmt.Errorf("session %q not found (available: %s)", name, b.String())
	}

	return &entry, nil
}

// GetCollection returns the vector collection name for a session.
func (s *SessionsConfig) GetCollection(name string) (string, error) {
	entry, err := s.Get(name)
	if err != nil {
		return "", err
	}
	return entry.Collection, nil
}

// Exists checks if a session exists in the configuration.
func (s *SessionsConfig) Exists(name string) bool {
	if s.Sessions == nil {
		return false
	}
	_, ok := s.Sessions[name]
	return ok
}

// AddParticipant appends a participant to a session entry.
func (s *SessionsConfig) AddParticipant(name string, participant ParticipantEntry) error {
	entry, err := s.Get(name)
	if err != nil {
		return err
	}
	for _, p := range entry.Participants {
		if p.ID == participant.ID {
			return fmt.Errorf("participant %q already registered in session %q", participant.ID, name)
		}
	}
	entry.Participants = append(entry.Participants, participant)
	s.Sessions[name] = *entry
	return nil
}

// SessionsExists checks if a sessions config file exists in the given path.
func SessionsExists(basePath string) bool {
	sessionsFile := filepath.Join(basePath, DefaultConfigDir, DefaultSessionsFile)
	_, err := os.Stat(sessionsFile)
	return err == nil
}
