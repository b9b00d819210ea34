package archive

import (
	"time"

	"gopkg.in/yaml.v3"
)

const manifestVersion = "1"

// Manifest is the signed description of an archive.
type Manifest struct {
	Version          string         `yaml:"version"`
	CreatedAt        time.Time      `yaml:"created_at"`
	Since            time.Time      `yaml:"since"`
	Until            time.Time      `yaml:"until,omitempty"`
	Signer           string         `yaml:"signer,omitempty"`
	SigningPublicKey string         `yaml:"signing_public_key,omitempty"`
	Signature        string         `yaml:"signature,omitempty"`
	Entries          EntriesFile    `yaml:"entries"`
	Actions          map[string]int `yaml:"actions,omitempty"`
}

// EntriesFile describes entries.jsonl inside the archive.
type EntriesFile struct {
	Path   string    `yaml:"path"`
	Count  int       `yaml:"count"`
	Size   int64     `yaml:"size"`
	SHA256 string    `yaml:"sha256"`
	First  time.Time `yaml:"first,omitempty"`
	Last   time.Time `yaml:"last,omitempty"`
}

// SigningBytes marshals the manifest without its signature for signing/verification.
func (m Manifest) SigningBytes() ([]byte, error) {
	clone := m
	clone.Signature = ""
	return yaml.Marshal(clone)
}
