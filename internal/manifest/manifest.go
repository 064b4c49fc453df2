// Package manifest reads the message manifest that names, per distribution
// version, the entry schema documents to flatten.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest maps a version label to the message schemas published for it.
type Manifest struct {
	Versions map[string][]string `yaml:"versions"`
}

// Load reads and parses the manifest file at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes manifest data. The canonical layout nests message lists
// under a versions key; the legacy layout is a bare mapping of version
// label to message list. YAML is a superset of JSON, so either dialect
// parses with the same decoder.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if len(m.Versions) == 0 {
		var bare map[string][]string
		if err := yaml.Unmarshal(data, &bare); err == nil && len(bare) > 0 {
			m.Versions = bare
		}
	}
	if len(m.Versions) == 0 {
		return nil, errors.New("manifest lists no versions")
	}
	return &m, nil
}

// Messages returns the schema file names for one version label, each
// normalized to carry the .xsd extension.
func (m *Manifest) Messages(version string) ([]string, error) {
	msgs, ok := m.Versions[version]
	if !ok {
		return nil, fmt.Errorf("unknown version %q; manifest defines %s",
			version, strings.Join(m.VersionLabels(), ", "))
	}
	out := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, NormalizeMessage(msg))
	}
	return out, nil
}

// VersionLabels returns every version label in the manifest, sorted.
func (m *Manifest) VersionLabels() []string {
	out := make([]string, 0, len(m.Versions))
	for v := range m.Versions {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// NormalizeMessage maps a manifest message name to its schema file name.
func NormalizeMessage(name string) string {
	if strings.HasSuffix(name, ".xsd") {
		return name
	}
	return name + ".xsd"
}
