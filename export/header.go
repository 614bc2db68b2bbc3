package export

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// formatVersion is the version of the generated metadata format.
const formatVersion = "0.12"

// Header is the leading document of a metadata export file.
type Header struct {
	File         string `yaml:"File"`
	Version      string `yaml:"Version"`
	Origin       string `yaml:"Origin"`
	MediaBaseURL string `yaml:"MediaBaseUrl,omitempty"`
	Priority     int    `yaml:"Priority,omitempty"`
}

// HeaderDocument renders the header document for a repository, suite and
// section, including the trailing document separator.
func HeaderDocument(repoName, suite, section, mediaBaseURL string, priority int) (string, error) {
	h := Header{
		File:         "DEP-11",
		Version:      formatVersion,
		Origin:       fmt.Sprintf("%s-%s-%s", repoName, suite, section),
		MediaBaseURL: mediaBaseURL,
		Priority:     priority,
	}
	out, err := yaml.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("encoding export header: %w", err)
	}
	return "---\n" + string(out), nil
}
