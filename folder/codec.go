package folder

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/brettbedarf/issuefs/internal/util"
	"gopkg.in/yaml.v3"
)

// ParseError is returned by [Decode] for a structurally invalid config document.
// The caller must not apply anything from a failed decode.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid folder config: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Encode serializes cfg as config.yaml markup. Keys keep the fixed
// [Config] field order so successive edits diff cleanly.
func Encode(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// rawConfig defers backend blocks so a malformed block only resets that backend
type rawConfig struct {
	Enabled    *bool     `yaml:"enabled"`
	Persistent *bool     `yaml:"persistent"`
	Jira       yaml.Node `yaml:"jira"`
	GitHub     yaml.Node `yaml:"github"`
	Bugzilla   yaml.Node `yaml:"bugzilla"`
}

// Decode parses config.yaml markup. Missing or malformed backend blocks
// decode to that backend's empty query; an invalid document, a non-mapping
// root or mistyped enabled/persistent values yield a [*ParseError].
func Decode(data []byte) (Config, error) {
	var cfg Config

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return cfg, &ParseError{Err: err}
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		// empty document
		return cfg, nil
	}
	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return cfg, nil
	}
	if root.Kind != yaml.MappingNode {
		return cfg, &ParseError{Err: errors.New("document must be a mapping")}
	}

	var raw rawConfig
	if err := root.Decode(&raw); err != nil {
		return cfg, &ParseError{Err: err}
	}

	if raw.Enabled != nil {
		cfg.Enabled = *raw.Enabled
	}
	if raw.Persistent != nil {
		cfg.Persistent = *raw.Persistent
	}

	jira := decodeBlock[JiraQuery](&raw.Jira, "jira")
	jira.JQL = strings.TrimSpace(jira.JQL)
	jira.IDs = cleanIDs(jira.IDs)
	cfg.Jira = jira

	gh := decodeBlock[GitHubQuery](&raw.GitHub, "github")
	gh.Repo = strings.Trim(strings.TrimSpace(gh.Repo), "/")
	gh.Query = strings.TrimSpace(gh.Query)
	gh.IDs = cleanIDs(gh.IDs)
	cfg.GitHub = gh

	bz := decodeBlock[BugzillaQuery](&raw.Bugzilla, "bugzilla")
	bz.Query = strings.TrimSpace(bz.Query)
	bz.IDs = cleanIDs(bz.IDs)
	cfg.Bugzilla = bz

	return cfg, nil
}

// decodeBlock decodes one backend block, accepting the legacy list form
// (`jira: [{jql: ...}]`) by using its first element.
func decodeBlock[T any](n *yaml.Node, name string) T {
	logger := util.GetLogger("folder.Decode")

	var q T
	node := n
	if node.Kind == 0 {
		return q
	}
	if node.Kind == yaml.SequenceNode {
		if len(node.Content) == 0 {
			return q
		}
		node = node.Content[0]
	}
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return q
	}
	if node.Kind != yaml.MappingNode {
		logger.Warn().Str("backend", name).Int("line", node.Line).Msg("Backend block is not a mapping; using empty config")
		return q
	}
	if err := node.Decode(&q); err != nil {
		logger.Warn().Err(err).Str("backend", name).Msg("Malformed backend block; using empty config")
		var zero T
		return zero
	}
	return q
}

// cleanIDs trims ids and drops empty ones, keeping order
func cleanIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
