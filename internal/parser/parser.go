// Package parser extracts the date, title, metadata block and body of a
// Historian document.
package parser

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/historian/internal/models"
)

const metaDelim = "---"

var filenameRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\.(.+)\.md$`)

// Metadata holds the optional classifiers read from a document's leading
// metadata block.
type Metadata struct {
	Theme  string   `yaml:"theme"`
	Source string   `yaml:"source"`
	Kind   string   `yaml:"kind"`
	Era    string   `yaml:"era"`
	Tags   LabelSet `yaml:"tags"`
	People LabelSet `yaml:"people"`
}

// LabelSet accepts either a YAML sequence or a comma-separated scalar.
type LabelSet []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *LabelSet) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*l = strings.Split(s, ",")
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	*l = nil
	return nil
}

// Result holds the output of parsing one document.
type Result struct {
	Content  string
	Metadata Metadata
	HasMeta  bool
}

// ParseFilename splits "YYYY-MM-DD.Title.md" into its date and title.
// ok is false for names that do not follow the convention.
func ParseFilename(name string) (created, title string, ok bool) {
	m := filenameRe.FindStringSubmatch(name)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// Parse strips the metadata block from data and decodes it.
func Parse(data []byte) Result {
	raw := string(data)
	block, body, found := splitMetadata(raw)
	if !found {
		return Result{Content: raw}
	}

	res := Result{Content: body, HasMeta: true}
	if err := yaml.Unmarshal([]byte(block), &res.Metadata); err != nil {
		// Invalid YAML: keep the stripped body, drop the classifiers.
		res.Metadata = Metadata{}
	}
	return res
}

// StripMetadata removes a leading metadata block and any whitespace that
// follows it. Content without a closing delimiter is returned unchanged.
func StripMetadata(content string) string {
	_, body, found := splitMetadata(content)
	if !found {
		return content
	}
	return body
}

// splitMetadata separates the block between the opening delimiter at byte 0
// and the first closing delimiter after it.
func splitMetadata(content string) (block, body string, found bool) {
	if !strings.HasPrefix(content, metaDelim) {
		return "", content, false
	}
	end := strings.Index(content[len(metaDelim):], metaDelim)
	if end < 0 {
		return "", content, false
	}
	end += len(metaDelim)
	block = content[len(metaDelim):end]
	body = strings.TrimLeft(content[end+len(metaDelim):], " \t\r\n")
	return block, body, true
}

// Event assembles the event record for a parsed document.
func Event(created, title, sourcePath string, res Result) models.Event {
	ev := models.Event{
		Created:    created,
		Title:      title,
		Content:    res.Content,
		SourcePath: sourcePath,
		Theme:      strings.TrimSpace(res.Metadata.Theme),
		Source:     strings.TrimSpace(res.Metadata.Source),
		Kind:       strings.TrimSpace(res.Metadata.Kind),
		Era:        strings.TrimSpace(res.Metadata.Era),
		Tags:       res.Metadata.Tags,
		People:     res.Metadata.People,
	}
	ev.Normalize()
	return ev
}
