// Package parser reads and writes memo files: YAML frontmatter carrying the
// memo metadata, followed by the free-text body. It also extracts the
// back-references and #tags the index stores.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/memolog/internal/models"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	mentionRe  = regexp.MustCompile(`@([\p{L}\p{N}_/-]+)`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#(\p{L}[\p{L}\p{N}_/-]*)`)
)

const titleMaxRunes = 80

// Meta is the frontmatter block of a memo file.
type Meta struct {
	ID          string            `yaml:"id"`
	CreatedAt   time.Time         `yaml:"created_at"`
	DisplayTime time.Time         `yaml:"display_time,omitempty"`
	Visibility  models.Visibility `yaml:"visibility,omitempty"`
}

// Result holds the output of parsing a memo file.
type Result struct {
	Meta  Meta
	Body  string
	Links []models.Link
	Tags  []string
	Title string
}

// Parse splits frontmatter from body and extracts back-references and tags.
// Files without (or with broken) frontmatter are treated as body only.
func Parse(data []byte) (*Result, error) {
	meta, body := splitFrontmatter(data)
	return &Result{
		Meta:  meta,
		Body:  body,
		Links: extractLinks(meta.ID, body),
		Tags:  extractTags(body),
		Title: deriveTitle(body),
	}, nil
}

// Note converts a parse result into a models.Note. A non-empty id (usually
// derived from the file path) wins over the frontmatter id.
func (r *Result) Note(id string) models.Note {
	n := models.Note{
		ID:          id,
		Content:     r.Body,
		Visibility:  r.Meta.Visibility,
		Tags:        r.Tags,
		CreatedAt:   r.Meta.CreatedAt,
		DisplayTime: r.Meta.DisplayTime,
	}
	if n.ID == "" {
		n.ID = r.Meta.ID
	}
	n.Visibility = models.ParseVisibility(string(n.Visibility))
	if n.DisplayTime.IsZero() {
		n.DisplayTime = n.CreatedAt
	}
	if n.Tags == nil {
		n.Tags = []string{}
	}
	return n
}

// Encode renders a memo file from a note.
func Encode(n models.Note) ([]byte, error) {
	fm, err := yaml.Marshal(Meta{
		ID:          n.ID,
		CreatedAt:   n.CreatedAt,
		DisplayTime: n.DisplayTime,
		Visibility:  n.Visibility,
	})
	if err != nil {
		return nil, fmt.Errorf("parser: encode frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(fm)
	buf.WriteString("---\n")
	buf.WriteString(n.Content)
	return buf.Bytes(), nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the body.
func splitFrontmatter(data []byte) (Meta, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return Meta{}, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return Meta{}, string(data)
	}

	yamlBlock := rest[:idx]
	body := string(rest[idx+1+len(delim):])
	body = strings.TrimPrefix(strings.TrimPrefix(body, "\r"), "\n")

	var meta Meta
	if err := yaml.Unmarshal(yamlBlock, &meta); err != nil {
		return Meta{}, string(data)
	}
	return meta, body
}

// extractLinks returns deduplicated back-references: [[id]] wikilinks
// (aliases stripped) and @id mentions. Self-references are dropped.
func extractLinks(self, body string) []models.Link {
	seen := make(map[string]struct{})
	var out []models.Link
	add := func(target, kind string) {
		target = strings.TrimSpace(target)
		if target == "" || target == self {
			return
		}
		if _, ok := seen[target]; ok {
			return
		}
		seen[target] = struct{}{}
		out = append(out, models.Link{Source: self, Target: target, Type: kind})
	}
	for _, m := range wikilinkRe.FindAllStringSubmatch(body, -1) {
		target := m[1]
		if i := strings.Index(target, "|"); i >= 0 {
			target = target[:i]
		}
		add(target, "wikilink")
	}
	for _, m := range mentionRe.FindAllStringSubmatch(body, -1) {
		add(m[1], "mention")
	}
	return out
}

// extractTags collects #tags from the body.
func extractTags(body string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		t := m[1]
		if _, dup := seen[t]; !dup {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// deriveTitle returns the first H1 heading, otherwise the first non-empty
// line cut to a readable length.
func deriveTitle(body string) string {
	first := ""
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
		if first == "" && trimmed != "" {
			first = trimmed
		}
	}
	if r := []rune(first); len(r) > titleMaxRunes {
		return string(r[:titleMaxRunes])
	}
	return first
}
