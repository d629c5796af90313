package ai

import (
	"encoding/json"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ggokuldas06/tds-project1/internal/logging"
	"github.com/ggokuldas06/tds-project1/pkg/models"
)

// Extraction sources recorded on every parse result.
const (
	SourceJSON         = "json"
	SourceCodeFence    = "code-fence"
	SourceHTMLDocument = "html-document"
	SourceEmpty        = "empty"
)

var (
	htmlFenceRe = regexp.MustCompile("(?s)```html\n(.*?)```")
	cssFenceRe  = regexp.MustCompile("(?s)```css\n(.*?)```")
	jsFenceRe   = regexp.MustCompile("(?s)```(?:javascript|js)\n(.*?)```")
	htmlDocRe   = regexp.MustCompile(`(?si)<!DOCTYPE html>.*?</html>`)
)

// ParseResult is an extracted file set tagged with how it was recovered
// from the model output.
type ParseResult struct {
	Files  models.FileSet
	Source string
}

// Parse extracts generated files from raw model output. A JSON object is
// tried first (a "files" key when present, otherwise the whole object),
// then markdown code fences, then a bare HTML document. An empty result
// is valid and tagged as such.
func Parse(raw string) ParseResult {
	if files, ok := parseJSON(raw); ok {
		return ParseResult{Files: files, Source: SourceJSON}
	}

	logging.L().Warn("Could not parse JSON response, extracting code blocks")

	if files := extractCodeBlocks(raw); len(files) > 0 {
		return ParseResult{Files: files, Source: SourceCodeFence}
	}

	if doc := htmlDocRe.FindString(raw); doc != "" {
		return ParseResult{
			Files:  models.FileSet{"index.html": []byte(doc)},
			Source: SourceHTMLDocument,
		}
	}

	return ParseResult{Files: models.FileSet{}, Source: SourceEmpty}
}

// parseJSON attempts the first-brace to last-brace substring as a JSON
// object. Only string file contents are accepted.
func parseJSON(raw string) (models.FileSet, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	candidate := raw[start : end+1]

	var outer map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &outer); err != nil {
		return nil, false
	}

	if inner, ok := outer["files"]; ok {
		var files map[string]string
		if err := json.Unmarshal(inner, &files); err != nil {
			return nil, false
		}
		return toFileSet(files), true
	}

	var files map[string]string
	if err := json.Unmarshal([]byte(candidate), &files); err != nil {
		return nil, false
	}
	return toFileSet(files), true
}

func toFileSet(in map[string]string) models.FileSet {
	files := make(models.FileSet, len(in))
	for name, content := range in {
		files[name] = []byte(content)
	}
	return files
}

// extractCodeBlocks recovers files from markdown fences when the model
// ignored the JSON output instruction.
func extractCodeBlocks(text string) models.FileSet {
	files := models.FileSet{}

	if m := htmlFenceRe.FindStringSubmatch(text); m != nil {
		files["index.html"] = []byte(strings.TrimSpace(m[1]))
	}
	if m := cssFenceRe.FindStringSubmatch(text); m != nil {
		files["style.css"] = []byte(strings.TrimSpace(m[1]))
	}
	if m := jsFenceRe.FindStringSubmatch(text); m != nil {
		files["script.js"] = []byte(strings.TrimSpace(m[1]))
	}

	return files
}

// MergeAttachments overlays decoded data URI attachments onto files.
// Attachment content wins on name collisions. Undecodable attachments
// are logged and skipped.
func MergeAttachments(files models.FileSet, attachments []models.Attachment) models.FileSet {
	if files == nil {
		files = models.FileSet{}
	}

	for _, att := range attachments {
		if !strings.HasPrefix(att.URL, "data:") {
			continue
		}

		uri, err := ParseDataURI(att.URL)
		if err != nil {
			logging.L().Error("Error processing attachment",
				zap.String("name", att.Name), zap.Error(err))
			continue
		}

		content, err := uri.Decode()
		if err != nil {
			logging.L().Error("Error processing attachment",
				zap.String("name", att.Name), zap.Error(err))
			continue
		}

		files[att.Name] = content
	}

	return files
}
