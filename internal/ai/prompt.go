package ai

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ggokuldas06/tds-project1/internal/logging"
	"github.com/ggokuldas06/tds-project1/pkg/models"
)

// SystemPrompt is the fixed instruction set for application generation.
const SystemPrompt = `You are an expert web developer specializing in creating clean, working web applications.

Your task is to generate a complete, functional web application based on the user's requirements.

CRITICAL REQUIREMENTS:
1. Create working code that runs in a browser
2. Use CDN links for any libraries (Bootstrap, jQuery, Chart.js, etc.)
3. Make the app professional and user-friendly
4. Follow the brief EXACTLY - implement all requirements
5. Ensure all validation checks will pass
6. Use modern, clean code with proper error handling
7. Add helpful comments explaining key logic

OUTPUT FORMAT:
Return your response as a valid JSON object with this structure:
{
  "files": {
    "index.html": "<!DOCTYPE html>\n<html>...",
    "style.css": "/* Optional separate CSS */",
    "script.js": "// Optional separate JS"
  }
}

If the app can fit in a single HTML file with embedded CSS/JS, that's fine - just include index.html.
If you need separate files for better organization, include style.css and/or script.js.

IMPORTANT: Return ONLY the JSON object, no other text.`

// BuildPrompt assembles the user prompt for one generation round: task
// header, brief, numbered validation checks and attachment previews.
func BuildPrompt(task string, round int, brief string, checks []string, attachments []models.Attachment) string {
	parts := []string{
		fmt.Sprintf("**Task ID:** %s", task),
		fmt.Sprintf("**Round:** %d", round),
		fmt.Sprintf("\n**Brief:**\n%s", brief),
	}

	if len(checks) > 0 {
		parts = append(parts, "\n**Validation Checks (your app must pass these):**")
		for i, check := range checks {
			parts = append(parts, fmt.Sprintf("%d. %s", i+1, check))
		}
	}

	if len(attachments) > 0 {
		parts = append(parts, "\n**Attachments:**")
		for _, att := range attachments {
			if !strings.HasPrefix(att.URL, "data:") {
				continue
			}
			preview, err := attachmentPreview(att)
			if err != nil {
				logging.L().Warn("Could not decode attachment",
					zap.String("name", att.Name), zap.Error(err))
				parts = append(parts, fmt.Sprintf("\n**%s:** [Binary data]", att.Name))
				continue
			}
			parts = append(parts, preview)
		}
	}

	parts = append(parts, "\n**Generate the complete web application now.**")

	return strings.Join(parts, "\n")
}

// attachmentPreview renders one data URI attachment for prompt context.
// Text-like payloads are shown inline up to 1000 decoded bytes, other
// base64 payloads only by size, raw payloads up to 500 chars.
func attachmentPreview(att models.Attachment) (string, error) {
	uri, err := ParseDataURI(att.URL)
	if err != nil {
		return "", err
	}

	if !uri.Base64 {
		raw := uri.Payload
		if len(raw) > 500 {
			raw = raw[:500]
		}
		return fmt.Sprintf("\n**%s** (%s):\n```\n%s\n```", att.Name, uri.MediaType, raw), nil
	}

	decoded, err := uri.Decode()
	if err != nil {
		return "", err
	}

	if isTextLike(uri.MediaType) {
		text := string(decoded)
		if len(text) > 1000 {
			text = text[:1000]
		}
		return fmt.Sprintf("\n**%s** (%s):\n```\n%s\n```", att.Name, uri.MediaType, text), nil
	}

	return fmt.Sprintf("\n**%s** (%s): [Binary data, %d bytes]", att.Name, uri.MediaType, len(decoded)), nil
}

func isTextLike(mediaType string) bool {
	for _, t := range []string{"text", "json", "csv", "xml"} {
		if strings.Contains(mediaType, t) {
			return true
		}
	}
	return false
}
