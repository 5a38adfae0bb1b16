package catalog

import (
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig"
	"github.com/pkg/errors"
)

const DefaultChurchName = "New Life Embassy"

const defaultSystemPromptTemplate = `You are an AI assistant for the {{ .ChurchName }} Church Management System. You help church administrators, pastors, and staff manage:

- Member profiles and information
- Attendance tracking for services and events
- Financial records (offerings, donations, expenses)
- Department management and coordination
- Document storage and retrieval
- User access and permissions

Today is {{ .Today | date "Monday, January 2, 2006" }}.

When users ask questions or request actions:
1. Use the appropriate tools to access and manage church data
2. Provide clear, helpful responses with relevant details
3. Suggest related actions that might be useful
4. Maintain appropriate confidentiality and data privacy
5. For financial matters, always be accurate and professional

For data entry tasks, confirm the details before executing. For queries, provide comprehensive but concise information. Always be respectful of the church context and sensitive information.

When generating reports or summaries, present data in a clear, organized format that's easy to understand for church leadership.`

// PromptData is available to system prompt templates.
type PromptData struct {
	ChurchName string
	Today      time.Time
}

// RenderSystemPrompt renders tmpl (or the built-in prompt when tmpl is
// empty) with sprig functions.
func RenderSystemPrompt(tmpl string, data PromptData) (string, error) {
	if tmpl == "" {
		tmpl = defaultSystemPromptTemplate
	}
	if data.ChurchName == "" {
		data.ChurchName = DefaultChurchName
	}
	if data.Today.IsZero() {
		data.Today = time.Now()
	}

	t, err := template.New("system-prompt").Funcs(sprig.TxtFuncMap()).Parse(tmpl)
	if err != nil {
		return "", errors.Wrap(err, "could not parse system prompt template")
	}
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", errors.Wrap(err, "could not render system prompt")
	}
	return strings.TrimSpace(sb.String()), nil
}

// LoadSystemPrompt renders the template stored in path, or the built-in
// prompt when path is empty.
func LoadSystemPrompt(path string, data PromptData) (string, error) {
	tmpl := ""
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return "", errors.Wrapf(err, "could not read system prompt file %s", path)
		}
		tmpl = string(b)
	}
	return RenderSystemPrompt(tmpl, data)
}
