package triage

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// Report is a triage report returned by a model, with the classification
// fields pulled out of its markdown.
type Report struct {
	Raw       string   `json:"raw"`
	Urgency   string   `json:"urgency,omitempty"`
	Category  string   `json:"category,omitempty"`
	Summary   string   `json:"summary,omitempty"`
	NextSteps []string `json:"next_steps,omitempty"`
	Status    string   `json:"status,omitempty"`
}

// Label is the short classification of the report, "urgency/category".
func (r Report) Label() string {
	switch {
	case r.Urgency != "" && r.Category != "":
		return r.Urgency + "/" + r.Category
	case r.Urgency != "":
		return r.Urgency
	case r.Category != "":
		return r.Category
	}
	return "unlabeled"
}

var (
	urgencies  = []string{"Low", "Medium", "High", "Critical"}
	categories = []string{"Hardware", "Software", "Network", "Account", "Other"}
	statuses   = []string{"pending next step", "unclear", "closed"}
)

type field int

const (
	fieldNone field = iota
	fieldUrgency
	fieldCategory
	fieldSummary
	fieldNextSteps
	fieldStatus
)

var fieldLabels = map[string]field{
	"urgency":     fieldUrgency,
	"priority":    fieldUrgency,
	"category":    fieldCategory,
	"summary":     fieldSummary,
	"next step":   fieldNextSteps,
	"next steps":  fieldNextSteps,
	"new status":  fieldStatus,
	"status":      fieldStatus,
	"next action": fieldNextSteps,
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// ParseReport extracts the classification fields from a model's markdown
// report. Fields may be written as "**Label**: value" lines, list items,
// headings followed by their value, two column table rows, or comma joined
// "Label: value" pairs on one line. Values that are not one of the known
// urgencies, categories or statuses are kept verbatim.
func ParseReport(raw string) Report {
	src := []byte(raw)
	doc := markdown.Parser().Parse(text.NewReader(src))

	p := &reportParser{rep: Report{Raw: raw}}
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindParagraph, ast.KindTextBlock, ast.KindHeading:
			inList := inListItem(n)
			for _, line := range strings.Split(nodeText(n, src), "\n") {
				p.line(strings.TrimSpace(line), inList)
			}
			return ast.WalkSkipChildren, nil
		case east.KindTableHeader, east.KindTableRow:
			p.row(n, src)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	p.rep.Urgency = canonical(p.rep.Urgency, urgencies)
	p.rep.Category = canonical(p.rep.Category, categories)
	p.rep.Status = canonicalStatus(p.rep.Status)
	return p.rep
}

type reportParser struct {
	rep     Report
	pending field
}

func (p *reportParser) line(s string, inList bool) {
	if s == "" {
		return
	}

	if parts := splitPairs(s); len(parts) > 1 {
		for _, part := range parts {
			p.line(part, inList)
		}
		return
	}

	if f, value, ok := splitLabel(s); ok {
		p.pending = fieldNone
		if value == "" {
			// value follows in the next block
			p.pending = f
			return
		}
		p.set(f, value)
		if f == fieldNextSteps {
			p.pending = fieldNextSteps
		}
		return
	}

	switch p.pending {
	case fieldNone:
	case fieldNextSteps:
		if inList || len(p.rep.NextSteps) == 0 {
			p.rep.NextSteps = append(p.rep.NextSteps, s)
		}
	default:
		p.set(p.pending, s)
		p.pending = fieldNone
	}
}

// row reads a table row as label cell then value cell. Header rows go
// through here too, so "| Field | Value |" is ignored like any other
// unknown label.
func (p *reportParser) row(n ast.Node, src []byte) {
	label := n.FirstChild()
	if label == nil || label.NextSibling() == nil {
		return
	}
	key := strings.TrimRight(strings.TrimSpace(nodeText(label, src)), ":")
	value := strings.TrimSpace(nodeText(label.NextSibling(), src))
	if _, ok := fieldLabels[labelKey(key)]; !ok || value == "" {
		return
	}
	p.pending = fieldNone
	p.line(key+": "+value, false)
}

func (p *reportParser) set(f field, value string) {
	switch f {
	case fieldUrgency:
		if p.rep.Urgency == "" {
			p.rep.Urgency = value
		}
	case fieldCategory:
		if p.rep.Category == "" {
			p.rep.Category = value
		}
	case fieldSummary:
		if p.rep.Summary == "" {
			p.rep.Summary = value
		}
	case fieldStatus:
		if p.rep.Status == "" {
			p.rep.Status = value
		}
	case fieldNextSteps:
		p.rep.NextSteps = append(p.rep.NextSteps, value)
	}
}

// splitLabel recognizes "Label: value" and bare "Label" lines.
func splitLabel(s string) (field, string, bool) {
	label, value, found := strings.Cut(s, ":")
	if !found {
		label = s
	}
	f, ok := fieldLabels[labelKey(label)]
	if !ok {
		return fieldNone, "", false
	}
	return f, strings.TrimSpace(strings.Trim(value, " *_")), true
}

func labelKey(label string) string {
	return strings.ToLower(strings.Trim(label, " *_#-\t"))
}

// splitPairs breaks "Urgency: High, Category: Hardware" into one segment per
// known label. A comma only starts a new segment when a known label and a
// colon follow it, so commas inside values stay put.
func splitPairs(s string) []string {
	if _, _, ok := splitLabel(s); !ok {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] != ',' && s[i] != ';' {
			continue
		}
		label, _, found := strings.Cut(s[i+1:], ":")
		if !found {
			break
		}
		if _, ok := fieldLabels[labelKey(label)]; ok {
			out = append(out, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

// canonical maps a value onto a known term when its first word matches one,
// e.g. "high - printer is on fire" becomes "High".
func canonical(value string, known []string) string {
	v := strings.Trim(value, " .\"'`")
	first := v
	if i := strings.IndexFunc(v, func(r rune) bool { return r == ' ' || r == ',' || r == '(' || r == '/' }); i > 0 {
		first = v[:i]
	}
	for _, k := range known {
		if strings.EqualFold(first, k) {
			return k
		}
	}
	return v
}

func canonicalStatus(value string) string {
	v := strings.ToLower(value)
	for _, s := range statuses {
		if strings.Contains(v, s) {
			return s
		}
	}
	return strings.Trim(value, " .\"'`")
}

func inListItem(n ast.Node) bool {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p.Kind() == ast.KindListItem {
			return true
		}
	}
	return false
}

// nodeText flattens the inline content of n, keeping line breaks.
func nodeText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}
