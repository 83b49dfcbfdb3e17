package hitl

import (
	"fmt"
	"strings"
)

var rule = strings.Repeat("=", 50)

// FormatForDisplay renders req as plain text for a terminal.
func FormatForDisplay(req *Request) string {
	lines := []string{"", rule, "🔔 " + req.Title, rule, "", req.Message, ""}
	if len(req.Options) > 0 {
		lines = append(lines, "Options:")
		for i, opt := range req.Options {
			prefix := "   "
			if opt.Recommended {
				prefix = "👉 "
			}
			lines = append(lines, fmt.Sprintf("%s%d. %s", prefix, i+1, opt.Label))
			if opt.Description != "" {
				lines = append(lines, "      "+opt.Description)
			}
		}
	}
	lines = append(lines, "", "Enter your choice (or type your response):")
	return strings.Join(lines, "\n")
}

// FormatForDisplay renders req as plain text for a terminal.
func (m *Manager) FormatForDisplay(req *Request) string {
	return FormatForDisplay(req)
}
