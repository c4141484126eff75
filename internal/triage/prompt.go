package triage

import (
	"fmt"
	"strings"
)

// buildSystemPrompt constructs the instructions that define the triage report format.
func buildSystemPrompt() string {
	return `You are an expert IT support ticket triaging system. Your task is to analyze the IT ticket you are given and provide a structured triage report.

The triage report must include the following sections:
- **Urgency**: (e.g., Low, Medium, High, Critical)
- **Category**: (e.g., Hardware, Software, Network, Account, Other)
- **Summary**: A brief, one-sentence summary of the issue.
- **Next Step**: Propose a concrete next action. This should be a numbered list of 1-3 clear, actionable steps.
- **New Status**: Based on the "Next Step", set the status to one of the following: "unclear" (if more information is needed), "pending next step" (if the user needs to do something), or "closed" (if no action is required).

Please provide the triage report in markdown format.`
}

// buildTicketPrompt wraps the raw ticket text as the user message.
func buildTicketPrompt(content string) string {
	return fmt.Sprintf("Here is the ticket:\n---\n%s\n---", strings.TrimSpace(content))
}
