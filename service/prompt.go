package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/arjunpratapdas/contractiq/model"
)

// SystemPrompt is sent as the system instruction by providers that accept one
const SystemPrompt = "You are a legal document assistant that creates professional, legally-sound contracts. " +
	"Always include proper legal formatting, clear terms, and appropriate clauses for the specified jurisdiction."

// DefaultRequirements is used when the visitor leaves requirements blank
const DefaultRequirements = "Standard terms and conditions appropriate for this type of agreement."

// PromptDateLayout renders the current date embedded in the prompt
const PromptDateLayout = "January 02, 2006"

var promptChecklist = []string{
	"Use proper legal headings and a clear title.",
	"Number every section and sub-clause.",
	"Include a definitions section for key terms.",
	"End with signature blocks for all parties, with names, titles and dates.",
}

// BuildPrompt renders the generation prompt. The output is a pure function of its inputs.
func BuildPrompt(docType model.DocumentType, jurisdiction, requirements string, now time.Time) (string, error) {
	jurisdiction = strings.TrimSpace(jurisdiction)
	if jurisdiction == "" {
		return "", newValidationError("jurisdiction", "select a country before generating a contract")
	}

	requirements = strings.TrimSpace(requirements)
	if requirements == "" {
		requirements = DefaultRequirements
	}
	label := docType.Label()

	var b strings.Builder
	fmt.Fprintf(&b, "Generate a professional %s for the jurisdiction of %s.\n\n", label, jurisdiction)
	b.WriteString("The document should be formatted as a proper legal contract with appropriate sections, clauses, and legal language.\n\n")
	fmt.Fprintf(&b, "Specific requirements for this contract:\n%s\n\n", requirements)
	fmt.Fprintf(&b, "The contract should be compliant with the laws of %s and include the current date: %s.\n\n",
		jurisdiction, now.Format(PromptDateLayout))
	b.WriteString("Formatting checklist:\n")
	for i, item := range promptChecklist {
		fmt.Fprintf(&b, "%d. %s\n", i+1, item)
	}
	fmt.Fprintf(&b, "%d. Ensure every clause complies with the applicable laws of %s.\n", len(promptChecklist)+1, jurisdiction)
	return b.String(), nil
}
