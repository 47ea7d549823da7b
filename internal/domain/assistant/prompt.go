package assistant

import (
	"fmt"
	"strings"

	"github.com/credtrack/credtrack-api/internal/types"
)

// buildPrompt renders the context payload and recent transcript into the
// text sent to the model. Keep it plain text; the model endpoint owns
// formatting of its own reply.
func buildPrompt(message string, topic types.ChatTopic, assistantCtx *types.AssistantContext, history []types.ChatMessage) string {
	var b strings.Builder

	b.WriteString("You are a continuing-medical-education compliance assistant. ")
	b.WriteString("Answer using only the data below; say so when the data is insufficient.\n\n")

	fmt.Fprintf(&b, "Subscription tier: %s\n", assistantCtx.Tier)
	fmt.Fprintf(&b, "Topic: %s\n", topic)

	if len(assistantCtx.Doctors) > 0 {
		b.WriteString("\nTracked doctors:\n")
		for _, d := range assistantCtx.Doctors {
			fmt.Fprintf(&b, "- %s", d.FullName)
			if d.Specialty != nil {
				fmt.Fprintf(&b, " (%s)", *d.Specialty)
			}
			b.WriteString("\n")
		}
	}

	if summary := assistantCtx.Summary; summary != nil {
		fmt.Fprintf(&b, "\nCompliance: %d licenses across %d states, %.1f hours logged, %d non-compliant.\n",
			len(summary.Licenses), summary.StateCount, summary.TotalHours, summary.NonCompliant)
		for _, lc := range summary.Licenses {
			fmt.Fprintf(&b, "- %s license %s: %.1f of %.1f hours", lc.License.State,
				lc.License.LicenseNumber, lc.EarnedHours, lc.RequiredHours)
			if lc.License.ExpiresAt != nil {
				fmt.Fprintf(&b, ", expires %s", lc.License.ExpiresAt.Format("2006-01-02"))
			}
			b.WriteString("\n")
		}
	}

	if len(history) > 1 {
		b.WriteString("\nRecent conversation:\n")
		for _, m := range history {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
	}

	fmt.Fprintf(&b, "\nUser message: %s\n", message)
	return b.String()
}

// firstWords truncates a message into a session title.
func firstWords(message string, n int) string {
	words := strings.Fields(message)
	if len(words) == 0 {
		return "New conversation"
	}
	if len(words) > n {
		words = words[:n]
		return strings.Join(words, " ") + "…"
	}
	return strings.Join(words, " ")
}
