package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
	a "github.com/petar-dambovaliev/aho-corasick"
)

// ChatRole distinguishes who authored a message in an assistant session.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatSession is one assistant conversation owned by a user.
type ChatSession struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Title     string     `json:"title"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	EndedAt   *time.Time `json:"ended_at"`
}

// ChatMessage is a single turn within a session.
type ChatMessage struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	Topic     ChatTopic `json:"topic,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatResponse is what the assistant service returns to the handler.
type ChatResponse struct {
	SessionID uuid.UUID `json:"session_id"`
	Message   string    `json:"message"`
	Topic     ChatTopic `json:"topic"`
	LatencyMs int       `json:"latency_ms"`
}

// StartChatRequest opens a new session with an initial message.
type StartChatRequest struct {
	Title          string `json:"title,omitempty"`
	InitialMessage string `json:"initial_message"`
}

// ContinueChatRequest appends a message to an existing session.
type ContinueChatRequest struct {
	Message string `json:"message"`
}

// ChatSessionsResponse is a paginated session listing.
type ChatSessionsResponse struct {
	Sessions []ChatSession `json:"sessions"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	Limit    int           `json:"limit"`
}

// AssistantContext is the payload assembled around a user message before
// it is sent to the remote model. It is the only model-facing output of
// this service; the model behavior itself is out of scope.
type AssistantContext struct {
	Tier       Tier               `json:"tier"`
	Summary    *ComplianceSummary `json:"summary,omitempty"`
	Doctors    []Doctor           `json:"doctors,omitempty"`
	AssembleMs int                `json:"assemble_ms"`
}

// ChatTopic buckets an incoming message so the assistant can pick the
// right context slice and apply feature gating.
type ChatTopic string

const (
	TopicCompliance ChatTopic = "compliance_analysis"
	TopicRenewal    ChatTopic = "license_renewal"
	TopicCredits    ChatTopic = "credit_logging"
	TopicGeneral    ChatTopic = "general"
)

// Aho-Corasick matchers for topic classification of assistant messages.
var (
	topicComplianceBuilder = a.NewAhoCorasickBuilder(a.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  true,
	})
	topicComplianceMatcher = topicComplianceBuilder.Build([]string{
		"compliance", "compliant", "audit", "shortfall", "behind",
		"progress", "analytics", "report", "summary",
	})

	topicRenewalBuilder = a.NewAhoCorasickBuilder(a.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  true,
	})
	topicRenewalMatcher = topicRenewalBuilder.Build([]string{
		"renew", "renewal", "expire", "expires", "expiring",
		"deadline", "license", "licenses", "state board",
	})

	topicCreditsBuilder = a.NewAhoCorasickBuilder(a.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  true,
	})
	topicCreditsMatcher = topicCreditsBuilder.Build([]string{
		"credit", "credits", "hours", "log", "record", "cme",
		"course", "activity", "certificate", "category",
	})
)

// ClassifyTopic maps a free-text message onto a ChatTopic by keyword
// density. Compliance wins ties with renewal, renewal with credits.
func ClassifyTopic(message string) ChatTopic {
	msg := strings.TrimSpace(message)
	if msg == "" {
		return TopicGeneral
	}

	compliance := len(topicComplianceMatcher.FindAll(msg))
	renewal := len(topicRenewalMatcher.FindAll(msg))
	credits := len(topicCreditsMatcher.FindAll(msg))

	switch {
	case compliance == 0 && renewal == 0 && credits == 0:
		return TopicGeneral
	case compliance >= renewal && compliance >= credits:
		return TopicCompliance
	case renewal >= credits:
		return TopicRenewal
	default:
		return TopicCredits
	}
}
