package llm

import (
	"encoding/json"
	"strings"
)

const systemPrompt = "You are Inbox Copilot. You help a small business triage emails and draft replies.\n" +
	"Follow the user's context pack (brand, policies, tone, signature).\n" +
	"Be concise and factual. Never claim you performed actions you did not perform.\n" +
	"Never include secrets or API keys. If information is missing, ask a clarifying question in the draft."

const defaultTone = "concise, warm, professional"

func truncate(s string, maxChars int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return strings.TrimRight(string(runes[:maxChars-1]), " \t\n") + "…"
}

func compactJSON(v interface{}, maxChars int) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return truncate(string(b), maxChars)
}

func formatContext(ctx ContextPack) string {
	b, err := json.MarshalIndent(ctx, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

// compactContext keeps only the brand and policy fields, for prompts where
// the full pack would waste tokens.
func compactContext(ctx ContextPack) string {
	return compactJSON(map[string]interface{}{
		"brand_name":    ctx.BrandName,
		"brand_blurb":   ctx.BrandBlurb,
		"policies_json": ctx.Policies,
	}, 4000)
}

func classifyPrompt(ctx ContextPack, email Email) string {
	return strings.Join([]string{
		"Classify whether this email is business-relevant for the user's brand.",
		"Treat newsletters, automated notifications, and irrelevant promos as not relevant unless they match the context keywords.",
		"",
		"Context pack (JSON):",
		formatContext(ctx),
		"",
		"Email:",
		"from: " + truncate(email.FromEmail, 200),
		"subject: " + truncate(email.Subject, 300),
		"snippet: " + truncate(email.Snippet, 500),
		"body:",
		truncate(email.BodyText, 8000),
	}, "\n")
}

func summarizePrompt(ctx ContextPack, email Email) string {
	return strings.Join([]string{
		"Summarize the email for the user.",
		"Output short bullets. Focus on what the sender wants and what the user should do next.",
		"",
		"Context pack (JSON):",
		formatContext(ctx),
		"",
		"Email:",
		"from: " + truncate(email.FromEmail, 200),
		"subject: " + truncate(email.Subject, 300),
		"body:",
		truncate(email.BodyText, 12000),
	}, "\n")
}

func draftPrompt(ctx ContextPack, email Email, summary *Summary) string {
	tone := strings.TrimSpace(ctx.Tone)
	if tone == "" {
		tone = defaultTone
	}
	signature := strings.TrimSpace(ctx.Signature)
	if signature == "" {
		signature = "(none)"
	}
	return strings.Join([]string{
		"Draft a reply email in plain text.",
		"Tone: " + tone,
		"If details are missing, include 1-3 concise clarifying questions.",
		"Do not include any subject line or email headers, only the email body.",
		"If a signature is provided, include it at the end verbatim.",
		"",
		"Context pack (compact):",
		compactContext(ctx),
		"",
		"Email:",
		"from: " + truncate(email.FromEmail, 200),
		"subject: " + truncate(email.Subject, 300),
		"body:",
		truncate(email.BodyText, 12000),
		"",
		"Computed summary (JSON):",
		compactJSON(summary, 2500),
		"",
		"Signature:",
		signature,
	}, "\n")
}

func revisePrompt(ctx ContextPack, currentDraft, instruction string) string {
	tone := strings.TrimSpace(ctx.Tone)
	if tone == "" {
		tone = defaultTone
	}
	signature := strings.TrimSpace(ctx.Signature)
	if signature == "" {
		signature = "(none)"
	}
	return strings.Join([]string{
		"Revise the draft according to the instruction.",
		"Tone: " + tone,
		"Keep the reply accurate and aligned with the brand context/policies.",
		"Return the full revised draft as plain text.",
		"",
		"Context pack (compact):",
		compactContext(ctx),
		"",
		"Instruction:",
		truncate(instruction, 1200),
		"",
		"Current draft:",
		strings.TrimSpace(currentDraft),
		"",
		"Signature (if present, keep at end):",
		signature,
	}, "\n")
}

// shape strings are appended to prompts so providers without structured
// output still return the right keys.
const (
	classificationShape = `{"is_relevant":boolean,"confidence":number in [0,1],"category":string,"reason":string}`
	summaryShape        = `{"summary_bullets":[string,...],"what_they_want":[string,...],"suggested_next_step":string,"flags":[string,...]}`
	draftShape          = `{"draft_text":string,"clarifying_questions":[string,...]}`
	revisionShape       = `{"revised_draft":string}`
)

func withOutputShape(user, shape string) string {
	return strings.TrimSpace(user) +
		"\n\nReturn ONLY valid JSON matching this shape (no markdown fences, no extra keys):\n" +
		shape
}
