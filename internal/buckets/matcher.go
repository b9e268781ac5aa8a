package buckets

import (
	"strings"

	"github.com/inboxcopilot/triage-worker/internal/models"
)

// Matches evaluates one email against one bucket's rule set. Pure function,
// no I/O. Exclusion rules short-circuit inclusion; a bucket with no positive
// criteria never matches (so an empty bucket cannot swallow everything).
func Matches(bucket models.Bucket, fromEmail, subject, snippet, bodyText string) bool {
	m := bucket.Matchers

	fe := strings.ToLower(strings.TrimSpace(fromEmail))
	domain := senderDomain(fe)
	hay := strings.ToLower(subject + "\n" + snippet + "\n" + bodyText)

	if fe != "" && containsFold(m.ExcludeSenderEmails, fe) {
		return false
	}
	if domain != "" && anyDomainMatches(domain, m.ExcludeSenderDomains) {
		return false
	}
	if anyKeywordIn(hay, m.ExcludeKeywords) {
		return false
	}

	if !hasInclusionCriteria(m) {
		return false
	}

	senderMatch := (fe != "" && containsFold(m.SenderEmails, fe)) ||
		(domain != "" && anyDomainMatches(domain, m.SenderDomains))
	keywordMatch := anyKeywordIn(hay, m.Keywords)

	return senderMatch || keywordMatch
}

func hasInclusionCriteria(m models.Matchers) bool {
	return len(cleaned(m.SenderEmails)) > 0 ||
		len(cleaned(m.SenderDomains)) > 0 ||
		len(cleaned(m.Keywords)) > 0
}

func senderDomain(email string) string {
	if i := strings.Index(email, "@"); i >= 0 {
		return email[i+1:]
	}
	return ""
}

// domainMatches is suffix-based on dot boundaries: rule "acme.com" matches
// "acme.com" and "mail.acme.com" but not "notacme.com".
func domainMatches(domain, ruleDomain string) bool {
	d := strings.ToLower(strings.TrimSpace(domain))
	r := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ruleDomain)), "@")
	if d == "" || r == "" {
		return false
	}
	return d == r || strings.HasSuffix(d, "."+r)
}

func anyDomainMatches(domain string, ruleDomains []string) bool {
	for _, r := range ruleDomains {
		if domainMatches(domain, r) {
			return true
		}
	}
	return false
}

func anyKeywordIn(hay string, keywords []string) bool {
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(hay, kw) {
			return true
		}
	}
	return false
}

func containsFold(list []string, target string) bool {
	for _, v := range list {
		if strings.ToLower(strings.TrimSpace(v)) == target {
			return true
		}
	}
	return false
}

func cleaned(list []string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
