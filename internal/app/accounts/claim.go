package accounts

import (
	"net/url"
	"regexp"
	"strings"
)

// UnclaimedError is the exact error text /agents/me returns for unclaimed agents.
const UnclaimedError = "Agent not yet claimed"

var (
	hintURLRe    = regexp.MustCompile(`https://[^\s]+`)
	claimTokenRe = regexp.MustCompile(`moltbook_claim_[A-Za-z0-9_-]+`)
	claimCodeRe  = regexp.MustCompile(`moltbook_claim_([A-Za-z0-9_-]+)`)
)

// ClaimURLFromHint extracts the claim link the API puts in its hint text.
func ClaimURLFromHint(hint string) string {
	return hintURLRe.FindString(hint)
}

// ExtractClaimToken returns the moltbook_claim_... token of a claim URL, or "".
func ExtractClaimToken(claimURL string) string {
	return claimTokenRe.FindString(claimURL)
}

// codeFromClaimURL returns the part of the claim token after the prefix.
func codeFromClaimURL(claimURL string) string {
	m := claimCodeRe.FindStringSubmatch(claimURL)
	if m == nil {
		return ""
	}
	return m[1]
}

// ClaimTweetURL builds the twitter intent link the owner posts to claim the agent.
func ClaimTweetURL(agentName, verificationCode string) string {
	text := "I'm claiming my AI agent \"" + agentName + "\" on @moltbook 🦞\n\nVerification: " + verificationCode
	return "https://twitter.com/intent/tweet?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}
