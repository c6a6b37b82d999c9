package secrets

// DefaultRules returns the regex rules applied to email snippets. The
// first five mirror what people paste into mail: API keys, password,
// secret and token assignments, card numbers.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "openai-api-key",
			Description: "OpenAI-style API key",
			Pattern:     `\bsk-[a-zA-Z0-9]{20,}\b`,
			Severity:    "high",
		},
		{
			ID:          "password-assignment",
			Description: "Password assignment",
			Pattern:     `(?i)\bpassword\s*[:=]\s*\S+`,
			Keywords:    []string{"password"},
			Severity:    "high",
		},
		{
			ID:          "secret-assignment",
			Description: "Secret assignment",
			Pattern:     `(?i)\bsecret\s*[:=]\s*\S+`,
			Keywords:    []string{"secret"},
			Severity:    "high",
		},
		{
			ID:          "token-assignment",
			Description: "Token assignment",
			Pattern:     `(?i)\btoken\s*[:=]\s*\S+`,
			Keywords:    []string{"token"},
			Severity:    "high",
		},
		{
			ID:          "card-number",
			Description: "Payment card number",
			Pattern:     `\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`,
			Severity:    "high",
		},
		{
			ID:          "aws-access-key-id",
			Description: "AWS Access Key ID",
			Pattern:     `\b(?:A3T[A-Z0-9]|AKIA|ASIA)[A-Z0-9]{16}\b`,
			Severity:    "high",
		},
		{
			ID:          "private-key",
			Description: "Private key block",
			Pattern:     `-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY(?: BLOCK)?-----`,
			Severity:    "high",
		},
		{
			ID:          "github-token",
			Description: "GitHub token",
			Pattern:     `\b(?:ghp|gho|ghu|ghs)_[A-Za-z0-9]{36}\b|\bgithub_pat_[A-Za-z0-9_]{22,}`,
			Severity:    "high",
		},
		{
			ID:          "slack-token",
			Description: "Slack token",
			Pattern:     `xox[baprs]-[A-Za-z0-9\-]{10,}`,
			Severity:    "high",
		},
		{
			ID:          "database-url",
			Description: "Connection URL with credentials",
			Pattern:     `(?i)(?:postgres|mysql|mongodb|redis|amqp)://[^:\s]+:[^@\s]+@\S+`,
			Severity:    "high",
		},
		{
			ID:          "jwt",
			Description: "JSON Web Token",
			Pattern:     `eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*`,
			Severity:    "medium",
		},
		{
			ID:          "iban",
			Description: "International bank account number",
			Pattern:     `\b[A-Z]{2}\d{2}(?:\s?[A-Z0-9]{4}){3,7}\b`,
			Keywords:    []string{"iban", "account", "bank", "transfer"},
			Severity:    "medium",
		},
	}
}
