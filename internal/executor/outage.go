package executor

import "strings"

// outageSignatures are error-text fragments that indicate the delivery
// channel itself is unhealthy (credentials, lockout, throttling) rather than
// one contact's data being bad. A match trips the run-scoped breaker so the
// rest of the batch does not hammer a failing provider.
var outageSignatures = []string{
	"authenticate",
	"login failed",
	"suspicious login",
	"locked",
	"cooldown",
	"too many requests",
	"rate limit",
}

func systemicOutage(err error) bool {
	if err == nil {
		return false
	}
	text := strings.ToLower(err.Error())
	for _, signature := range outageSignatures {
		if strings.Contains(text, signature) {
			return true
		}
	}
	return false
}
