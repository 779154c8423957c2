package logger

import "strings"

// RedactEmail keeps the first two characters of the local part and the
// domain: "ada.lovelace@example.com" becomes "ad***@example.com". Local
// parts of two characters or fewer are masked whole, and anything without
// exactly one "@" is masked entirely.
func RedactEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***@***"
	}
	if len(local) <= 2 {
		local = ""
	}
	return local[:min(len(local), 2)] + "***@" + domain
}
