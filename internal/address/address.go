// Package address normalizes and validates email addresses, including
// addresses with internationalized domain names.
package address

import (
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"golang.org/x/net/idna"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ToASCII converts the domain part of an email address to its ASCII
// compatible encoding. The local part is never touched. Addresses that do not
// split into exactly one local part and one domain are returned unchanged, and
// so is the domain when the conversion fails.
func ToASCII(addr string) string {
	parts := strings.Split(addr, "@")
	if len(parts) != 2 {
		return addr
	}

	username, domain := parts[0], parts[1]
	return username + "@" + domainToASCII(domain)
}

// domainToASCII returns the punycode form of domain. Pure ASCII domains are
// returned as-is so that ToASCII is the identity for ordinary addresses.
func domainToASCII(domain string) string {
	if isASCII(domain) {
		return domain
	}

	ascii, err := idna.Lookup.ToASCII(domain)
	if err != nil || ascii == "" {
		slog.Debug("idna conversion failed, keeping domain", "domain", domain, "error", err)
		return domain
	}
	return ascii
}

// IsValid reports whether addr is a syntactically valid email address.
// When toASCII is set the domain is converted with ToASCII first.
func IsValid(addr string, toASCII bool) bool {
	if addr == "" || strings.ContainsAny(addr, "\r\n\x00") {
		return false
	}

	if toASCII {
		addr = ToASCII(addr)
	}

	return validatorInstance().Var(addr, "required,email") == nil
}

// Canonical returns the lower-cased ASCII form of addr, used for allowlist
// comparisons.
func Canonical(addr string) string {
	return strings.ToLower(ToASCII(strings.TrimSpace(addr)))
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
