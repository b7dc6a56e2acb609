package tools

import (
	"regexp"
	"strings"
)

func ValidateEmail(email string) bool {
	re := regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	return re.MatchString(email)
}

// ValidateInstanceName garante que o nome digitado rende um slug utilizável
// no gateway.
func ValidateInstanceName(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	return SanitizeInstanceName(name) != "" && SanitizeInstanceName(name) != "-"
}
