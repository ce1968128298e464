package inbound

import (
	"regexp"
	"strings"
)

const (
	forwardMarker = "fwd:"
	replyMarker   = "Re: "
)

var addressPattern = regexp.MustCompile(`([^\s<>"@,;]+)@([A-Za-z0-9.\-]+)`)

// NormalizeSubject strips every leading "Fwd:" marker.
func NormalizeSubject(subject string) string {
	subject = strings.TrimSpace(subject)
	for len(subject) >= len(forwardMarker) && strings.EqualFold(subject[:len(forwardMarker)], forwardMarker) {
		subject = strings.TrimSpace(subject[len(forwardMarker):])
	}
	return subject
}

// IsReplyChain reports whether the subject belongs to a reply thread. Such
// messages are never dispatched.
func IsReplyChain(subject string) bool {
	return strings.Contains(subject, replyMarker)
}

// ExtractIdentifier returns the local part of address when its domain equals
// domain. Display names and angle brackets are tolerated.
func ExtractIdentifier(address string, domain string) (string, bool) {
	domain = strings.TrimSpace(strings.TrimPrefix(domain, "@"))
	if domain == "" {
		return "", false
	}
	for _, match := range addressPattern.FindAllStringSubmatch(address, -1) {
		if len(match) != 3 {
			continue
		}
		if strings.EqualFold(strings.TrimSuffix(match[2], "."), domain) {
			return match[1], true
		}
	}
	return "", false
}

// ExtractTargets collects identifiers from the to and cc lists in order,
// dropping duplicates.
func ExtractTargets(to []string, cc []string, domain string) []string {
	seen := map[string]struct{}{}
	targets := []string{}
	for _, list := range [][]string{to, cc} {
		for _, address := range list {
			identifier, ok := ExtractIdentifier(address, domain)
			if !ok {
				continue
			}
			if _, exists := seen[identifier]; exists {
				continue
			}
			seen[identifier] = struct{}{}
			targets = append(targets, identifier)
		}
	}
	return targets
}
