package query

import "strings"

const (
	TypeResolveTarget        = "noticast.query.target.resolve"
	TypeListErrorReports     = "noticast.query.error_reports.list"
	TypeListDispatchAttempts = "noticast.query.dispatch_attempts.list"
)

type ResolveTargetMessage struct {
	Identifier string
}

func (ResolveTargetMessage) Type() string { return TypeResolveTarget }

func (m ResolveTargetMessage) Validate() error {
	if strings.TrimSpace(m.Identifier) == "" {
		return queryValidationError("identifier", "identifier is required")
	}
	return nil
}

type ListErrorReportsMessage struct {
	System string
	Limit  int
}

func (ListErrorReportsMessage) Type() string { return TypeListErrorReports }

func (m ListErrorReportsMessage) Validate() error {
	if m.Limit < 0 {
		return queryValidationError("limit", "limit must not be negative")
	}
	return nil
}

type ListDispatchAttemptsMessage struct {
	DispatchID string
}

func (ListDispatchAttemptsMessage) Type() string { return TypeListDispatchAttempts }

func (m ListDispatchAttemptsMessage) Validate() error {
	if strings.TrimSpace(m.DispatchID) == "" {
		return queryValidationError("dispatch_id", "dispatch id is required")
	}
	return nil
}
