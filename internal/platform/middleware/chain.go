package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"custodia/internal/platform/metrics"
)

// Chain entry names. The security.middleware startup check requires
// EntryAccessControl and EntryAuditLog to be present in the configured chain.
const (
	EntryRequestID      = "request-id"
	EntryRecovery       = "recovery"
	EntryLogging        = "logging"
	EntryClientMetadata = "client-metadata"
	EntryRequestTime    = "request-time"
	EntryTimeout        = "timeout"
	EntryContentType    = "content-type"
	EntryLatency        = "latency"
	EntryAccessControl  = "access-control"
	EntryAuditLog       = "audit-log"
)

// Deps carries everything the chain entries need.
type Deps struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Validator      TokenValidator
	Security       SecurityRecorder
	RequestTimeout time.Duration
}

// Build assembles the middleware chain from its configured entry names,
// outermost first. An unknown name is a hard error: a typo silently dropping
// access-control from the chain must not boot.
func Build(entries []string, deps Deps) ([]func(http.Handler) http.Handler, error) {
	chain := make([]func(http.Handler) http.Handler, 0, len(entries))
	for _, entry := range entries {
		mw, err := build(entry, deps)
		if err != nil {
			return nil, err
		}
		chain = append(chain, mw)
	}
	return chain, nil
}

func build(entry string, deps Deps) (func(http.Handler) http.Handler, error) {
	switch entry {
	case EntryRequestID:
		return RequestID, nil
	case EntryRecovery:
		return Recovery(deps.Logger), nil
	case EntryLogging:
		return Logging(deps.Logger), nil
	case EntryClientMetadata:
		return ClientMetadata, nil
	case EntryRequestTime:
		return RequestTime, nil
	case EntryTimeout:
		return Timeout(deps.RequestTimeout), nil
	case EntryContentType:
		return ContentTypeJSON, nil
	case EntryLatency:
		return Latency(deps.Metrics), nil
	case EntryAccessControl:
		if deps.Validator == nil {
			return nil, fmt.Errorf("middleware entry %q requires a token validator", entry)
		}
		return AccessControl(deps.Validator, deps.Security, deps.Logger), nil
	case EntryAuditLog:
		return AuditLog(deps.Security), nil
	default:
		return nil, fmt.Errorf("unknown middleware entry %q", entry)
	}
}
