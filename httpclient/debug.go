package httpclient

import (
	"fmt"
	"maps"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// debugLogger is the package-level zerolog logger for debug output.
var debugLogger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// generateCurlCommand creates a cURL command equivalent for the given request.
//
// Multipart forms are rendered with -F so the command re-encodes them;
// streamed bodies of unknown content are left out.
//
// Example output:
//
//	curl -X POST 'https://api.example.com/users' \
//	  -H 'Content-Type: application/json' \
//	  -d '{"name":"Jane Doe"}'
func generateCurlCommand(req *http.Request, desc RequestDescriptor, enc encodedBody) string {
	parts := []string{"curl"}

	if req.Method != http.MethodGet {
		parts = append(parts, "-X", req.Method)
	}
	parts = append(parts, quote(req.URL.String()))

	for _, k := range slices.Sorted(maps.Keys(req.Header)) {
		// curl writes its own boundary for -F.
		if desc.BodyKind == BodyMultipart && k == "Content-Type" {
			continue
		}
		for _, v := range req.Header[k] {
			parts = append(parts, "-H", quote(k+": "+v))
		}
	}

	switch desc.BodyKind {
	case BodyMultipart:
		form := desc.Body.(*MultipartForm)
		for _, f := range form.fields {
			parts = append(parts, "-F", quote(f.name+"="+f.value))
		}
		for _, f := range form.files {
			if f.Path != "" {
				parts = append(parts, "-F", quote(f.FieldName+"=@"+f.Path))
			} else {
				parts = append(parts, "-F", quote(f.FieldName+"=@"+f.FileName))
			}
		}
	case BodyJSON, BodyRaw:
		if len(enc.replay) > 0 {
			parts = append(parts, "-d", quote(string(enc.replay)))
		}
	}

	return strings.Join(parts, " ")
}

// quote wraps s in single quotes for a POSIX shell.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// logRequest logs the request line of a call.
func logRequest(logger zerolog.Logger, desc RequestDescriptor) {
	logger.Debug().
		Str("method", string(desc.Method)).
		Str("url", desc.URL).
		Str("body_kind", desc.BodyKind.String()).
		Dur("timeout", desc.Timeout).
		Msg("HTTP request")
}

// logOutcome logs how a call's transport operation ended. Error details
// are left to the caller, who receives them from the Call.
func logOutcome(logger zerolog.Logger, desc RequestDescriptor, outcome TransportOutcome, duration time.Duration) {
	event := logger.Debug().
		Str("method", string(desc.Method)).
		Str("url", desc.URL).
		Str("outcome", outcome.Kind.String()).
		Dur("duration", duration)

	if outcome.Kind == OutcomeCompleted {
		event = event.
			Int("status", outcome.StatusCode).
			Str("status_text", outcome.Status).
			Int("body_size", len(outcome.Body))
	}

	event.Msg(fmt.Sprintf("HTTP %s", outcome.Kind))
}
