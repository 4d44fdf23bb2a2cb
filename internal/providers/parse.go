package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/quantfabric/analystd/internal/core"
)

// ErrUnparseable marks a response whose body could not be decoded as a
// decision array. It is a schema-level failure, not a transport one, so
// callers may resubmit with a repair hint.
var ErrUnparseable = errors.New("unparseable model response")

// parseDecisions extracts the JSON decision array from a model
// response. Models wrap output in markdown fences or lead-in text often
// enough that we locate the outermost array instead of unmarshaling the
// body verbatim. A single bare object is accepted and treated as a
// one-element array.
func parseDecisions(raw string) ([]core.RawDecision, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty response body", ErrUnparseable)
	}

	if start, end := strings.Index(trimmed, "["), strings.LastIndex(trimmed, "]"); start >= 0 && end > start {
		var decisions []core.RawDecision
		if err := json.Unmarshal([]byte(trimmed[start:end+1]), &decisions); err != nil {
			return nil, fmt.Errorf("%w: parsing decision array: %v", ErrUnparseable, err)
		}
		return decisions, nil
	}

	if start, end := strings.Index(trimmed, "{"), strings.LastIndex(trimmed, "}"); start >= 0 && end > start {
		var decision core.RawDecision
		if err := json.Unmarshal([]byte(trimmed[start:end+1]), &decision); err != nil {
			return nil, fmt.Errorf("%w: parsing decision object: %v", ErrUnparseable, err)
		}
		return []core.RawDecision{decision}, nil
	}

	return nil, fmt.Errorf("%w: no JSON payload found in response", ErrUnparseable)
}
