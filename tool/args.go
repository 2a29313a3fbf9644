package tool

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// DecodeArguments parses the raw JSON argument string of a tool-call request.
// Empty input yields an empty map. Syntactically broken JSON, as models
// sometimes emit, is repaired before giving up.
func DecodeArguments(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}

	args := map[string]any{}
	err := json.Unmarshal([]byte(raw), &args)
	if err == nil {
		return args, nil
	}

	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return nil, err
	}

	fixed, rerr := jsonrepair.JSONRepair(raw)
	if rerr != nil {
		return nil, err
	}
	args = map[string]any{}
	if err := json.Unmarshal([]byte(fixed), &args); err != nil {
		return nil, err
	}
	return args, nil
}
