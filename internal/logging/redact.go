package logging

import (
	"fmt"
	"strings"
)

// sensitiveKeys are attribute keys whose values never reach the output.
var sensitiveKeys = map[string]struct{}{
	"token":         {},
	"access_token":  {},
	"bearer":        {},
	"authorization": {},
	"password":      {},
	"passphrase":    {},
	"secret":        {},
}

func isSensitive(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(key)]
	return ok
}

// Redact masks v, keeping only its last four characters when it is long
// enough to make that safe, so two tokens in a log can still be told apart.
func Redact(v any) string {
	s := fmt.Sprint(v)
	if len(s) < 20 {
		return "[redacted]"
	}
	return "[redacted]..." + s[len(s)-4:]
}

// redactArgs returns args with the values of sensitive keys masked. args is
// not modified.
func redactArgs(args []any) []any {
	var out []any
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok || !isSensitive(key) {
			continue
		}
		if out == nil {
			out = append([]any(nil), args...)
		}
		out[i+1] = Redact(args[i+1])
	}
	if out == nil {
		return args
	}
	return out
}
