package metadata

import "strings"

// Token is one key/value pair recovered from helper output.
type Token struct {
	Key   string
	Value string
}

const cutset = " \t\r\n\"[]{}"

// Tokenize splits raw on commas and recovers a key/value pair from each
// piece. Pieces without a colon are dropped. When a value opens a nested
// object or array (`"files":[{"file_id":1`), the innermost pair is kept.
func Tokenize(raw string) []Token {
	if raw == "" {
		return nil
	}
	var tokens []Token
	for _, piece := range strings.Split(raw, ",") {
		tok, ok := splitPair(piece)
		if !ok {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

func splitPair(piece string) (Token, bool) {
	for {
		key, rest, found := strings.Cut(piece, ":")
		if !found {
			return Token{}, false
		}
		key = strings.Trim(key, cutset)
		if key == "" {
			return Token{}, false
		}

		trimmed := strings.TrimLeft(rest, " \t\r\n")
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			inner := strings.TrimLeft(trimmed, " \t\r\n[{")
			if strings.HasPrefix(inner, `"`) && strings.Contains(inner, ":") {
				piece = inner
				continue
			}
		}
		return Token{Key: key, Value: strings.Trim(rest, cutset)}, true
	}
}
