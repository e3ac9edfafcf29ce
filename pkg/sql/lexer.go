/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package sql

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenIdent
	tokenKeyword
	tokenNumber
	tokenStar
	tokenComma
	tokenLParen
	tokenRParen
	tokenSemicolon
)

var keywords = map[string]struct{}{
	"SELECT": {}, "FROM": {}, "GROUP": {}, "ORDER": {}, "BY": {}, "ASC": {}, "DESC": {}, "AS": {}, "LIMIT": {},
}

type token struct {
	kind tokenKind
	// text is upper-cased for keywords, as written otherwise
	text string
	pos  int
}

func (t token) String() string {
	if t.kind == tokenEOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.text)
}

// tokenize splits a statement into tokens. Identifiers may be quoted with backticks.
func tokenize(s string) ([]token, error) {
	var tokens []token
	runes := []rune(s)
	for i := 0; i < len(runes); {
		c := runes[i]
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '*':
			tokens = append(tokens, token{kind: tokenStar, text: "*", pos: i})
			i++
		case c == ',':
			tokens = append(tokens, token{kind: tokenComma, text: ",", pos: i})
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokenLParen, text: "(", pos: i})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokenRParen, text: ")", pos: i})
			i++
		case c == ';':
			tokens = append(tokens, token{kind: tokenSemicolon, text: ";", pos: i})
			i++
		case c == '`':
			end := i + 1
			for end < len(runes) && runes[end] != '`' {
				end++
			}
			if end == len(runes) {
				return nil, fmt.Errorf("unterminated quoted identifier at position %d", i)
			}
			tokens = append(tokens, token{kind: tokenIdent, text: string(runes[i+1 : end]), pos: i})
			i = end + 1
		case unicode.IsDigit(c):
			end := i
			for end < len(runes) && unicode.IsDigit(runes[end]) {
				end++
			}
			tokens = append(tokens, token{kind: tokenNumber, text: string(runes[i:end]), pos: i})
			i = end
		case c == '_' || unicode.IsLetter(c):
			end := i
			for end < len(runes) && (runes[end] == '_' || unicode.IsLetter(runes[end]) || unicode.IsDigit(runes[end])) {
				end++
			}
			word := string(runes[i:end])
			if _, ok := keywords[strings.ToUpper(word)]; ok {
				tokens = append(tokens, token{kind: tokenKeyword, text: strings.ToUpper(word), pos: i})
			} else {
				tokens = append(tokens, token{kind: tokenIdent, text: word, pos: i})
			}
			i = end
		default:
			return nil, fmt.Errorf("unexpected character %q at position %d", c, i)
		}
	}
	return append(tokens, token{kind: tokenEOF, pos: len(runes)}), nil
}
