// Copyright (c) 2016 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package isupport

import (
	"fmt"
	"slices"
	"strings"
)

const (
	maxLastArgLength = 400

	/* Modern: "As the maximum number of message parameters to any reply is 15,
	the maximum number of RPL_ISUPPORT tokens that can be advertised is 13."
	<nickname> [up to 13 parameters] <human-readable trailing>
	*/
	maxParameters = 13
)

// List holds a list of ISUPPORT tokens
type List struct {
	Tokens      map[string]string
	CachedReply [][]string
}

// NewList returns a new List
func NewList() *List {
	var il List
	il.Tokens = make(map[string]string)
	il.CachedReply = make([][]string, 0)
	return &il
}

// Add adds an RPL_ISUPPORT token to our internal list
func (il *List) Add(name string, value string) {
	il.Tokens[name] = value
}

// AddNoValue adds an RPL_ISUPPORT token that does not have a value
func (il *List) AddNoValue(name string) {
	il.Tokens[name] = ""
}

// Contains returns whether the list already contains a token
func (il *List) Contains(name string) bool {
	_, ok := il.Tokens[name]
	return ok
}

// getTokenString gets the appropriate string for a token+value.
func getTokenString(name string, value string) string {
	if len(value) == 0 {
		return name
	}

	return fmt.Sprintf("%s=%s", name, value)
}

func validateToken(token string) error {
	if len(token) == 0 || token[0] == ':' || strings.Contains(token, " ") {
		return fmt.Errorf("bad isupport token (cannot be sent as IRC parameter): `%s`", token)
	}

	if strings.ContainsAny(token, "\n\r\x00") {
		return fmt.Errorf("bad isupport token (contains forbidden octets)")
	}

	// technically a token can be maxLastArgLength if it occurs alone,
	// but fail it just to be safe
	if len(token) >= maxLastArgLength {
		return fmt.Errorf("bad isupport token (too long): `%s`", token)
	}

	return nil
}

// RegenerateCachedReply regenerates the cached RPL_ISUPPORT reply
func (il *List) RegenerateCachedReply() (err error) {
	var tokens []string
	for name, value := range il.Tokens {
		token := getTokenString(name, value)
		if tokenErr := validateToken(token); tokenErr == nil {
			tokens = append(tokens, token)
		} else {
			err = tokenErr
		}
	}
	// make sure we get a sorted list of tokens, needed for tests and looks nice
	slices.Sort(tokens)

	il.CachedReply = nil

	var cache []string // Tokens in current line
	var length int     // Length of the current line

	for _, token := range tokens {
		// account for the space separating tokens
		if len(cache) == maxParameters || (len(token)+1)+length > maxLastArgLength {
			il.CachedReply = append(il.CachedReply, cache)
			cache = nil
			length = 0
		}

		if len(cache) > 0 {
			length++
		}
		length += len(token)
		cache = append(cache, token)
	}

	if len(cache) > 0 {
		il.CachedReply = append(il.CachedReply, cache)
	}

	return
}
