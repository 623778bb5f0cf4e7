// Copyright (c) 2020 Shivaram Lingamneni
// released under the MIT license

package irc

import (
	"fmt"
	"strings"
)

const (
	// SemVer is the semantic version of the server software.
	SemVer = "1.0.0-unreleased"
)

var (
	// Ver is the full version string; it may include an additional
	// identifier from the build environment.
	Ver = fmt.Sprintf("peregrine-%s", SemVer)

	// Commit is the git hash the binary was built from, if any.
	Commit = ""
)

// SetVersionString initializes Ver to reflect the build environment.
func SetVersionString(version, commit string) {
	Commit = strings.TrimSpace(commit)
	if version != "" {
		Ver = fmt.Sprintf("peregrine-%s", strings.TrimSpace(version))
	} else if Commit != "" {
		Ver = fmt.Sprintf("%s-%s", Ver, Commit)
	}
}

const (
	// maximum line length on the wire, including the \r\n terminator
	MaxLineLen = 512

	// each PRIVMSG/NOTICE can name at most this many targets
	maxTargets = 4

	// clients can send at most this many commands before completing
	// registration; exceeding the limit disconnects them
	maxRegistrationMessages = 20
)
