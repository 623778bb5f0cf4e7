// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2016 Daniel Oaks <daniel@danieloaks.net>
// Copyright (c) 2017 Shivaram Lingamneni <slingamn@cs.stanford.edu>
// released under the MIT license

package irc

import (
	"errors"
)

// Runtime errors
var (
	errNicknameInUse        = errors.New("nickname in use")
	errNicknameInvalid      = errors.New("invalid nickname")
	errNoSuchClient         = errors.New("no such client")
	errNoSuchChannel        = errors.New("no such channel")
	errNotOnChannel         = errors.New("not on channel")
	errStringIsEmpty        = errors.New("string is empty")
	errInvalidCharacter     = errors.New("invalid character")
	errCouldNotStabilize    = errors.New("could not stabilize string while casefolding")
	errConfusableIdentifier = errors.New("identifier is confusable with another")
)

// Socket errors
var (
	errSendQExceeded = errors.New("SendQ exceeded")
)

// Framing errors
var (
	errLineTooLong = errors.New("line too long")
)

// Command parsing errors. The parser reports these rather than panicking
// on malformed input; handlers convert them into numeric replies.
var (
	errUnknownCommand    = errors.New("unknown command")
	errMissingParameters = errors.New("not enough parameters")
)

// Config errors
var (
	errConfigNoListeners    = errors.New("no listeners configured")
	errConfigBadServerName  = errors.New("server name must look like a hostname")
	errConfigBadPassword    = errors.New("connection password must be a bcrypt hash")
	errConfigMotdFormatting = errors.New("could not process motd formatting codes")
)
