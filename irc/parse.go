// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2016 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package irc

import (
	"strings"

	"github.com/ergochat/irc-go/ircmsg"
)

// Command is a fully parsed client command, ready for dispatch. The
// concrete type identifies the verb; handlers type-assert to recover
// the typed arguments.
type Command interface{}

type PassCommand struct {
	Password string
}

type NickCommand struct {
	Nickname string
}

type UserCommand struct {
	Username   string
	Hostname   string
	Servername string
	Realname   string
}

type JoinCommand struct {
	Channels []string
	Keys     []string
}

type PartCommand struct {
	Channels []string
	Reason   string
}

type PrivmsgCommand struct {
	Targets []string
	Message string
}

type NoticeCommand struct {
	Targets []string
	Message string
}

type PingCommand struct {
	Token  string
	Target string
}

type PongCommand struct {
	Token string
}

type QuitCommand struct {
	Reason string
}

type AwayCommand struct {
	Message string
}

type TopicCommand struct {
	Channel  string
	Topic    string
	SetTopic bool
}

type NamesCommand struct {
	Channels []string
}

type ListCommand struct {
	Channels []string
}

type MotdCommand struct{}

type VersionCommand struct{}

type TimeCommand struct{}

// commandParser builds a typed command from the tokenized parameters.
// minParams has already been enforced by the time it runs.
type commandParser struct {
	minParams int
	parse     func(params []string) (Command, error)
}

var commandParsers = map[string]commandParser{
	"PASS": {
		minParams: 1,
		parse: func(params []string) (Command, error) {
			return PassCommand{Password: params[0]}, nil
		},
	},
	"NICK": {
		minParams: 1,
		parse: func(params []string) (Command, error) {
			return NickCommand{Nickname: params[0]}, nil
		},
	},
	"USER": {
		minParams: 4,
		parse: func(params []string) (Command, error) {
			return UserCommand{
				Username:   params[0],
				Hostname:   params[1],
				Servername: params[2],
				Realname:   params[3],
			}, nil
		},
	},
	"JOIN": {
		minParams: 1,
		parse: func(params []string) (Command, error) {
			cmd := JoinCommand{
				Channels: strings.Split(params[0], ","),
			}
			if 1 < len(params) {
				cmd.Keys = strings.Split(params[1], ",")
			}
			return cmd, nil
		},
	},
	"PART": {
		minParams: 1,
		parse: func(params []string) (Command, error) {
			cmd := PartCommand{
				Channels: strings.Split(params[0], ","),
			}
			if 1 < len(params) {
				cmd.Reason = params[1]
			}
			return cmd, nil
		},
	},
	"PRIVMSG": {
		minParams: 2,
		parse: func(params []string) (Command, error) {
			return PrivmsgCommand{
				Targets: strings.Split(params[0], ","),
				Message: params[1],
			}, nil
		},
	},
	"NOTICE": {
		minParams: 2,
		parse: func(params []string) (Command, error) {
			return NoticeCommand{
				Targets: strings.Split(params[0], ","),
				Message: params[1],
			}, nil
		},
	},
	"PING": {
		minParams: 1,
		parse: func(params []string) (Command, error) {
			cmd := PingCommand{Token: params[0]}
			if 1 < len(params) {
				cmd.Target = params[1]
			}
			return cmd, nil
		},
	},
	"PONG": {
		minParams: 1,
		parse: func(params []string) (Command, error) {
			return PongCommand{Token: params[0]}, nil
		},
	},
	"QUIT": {
		parse: func(params []string) (Command, error) {
			var cmd QuitCommand
			if 0 < len(params) {
				cmd.Reason = params[0]
			}
			return cmd, nil
		},
	},
	"AWAY": {
		parse: func(params []string) (Command, error) {
			var cmd AwayCommand
			if 0 < len(params) {
				cmd.Message = params[0]
			}
			return cmd, nil
		},
	},
	"TOPIC": {
		minParams: 1,
		parse: func(params []string) (Command, error) {
			cmd := TopicCommand{Channel: params[0]}
			if 1 < len(params) {
				cmd.Topic = params[1]
				cmd.SetTopic = true
			}
			return cmd, nil
		},
	},
	"NAMES": {
		parse: func(params []string) (Command, error) {
			var cmd NamesCommand
			if 0 < len(params) && params[0] != "" {
				cmd.Channels = strings.Split(params[0], ",")
			}
			return cmd, nil
		},
	},
	"LIST": {
		parse: func(params []string) (Command, error) {
			var cmd ListCommand
			if 0 < len(params) && params[0] != "" {
				cmd.Channels = strings.Split(params[0], ",")
			}
			return cmd, nil
		},
	},
	"MOTD": {
		parse: func(params []string) (Command, error) {
			return MotdCommand{}, nil
		},
	},
	"VERSION": {
		parse: func(params []string) (Command, error) {
			return VersionCommand{}, nil
		},
	},
	"TIME": {
		parse: func(params []string) (Command, error) {
			return TimeCommand{}, nil
		},
	},
}

// parseCommand turns a tokenized message into a typed command. It
// reports errUnknownCommand for verbs we don't implement and
// errMissingParameters when too few parameters were supplied; it
// never panics on malformed input.
func parseCommand(msg ircmsg.Message) (cmd Command, err error) {
	parser, ok := commandParsers[strings.ToUpper(msg.Command)]
	if !ok {
		return nil, errUnknownCommand
	}
	if len(msg.Params) < parser.minParams {
		return nil, errMissingParameters
	}
	return parser.parse(msg.Params)
}
