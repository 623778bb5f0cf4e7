// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package irc

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"code.cloudfoundry.org/bytefmt"
	"github.com/ergochat/irc-go/ircfmt"
	"gopkg.in/yaml.v2"

	"github.com/ergochat/peregrine/irc/logger"
	"github.com/ergochat/peregrine/irc/utils"
)

var (
	// ErrLoggerFilenameMissing means that a logger is configured to log to a file but has no filename.
	ErrLoggerFilenameMissing = errors.New("Logger is missing a filename")

	// ErrLoggerExcludeEmpty means that an exclude type on a logger is empty.
	ErrLoggerExcludeEmpty = errors.New("Encountered logging type '-' with no type to exclude")

	// ErrLoggerHasNoTypes means that a logger has no types to log.
	ErrLoggerHasNoTypes = errors.New("Logger has no types to log")
)

type listenerConfig struct {
	WebSocket bool
}

// ServerConfig is the `server` section of the config.
type ServerConfig struct {
	Name      string
	Listeners map[string]struct {
		WebSocket bool `yaml:"websocket"`
	}
	trueListeners map[string]listenerConfig
	// bcrypt hash of the connection password, or empty for none
	Password       string
	passwordBytes  []byte
	MOTD           string `yaml:"motd"`
	MotdFormatting bool   `yaml:"motd-formatting"`
	motdLines      []string
	MaxSendQString string `yaml:"max-sendq"`
	MaxSendQBytes  int
	CheckIdent     bool `yaml:"check-ident"`
	WebSockets     struct {
		AllowedOrigins []string `yaml:"allowed-origins"`
	} `yaml:"websockets"`
}

// NetworkConfig is the `network` section of the config.
type NetworkConfig struct {
	Name string
}

// LimitsConfig is the `limits` section of the config.
type LimitsConfig struct {
	AwayLen    int `yaml:"awaylen"`
	ChannelLen int `yaml:"channellen"`
	NickLen    int `yaml:"nicklen"`
	TopicLen   int `yaml:"topiclen"`
}

// Config defines the overall configuration.
type Config struct {
	// Filename is the name of the file from which the config was loaded.
	Filename string `yaml:"-"`

	Server  ServerConfig
	Network NetworkConfig
	Limits  LimitsConfig
	Logging []logger.LoggingConfig
}

// LoadConfig loads the given YAML configuration file.
func LoadConfig(filename string) (config *Config, err error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, err
	}

	config.Filename = filename

	if config.Network.Name == "" {
		return nil, errors.New("Network name is required")
	}
	if !utils.LooksLikeHostname(config.Server.Name) {
		return nil, errConfigBadServerName
	}

	if len(config.Server.Listeners) == 0 {
		return nil, errConfigNoListeners
	}
	config.Server.trueListeners = make(map[string]listenerConfig, len(config.Server.Listeners))
	for addr, block := range config.Server.Listeners {
		config.Server.trueListeners[addr] = listenerConfig{
			WebSocket: block.WebSocket,
		}
	}

	if config.Server.Password != "" {
		// we can't verify the hash against anything yet, but we can at
		// least catch a plaintext password pasted in by mistake
		if !strings.HasPrefix(config.Server.Password, "$2") || len(config.Server.Password) != 60 {
			return nil, errConfigBadPassword
		}
		config.Server.passwordBytes = []byte(config.Server.Password)
	}

	if config.Server.MaxSendQString == "" {
		config.Server.MaxSendQString = "96k"
	}
	maxSendQBytes, err := bytefmt.ToBytes(config.Server.MaxSendQString)
	if err != nil {
		return nil, fmt.Errorf("Could not parse maximum SendQ size (make sure it only contains whole numbers): %s", err.Error())
	}
	config.Server.MaxSendQBytes = int(maxSendQBytes)

	if config.Limits.NickLen < 1 || config.Limits.ChannelLen < 2 || config.Limits.AwayLen < 1 || config.Limits.TopicLen < 1 {
		return nil, errors.New("Limits aren't setup properly, check them and make them sane")
	}

	if config.Server.MOTD != "" {
		config.Server.motdLines, err = loadMotd(config.Server.MOTD, config.Server.MotdFormatting)
		if err != nil {
			return nil, errConfigMotdFormatting
		}
	}

	// process logging config
	logConfigs := []logger.LoggingConfig{}
	for _, logConfig := range config.Logging {
		// methods
		methods := make(map[string]bool)
		for _, method := range strings.Split(logConfig.Method, " ") {
			if len(method) > 0 {
				methods[strings.ToLower(method)] = true
			}
		}
		if methods["file"] && logConfig.Filename == "" {
			return nil, ErrLoggerFilenameMissing
		}
		logConfig.MethodFile = methods["file"]
		logConfig.MethodStdout = methods["stdout"]
		logConfig.MethodStderr = methods["stderr"]

		// levels
		level, exists := logger.LogLevelNames[strings.ToLower(logConfig.LevelString)]
		if !exists {
			return nil, fmt.Errorf("Could not translate log level [%s]", logConfig.LevelString)
		}
		logConfig.Level = level

		// types
		for _, typeStr := range strings.Split(logConfig.TypeString, " ") {
			if len(typeStr) == 0 {
				continue
			}
			if typeStr == "-" {
				return nil, ErrLoggerExcludeEmpty
			}
			if typeStr[0] == '-' {
				typeStr = typeStr[1:]
				logConfig.ExcludedTypes = append(logConfig.ExcludedTypes, typeStr)
			} else {
				logConfig.Types = append(logConfig.Types, typeStr)
			}
		}
		if len(logConfig.Types) < 1 {
			return nil, ErrLoggerHasNoTypes
		}

		logConfigs = append(logConfigs, logConfig)
	}
	config.Logging = logConfigs

	return config, nil
}

// loadMotd reads the motd file, optionally interpreting the $-escaped
// formatting codes in it.
func loadMotd(filename string, useFormatting bool) (lines []string, err error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		line = strings.TrimRight(line, "\r\n")

		if useFormatting {
			line = ircfmt.Unescape(line)
		}

		// "- " is the required prefix for MOTD
		line = fmt.Sprintf("- %s", line)
		lines = append(lines, line)
	}

	return lines, nil
}
