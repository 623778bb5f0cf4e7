// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2016 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package irc

// Numeric replies. These are used in the server's responses to clients;
// the numeric itself goes out on the wire as the command of the reply.
const (
	RPL_WELCOME       = "001"
	RPL_YOURHOST      = "002"
	RPL_CREATED       = "003"
	RPL_MYINFO        = "004"
	RPL_ISUPPORT      = "005"
	RPL_AWAY          = "301"
	RPL_UNAWAY        = "305"
	RPL_NOWAWAY       = "306"
	RPL_LIST          = "322"
	RPL_LISTEND       = "323"
	RPL_NOTOPIC       = "331"
	RPL_TOPIC         = "332"
	RPL_TOPICTIME     = "333"
	RPL_VERSION       = "351"
	RPL_NAMREPLY      = "353"
	RPL_ENDOFNAMES    = "366"
	RPL_MOTD          = "372"
	RPL_MOTDSTART     = "375"
	RPL_ENDOFMOTD     = "376"
	RPL_TIME          = "391"

	ERR_NOSUCHNICK        = "401"
	ERR_NOSUCHCHANNEL     = "403"
	ERR_CANNOTSENDTOCHAN  = "404"
	ERR_INPUTTOOLONG      = "417"
	ERR_UNKNOWNCOMMAND    = "421"
	ERR_NOMOTD            = "422"
	ERR_ERRONEUSNICKNAME  = "432"
	ERR_NICKNAMEINUSE     = "433"
	ERR_NOTONCHANNEL      = "442"
	ERR_NOTREGISTERED     = "451"
	ERR_NEEDMOREPARAMS    = "461"
	ERR_ALREADYREGISTERED = "462"
	ERR_PASSWDMISMATCH    = "464"
	ERR_INVALIDUSERNAME   = "468"
)
