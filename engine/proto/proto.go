package proto

import (
	"github.com/openmana/accountserver/engine/common"
)

// MsgType is the type of message types
type MsgType uint16

// Message types sent by game servers to the account server
const (
	// MT_INVALID is the invalid message type
	MT_INVALID MsgType = iota
	// MT_REGISTER announces a game server's public address and the maps it serves
	MT_REGISTER
	// MT_PLAYER_DATA pushes one character's serialized gameplay data for persistence
	MT_PLAYER_DATA
	// MT_REDIRECT asks for a handoff of a character to its current map's server
	MT_REDIRECT
	// MT_PLAYER_RECONNECT presents a token for resuming an account session
	MT_PLAYER_RECONNECT
	// MT_GET_QUEST reads a named quest variable of a character
	MT_GET_QUEST
	// MT_SET_QUEST writes a named quest variable of a character
	MT_SET_QUEST
	// MT_BAN_PLAYER bans a character for a duration
	MT_BAN_PLAYER
	// MT_STATISTICS reports per-map live statistics
	MT_STATISTICS
)

// Message types sent by the account server to game servers
const (
	// MT_ACTIVE_MAP acknowledges one claimed map as active
	MT_ACTIVE_MAP MsgType = 100 + iota
	// MT_REDIRECT_RESPONSE carries the handoff token and destination address
	MT_REDIRECT_RESPONSE
	// MT_PLAYER_ENTER tells the destination server to expect a token-bearing client
	MT_PLAYER_ENTER
	// MT_GET_QUEST_RESPONSE carries a quest variable value
	MT_GET_QUEST_RESPONSE
	// MT_INVALID_REQUEST is replied for unknown or malformed requests
	MT_INVALID_REQUEST
)

// GameLink is the outbound half of one game server connection.
//
// GameLinkConnection is the wire implementation; tests provide fakes.
type GameLink interface {
	SendActiveMap(mapID common.MapID) error
	SendRedirectResponse(charID common.CharacterID, token string, address string, port uint16) error
	SendPlayerEnter(token string, charID common.CharacterID, name string, data []byte) error
	SendQuestVarResponse(charID common.CharacterID, name string, value string) error
	SendInvalidRequest() error
	String() string
}
