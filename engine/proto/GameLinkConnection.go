package proto

import (
	"net"

	"github.com/xiaonanln/go-xnsyncutil/xnsyncutil"
	"github.com/openmana/accountserver/engine/common"
	"github.com/openmana/accountserver/engine/netutil"
	"github.com/openmana/accountserver/engine/token"
)

// GameLinkConnection is the network protocol implementation of one link
// between the account server and a game server
type GameLinkConnection struct {
	packetConn netutil.PacketConnection
	closed     xnsyncutil.AtomicBool
}

// NewGameLinkConnection creates a GameLinkConnection using the network connection
func NewGameLinkConnection(conn netutil.Connection) *GameLinkConnection {
	return &GameLinkConnection{
		packetConn: netutil.NewPacketConnection(conn),
	}
}

// Recv receives the next packet and reads the message type
func (glc *GameLinkConnection) Recv(msgtype *MsgType) (*netutil.Packet, error) {
	pkt, err := glc.packetConn.RecvPacket()
	if err != nil {
		return nil, err
	}
	*msgtype = MsgType(pkt.ReadUint16())
	return pkt, nil
}

// SendActiveMap sends a MT_ACTIVE_MAP message
func (glc *GameLinkConnection) SendActiveMap(mapID common.MapID) error {
	packet := glc.packetConn.NewPacket()
	packet.AppendUint16(uint16(MT_ACTIVE_MAP))
	packet.AppendUint16(uint16(mapID))
	return glc.packetConn.SendPacketRelease(packet)
}

// SendRedirectResponse sends a MT_REDIRECT_RESPONSE message
func (glc *GameLinkConnection) SendRedirectResponse(charID common.CharacterID, tok string, address string, port uint16) error {
	packet := glc.packetConn.NewPacket()
	packet.AppendUint16(uint16(MT_REDIRECT_RESPONSE))
	packet.AppendInt32(int32(charID))
	packet.AppendFixedStr(tok, token.TOKEN_LENGTH)
	packet.AppendVarStr(address)
	packet.AppendUint16(port)
	return glc.packetConn.SendPacketRelease(packet)
}

// SendPlayerEnter sends a MT_PLAYER_ENTER message to the destination game server
func (glc *GameLinkConnection) SendPlayerEnter(tok string, charID common.CharacterID, name string, data []byte) error {
	packet := glc.packetConn.NewPacket()
	packet.AppendUint16(uint16(MT_PLAYER_ENTER))
	packet.AppendFixedStr(tok, token.TOKEN_LENGTH)
	packet.AppendInt32(int32(charID))
	packet.AppendVarStr(name)
	packet.AppendVarBytes(data)
	return glc.packetConn.SendPacketRelease(packet)
}

// SendQuestVarResponse sends a MT_GET_QUEST_RESPONSE message
func (glc *GameLinkConnection) SendQuestVarResponse(charID common.CharacterID, name string, value string) error {
	packet := glc.packetConn.NewPacket()
	packet.AppendUint16(uint16(MT_GET_QUEST_RESPONSE))
	packet.AppendInt32(int32(charID))
	packet.AppendVarStr(name)
	packet.AppendVarStr(value)
	return glc.packetConn.SendPacketRelease(packet)
}

// SendInvalidRequest sends a MT_INVALID_REQUEST message
func (glc *GameLinkConnection) SendInvalidRequest() error {
	packet := glc.packetConn.NewPacket()
	packet.AppendUint16(uint16(MT_INVALID_REQUEST))
	return glc.packetConn.SendPacketRelease(packet)
}

// Close closes the connection
func (glc *GameLinkConnection) Close() error {
	glc.closed.Store(true)
	return glc.packetConn.Close()
}

// IsClosed returns if the connection is closed
func (glc *GameLinkConnection) IsClosed() bool {
	return glc.closed.Load()
}

// RemoteAddr returns the remote address
func (glc *GameLinkConnection) RemoteAddr() net.Addr {
	return glc.packetConn.RemoteAddr()
}

func (glc *GameLinkConnection) String() string {
	return glc.packetConn.String()
}
