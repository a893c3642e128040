package gamelink

import (
	"time"

	"github.com/openmana/accountserver/engine/common"
	"github.com/openmana/accountserver/engine/netutil"
	"github.com/openmana/accountserver/engine/omlog"
	"github.com/openmana/accountserver/engine/omutils"
	"github.com/openmana/accountserver/engine/proto"
	"github.com/openmana/accountserver/engine/storage"
	"github.com/openmana/accountserver/engine/token"
	"github.com/openmana/accountserver/server/registry"
)

// GameServerProxy is the account server's view of one connected game server
type GameServerProxy struct {
	*proto.GameLinkConnection
	owner      *Service
	gameServer *registry.GameServer
}

func newGameServerProxy(owner *Service, conn netutil.Connection) *GameServerProxy {
	return &GameServerProxy{
		GameLinkConnection: proto.NewGameLinkConnection(conn),
		owner:              owner,
	}
}

// serve handles messages from the game server until it disconnects.
// Claims are released only after the last in-flight handler returns.
func (gsp *GameServerProxy) serve() {
	defer func() {
		gsp.Close()
		gsp.owner.registry.Release(gsp.gameServer)

		err := recover()
		if err != nil && !netutil.IsConnectionClosed(err) {
			omlog.TraceError("%s error: %s", gsp, err)
		} else {
			omlog.Infof("%s disconnected", gsp)
		}
	}()

	gsp.gameServer = gsp.owner.registry.AddServer(gsp.GameLinkConnection)
	omlog.Infof("%s connected", gsp)

	for {
		var msgtype proto.MsgType
		pkt, err := gsp.Recv(&msgtype)
		if err != nil {
			if netutil.IsTemporaryNetError(err) {
				continue
			}
			panic(err)
		}

		// a panic while handling one message aborts that message only
		omutils.RunPanicless(func() {
			gsp.dispatchPacket(msgtype, pkt)
		})
		pkt.Release()
	}
}

func (gsp *GameServerProxy) dispatchPacket(msgtype proto.MsgType, pkt *netutil.Packet) {
	switch msgtype {
	case proto.MT_REGISTER:
		gsp.handleRegister(pkt)
	case proto.MT_PLAYER_DATA:
		gsp.handlePlayerData(pkt)
	case proto.MT_REDIRECT:
		gsp.handleRedirect(pkt)
	case proto.MT_PLAYER_RECONNECT:
		gsp.handlePlayerReconnect(pkt)
	case proto.MT_GET_QUEST:
		gsp.handleGetQuestVar(pkt)
	case proto.MT_SET_QUEST:
		gsp.handleSetQuestVar(pkt)
	case proto.MT_BAN_PLAYER:
		gsp.handleBanPlayer(pkt)
	case proto.MT_STATISTICS:
		gsp.handleStatistics(pkt)
	default:
		omlog.Errorf("%s: invalid message type: %v", gsp, msgtype)
		gsp.SendInvalidRequest()
	}
}

func (gsp *GameServerProxy) handleRegister(pkt *netutil.Packet) {
	address := pkt.ReadVarStr()
	port := pkt.ReadUint16()
	gsp.owner.registry.SetAddress(gsp.gameServer, address, port)
	omlog.Infof("%s registered as %s:%d", gsp, address, port)

	for pkt.HasUnreadPayload() {
		mapID := common.MapID(pkt.ReadUint16())
		if err := gsp.owner.registry.Claim(gsp.gameServer, mapID); err != nil {
			omlog.Errorf("%s: claim %s failed: %v", gsp, mapID, err)
			continue
		}
		gsp.SendActiveMap(mapID)
	}
}

func (gsp *GameServerProxy) handlePlayerData(pkt *netutil.Packet) {
	charID := common.CharacterID(pkt.ReadInt32())
	data := pkt.ReadBytes(pkt.UnreadPayloadLen())

	gsp.owner.charLocks.Lock(charID)
	defer gsp.owner.charLocks.Unlock(charID)

	ch, err := gsp.owner.store.Fetch(charID)
	if err != nil {
		omlog.Errorf("%s: push data of character %d failed: %v", gsp, charID, err)
		return
	}
	if err := ch.ApplyGameData(data); err != nil {
		omlog.Errorf("%s: bad data for character %d: %v", gsp, charID, err)
		return
	}
	if err := gsp.owner.store.Persist(ch); err != nil {
		omlog.Errorf("%s: persist character %d failed: %v", gsp, charID, err)
	}
}

func (gsp *GameServerProxy) handleRedirect(pkt *netutil.Packet) {
	charID := common.CharacterID(pkt.ReadInt32())

	ch, err := gsp.owner.store.Fetch(charID)
	if err != nil {
		omlog.Errorf("%s: redirect of character %d failed: %v", gsp, charID, err)
		return
	}

	tok, address, port, err := gsp.owner.RegisterClient(ch)
	if err != nil {
		omlog.Errorf("%s: redirect of character %d failed: %v", gsp, charID, err)
		return
	}
	gsp.SendRedirectResponse(charID, tok, address, port)
}

func (gsp *GameServerProxy) handlePlayerReconnect(pkt *netutil.Packet) {
	charID := common.CharacterID(pkt.ReadInt32())
	tok := pkt.ReadFixedStr(token.TOKEN_LENGTH)

	ch, err := gsp.owner.store.Fetch(charID)
	if err != nil {
		omlog.Errorf("%s: reconnect of character %d failed: %v", gsp, charID, err)
		return
	}
	gsp.owner.reconnect.Prepare(tok, ch.AccountID, charID)
}

func (gsp *GameServerProxy) handleGetQuestVar(pkt *netutil.Packet) {
	charID := common.CharacterID(pkt.ReadInt32())
	name := pkt.ReadVarStr()

	value, err := gsp.owner.store.QuestVar(charID, name)
	if err != nil {
		omlog.Errorf("%s: read quest var %s of character %d failed: %v", gsp, name, charID, err)
		return
	}
	gsp.SendQuestVarResponse(charID, name, value)
}

func (gsp *GameServerProxy) handleSetQuestVar(pkt *netutil.Packet) {
	charID := common.CharacterID(pkt.ReadInt32())
	name := pkt.ReadVarStr()
	value := pkt.ReadVarStr()

	if err := gsp.owner.store.SetQuestVar(charID, name, value); err != nil {
		omlog.Errorf("%s: write quest var %s of character %d failed: %v", gsp, name, charID, err)
	}
}

func (gsp *GameServerProxy) handleBanPlayer(pkt *netutil.Packet) {
	charID := common.CharacterID(pkt.ReadInt32())
	minutes := pkt.ReadUint16()

	gsp.owner.charLocks.Lock(charID)
	defer gsp.owner.charLocks.Unlock(charID)

	until := storage.BanUntil(time.Duration(minutes) * time.Minute)
	if err := gsp.owner.store.Ban(charID, until); err != nil {
		omlog.Errorf("%s: ban character %d failed: %v", gsp, charID, err)
	}
}

func (gsp *GameServerProxy) handleStatistics(pkt *netutil.Packet) {
	for pkt.HasUnreadPayload() {
		mapID := common.MapID(pkt.ReadUint16())
		if !gsp.owner.registry.Owns(gsp.gameServer, mapID) {
			// the remaining payload cannot be trusted
			omlog.Errorf("%s should not be sending statistics for %s", gsp, mapID)
			break
		}

		var stats registry.MapStatistics
		stats.Things = pkt.ReadUint16()
		stats.Monsters = pkt.ReadUint16()
		nb := pkt.ReadUint16()
		stats.Players = make(common.CharacterIDList, nb)
		for i := uint16(0); i < nb; i++ {
			stats.Players[i] = common.CharacterID(pkt.ReadInt32())
		}

		if err := gsp.owner.registry.UpdateStatistics(gsp.gameServer, mapID, stats); err != nil {
			omlog.Errorf("%s: statistics for %s rejected: %v", gsp, mapID, err)
			break
		}
	}
}
