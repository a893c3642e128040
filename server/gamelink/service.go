package gamelink

import (
	"net"

	"github.com/pkg/errors"

	"github.com/openmana/accountserver/engine/common"
	"github.com/openmana/accountserver/engine/consts"
	"github.com/openmana/accountserver/engine/netutil"
	"github.com/openmana/accountserver/engine/omlog"
	"github.com/openmana/accountserver/engine/storage"
	"github.com/openmana/accountserver/server/handoff"
	"github.com/openmana/accountserver/server/registry"
)

// ReconnectPreparer receives the token and account of a reconnecting
// client so the account session side can expect it
type ReconnectPreparer interface {
	Prepare(tok string, accountID common.AccountID, charID common.CharacterID)
}

// Service accepts game server connections and serves their messages
type Service struct {
	registry  *registry.MapRegistry
	broker    *handoff.Broker
	store     storage.CharacterStorage
	charLocks *storage.Locker
	reconnect ReconnectPreparer
}

// NewService creates the game link service
func NewService(reg *registry.MapRegistry, broker *handoff.Broker, store storage.CharacterStorage, reconnect ReconnectPreparer) *Service {
	return &Service{
		registry:  reg,
		broker:    broker,
		store:     store,
		charLocks: storage.NewLocker(),
		reconnect: reconnect,
	}
}

// Registry returns the map registry the service feeds
func (s *Service) Registry() *registry.MapRegistry {
	return s.registry
}

// ServeTCPConnection serves the game server connection, blocking until
// the connection is closed
func (s *Service) ServeTCPConnection(conn net.Conn) {
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetWriteBuffer(consts.GAMESERVER_PROXY_WRITE_BUFFER_SIZE)
		tcpConn.SetReadBuffer(consts.GAMESERVER_PROXY_READ_BUFFER_SIZE)
		tcpConn.SetNoDelay(consts.GAMESERVER_PROXY_SET_TCP_NO_DELAY)
	}

	proxy := newGameServerProxy(s, netutil.NewBufferedConnection(conn,
		consts.GAMESERVER_PROXY_READ_BUFFER_SIZE, consts.GAMESERVER_PROXY_WRITE_BUFFER_SIZE))
	proxy.serve()
}

// GameServerOfMap returns the game server currently serving mapID, or
// nil if the map is unserved
func (s *Service) GameServerOfMap(mapID common.MapID) *registry.GameServer {
	return s.registry.OwnerOf(mapID)
}

// RegisterClient issues a handoff token for the character and tells the
// game server serving the character's map to expect a client bearing it.
// The token and the destination address are returned for relay to the
// client.
func (s *Service) RegisterClient(ch *storage.Character) (tok string, address string, port uint16, err error) {
	gs := s.registry.OwnerOf(ch.MapID)
	if gs == nil {
		err = errors.Errorf("no game server serves %s", ch.MapID)
		return
	}

	address, port = s.registry.AddressPort(gs)
	tok = s.broker.Issue(ch.AccountID, ch.ID)
	if err = gs.Link().SendPlayerEnter(tok, ch.ID, ch.Name, ch.GameData); err != nil {
		omlog.Errorf("gamelink: notify %s:%d of client %d failed: %v", address, port, ch.ID, err)
		return
	}
	return tok, address, port, nil
}
