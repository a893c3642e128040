package registry

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/openmana/accountserver/engine/common"
	"github.com/openmana/accountserver/engine/omlog"
	"github.com/openmana/accountserver/engine/proto"
)

// MapStatistics is the live load reported by a game server for one map
type MapStatistics struct {
	Things   uint16
	Monsters uint16
	Players  common.CharacterIDList
}

// GameServer is one registered game server connection
type GameServer struct {
	link    proto.GameLink
	Address string
	Port    uint16
}

func (gs *GameServer) String() string {
	if gs == nil {
		return "GameServer<nil>"
	}
	return fmt.Sprintf("GameServer<%s:%d>", gs.Address, gs.Port)
}

// Link returns the outbound connection of the game server
func (gs *GameServer) Link() proto.GameLink {
	return gs.link
}

// MapRegistry tracks which game server owns each map and the latest
// statistics reported for it
type MapRegistry struct {
	sync.RWMutex
	mapOwners map[common.MapID]*GameServer
	mapStats  map[common.MapID]*MapStatistics
	servers   map[*GameServer]struct{}
}

// NewMapRegistry creates an empty MapRegistry
func NewMapRegistry() *MapRegistry {
	return &MapRegistry{
		mapOwners: map[common.MapID]*GameServer{},
		mapStats:  map[common.MapID]*MapStatistics{},
		servers:   map[*GameServer]struct{}{},
	}
}

// AddServer registers a new game server connection and returns its record
func (r *MapRegistry) AddServer(link proto.GameLink) *GameServer {
	gs := &GameServer{link: link}
	r.Lock()
	r.servers[gs] = struct{}{}
	r.Unlock()
	return gs
}

// SetAddress records the public address the game server announced
func (r *MapRegistry) SetAddress(gs *GameServer, address string, port uint16) {
	r.Lock()
	gs.Address = address
	gs.Port = port
	r.Unlock()
}

// Claim assigns mapID to gs. The first claim wins: if the map already has
// an owner the claim fails and the existing assignment is left untouched,
// even when the claimer is the current owner.
func (r *MapRegistry) Claim(gs *GameServer, mapID common.MapID) error {
	r.Lock()
	defer r.Unlock()

	if owner, ok := r.mapOwners[mapID]; ok {
		return errors.Errorf("%s is already served by %s", mapID, owner)
	}

	r.mapOwners[mapID] = gs
	r.mapStats[mapID] = &MapStatistics{}
	return nil
}

// OwnerOf returns the game server serving mapID, or nil if the map is
// not currently served
func (r *MapRegistry) OwnerOf(mapID common.MapID) *GameServer {
	r.RLock()
	owner := r.mapOwners[mapID]
	r.RUnlock()
	return owner
}

// AddressPort returns the advertised address of gs. The record is shared
// and may be re-registered concurrently, so the fields are read under the
// registry lock.
func (r *MapRegistry) AddressPort(gs *GameServer) (string, uint16) {
	r.RLock()
	address, port := gs.Address, gs.Port
	r.RUnlock()
	return address, port
}

// Owns returns whether gs currently serves mapID
func (r *MapRegistry) Owns(gs *GameServer, mapID common.MapID) bool {
	r.RLock()
	owns := r.mapOwners[mapID] == gs
	r.RUnlock()
	return owns
}

// Release removes gs and every map it owns from the registry. Maps owned
// by other game servers are not affected.
func (r *MapRegistry) Release(gs *GameServer) {
	r.Lock()
	released := 0
	for mapID, owner := range r.mapOwners {
		if owner == gs {
			delete(r.mapOwners, mapID)
			delete(r.mapStats, mapID)
			released += 1
		}
	}
	delete(r.servers, gs)
	desc := gs.String()
	r.Unlock()
	omlog.Infof("%s released, %d maps dropped", desc, released)
}

// UpdateStatistics overwrites the statistics of mapID wholesale. The
// update is rejected if gs does not own the map.
func (r *MapRegistry) UpdateStatistics(gs *GameServer, mapID common.MapID, stats MapStatistics) error {
	r.Lock()
	defer r.Unlock()

	if r.mapOwners[mapID] != gs {
		return errors.Errorf("%s does not serve %s", gs, mapID)
	}

	r.mapStats[mapID] = &stats
	return nil
}

// MapSnapshot is a point-in-time view of one served map
type MapSnapshot struct {
	MapID common.MapID
	Stats MapStatistics
}

// ServerSnapshot is a point-in-time view of one game server and its maps
type ServerSnapshot struct {
	Address string
	Port    uint16
	Maps    []MapSnapshot
}

// Snapshot returns a consistent copy of all game servers, their maps and
// the latest statistics, for dumping
func (r *MapRegistry) Snapshot() []ServerSnapshot {
	r.RLock()
	defer r.RUnlock()

	byServer := map[*GameServer][]MapSnapshot{}
	for mapID, owner := range r.mapOwners {
		stats := r.mapStats[mapID]
		ms := MapSnapshot{MapID: mapID}
		if stats != nil {
			ms.Stats = MapStatistics{
				Things:   stats.Things,
				Monsters: stats.Monsters,
				Players:  stats.Players.Copy(),
			}
		}
		byServer[owner] = append(byServer[owner], ms)
	}

	snapshot := make([]ServerSnapshot, 0, len(r.servers))
	for gs := range r.servers {
		snapshot = append(snapshot, ServerSnapshot{
			Address: gs.Address,
			Port:    gs.Port,
			Maps:    byServer[gs],
		})
	}
	return snapshot
}
