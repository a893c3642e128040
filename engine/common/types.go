package common

import "fmt"

// MapID identifies one world map. Each active map is simulated by exactly
// one game server process at a time.
type MapID uint16

// CharacterID is the database ID of a player character
type CharacterID int32

// AccountID is the database ID of a player account
type AccountID int32

// IsNil returns if CharacterID is nil
func (id CharacterID) IsNil() bool {
	return id == 0
}

func (id MapID) String() string {
	return fmt.Sprintf("map-%d", uint16(id))
}
