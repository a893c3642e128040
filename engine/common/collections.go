package common

// CharacterIDList is a list of character IDs (slice)
type CharacterIDList []CharacterID

// Append adds the character ID to the end of CharacterIDList
func (cl *CharacterIDList) Append(id CharacterID) {
	*cl = append(*cl, id)
}

// Remove removes the character ID from CharacterIDList
func (cl *CharacterIDList) Remove(id CharacterID) {
	widx := 0
	cpcl := *cl
	for idx, _id := range cpcl {
		if _id == id {
			// ignore this elem by doing nothing
		} else {
			if idx != widx {
				cpcl[widx] = _id
			}
			widx++
		}
	}

	*cl = cpcl[:widx]
}

// Find gets the index of character ID in CharacterIDList, returns -1 if not found
func (cl CharacterIDList) Find(id CharacterID) int {
	for idx, _id := range cl {
		if _id == id {
			return idx
		}
	}
	return -1
}

// Copy returns a copy of the CharacterIDList
func (cl CharacterIDList) Copy() CharacterIDList {
	if cl == nil {
		return nil
	}
	cp := make(CharacterIDList, len(cl))
	copy(cp, cl)
	return cp
}
