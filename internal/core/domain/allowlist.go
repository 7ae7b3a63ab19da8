package domain

// AllowList is the set of account identifiers permitted access within a scope.
// Storage is list-shaped (a JSON array of strings), so the type is an ordered
// slice, but membership is by value equality and duplicates never accumulate:
// every mutation goes through WithAccount/WithoutAccount, which enforce set
// semantics. Insertion order carries no meaning.
type AllowList []string

// Contains reports whether the account identifier is in the list.
func (l AllowList) Contains(account string) bool {
	for _, id := range l {
		if id == account {
			return true
		}
	}
	return false
}

// WithAccount returns a list containing the account. If it is already present
// the receiver is returned unchanged; otherwise a new list is allocated.
func (l AllowList) WithAccount(account string) AllowList {
	if l.Contains(account) {
		return l
	}
	updated := make(AllowList, 0, len(l)+1)
	updated = append(updated, l...)
	return append(updated, account)
}

// WithoutAccount returns a list with the account removed. If it is absent the
// receiver is returned unchanged.
func (l AllowList) WithoutAccount(account string) AllowList {
	if !l.Contains(account) {
		return l
	}
	updated := make(AllowList, 0, len(l))
	for _, id := range l {
		if id != account {
			updated = append(updated, id)
		}
	}
	return updated
}

// EqualSet reports whether two lists contain the same identifiers, ignoring
// order. This is the comparison used to decide whether the effective
// allow-list changed.
func (l AllowList) EqualSet(other AllowList) bool {
	if len(l) != len(other) {
		return false
	}
	members := make(map[string]struct{}, len(l))
	for _, id := range l {
		members[id] = struct{}{}
	}
	for _, id := range other {
		if _, ok := members[id]; !ok {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the list.
func (l AllowList) Clone() AllowList {
	if l == nil {
		return nil
	}
	cloned := make(AllowList, len(l))
	copy(cloned, l)
	return cloned
}
