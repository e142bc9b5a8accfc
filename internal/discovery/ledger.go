package discovery

// Ledger remembers the identities admitted during one run. It is not safe
// for concurrent use; the controller mutates it only in the sequential dedup
// step after a pivot's enrichment has joined.
type Ledger struct {
	keys  map[string]struct{}
	names map[string]struct{}
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		keys:  make(map[string]struct{}),
		names: make(map[string]struct{}),
	}
}

// SeenName reports whether a lead with this display name was already
// admitted. Used to skip enrichment for known businesses.
func (l *Ledger) SeenName(name string) bool {
	n := NormalizeName(name)
	if n == "" {
		return false
	}
	_, ok := l.names[n]
	return ok
}

// Admit records the lead's dedup key and name. It returns false, recording
// nothing, when the key is already present.
func (l *Ledger) Admit(lead *VerifiedLead) bool {
	key := DedupKey(lead)
	if _, ok := l.keys[key]; ok {
		return false
	}
	l.keys[key] = struct{}{}
	if n := NormalizeName(lead.DisplayName); n != "" {
		l.names[n] = struct{}{}
	}
	return true
}

// Len is the number of admitted keys.
func (l *Ledger) Len() int {
	return len(l.keys)
}
