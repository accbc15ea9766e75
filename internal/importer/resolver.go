package importer

// resolver answers cross-entity reference lookups for the message and
// file stages. It never fabricates placeholder entities: an unresolved
// reference is reported as-is and the calling stage turns it into a
// skip-with-warning.
type resolver struct {
	ids *IDMap
}

func (r resolver) author(sourceID string) (string, bool) {
	return r.ids.Lookup(EntityUsers, sourceID)
}

func (r resolver) channel(sourceID string) (string, bool) {
	return r.ids.Lookup(EntityChannels, sourceID)
}

func (r resolver) message(sourceID string) (string, bool) {
	return r.ids.Lookup(EntityMessages, sourceID)
}
