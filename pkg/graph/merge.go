package graph

// Merge folds a chunk's delta graph into the accumulator:
//   - nodes are unioned by identifier; on conflict the delta's properties
//     overwrite the existing ones key by key (last write wins, so delta
//     application order matters for property content)
//   - relationship triples are unioned with exact (source, target, type)
//     dedup, which is order-independent
//   - timecode sets are unioned per entity with duplicate keys removed,
//     preserving first-seen order
//
// Merging the same delta twice leaves the graph unchanged.
func (g *Graph) Merge(delta Graph) {
	for _, node := range delta.Nodes {
		existing := g.FindNode(node.ID)
		if existing == nil {
			copied := node
			if node.Properties != nil {
				copied.Properties = make(map[string]string, len(node.Properties))
				for k, v := range node.Properties {
					copied.Properties[k] = v
				}
			}
			g.Nodes = append(g.Nodes, copied)
			continue
		}

		if node.Type != "" {
			existing.Type = node.Type
		}
		if len(node.Properties) > 0 && existing.Properties == nil {
			existing.Properties = make(map[string]string, len(node.Properties))
		}
		for k, v := range node.Properties {
			existing.Properties[k] = v
		}
	}

	seen := make(map[Relationship]struct{}, len(g.Relationships))
	for _, rel := range g.Relationships {
		seen[rel] = struct{}{}
	}
	for _, rel := range delta.Relationships {
		if rel.Source == "" || rel.Target == "" {
			continue
		}
		if _, ok := seen[rel]; ok {
			continue
		}
		seen[rel] = struct{}{}
		g.Relationships = append(g.Relationships, rel)
	}

	for id, keys := range delta.Timecodes {
		if g.Timecodes == nil {
			g.Timecodes = map[string][]string{}
		}
		have := make(map[string]struct{}, len(g.Timecodes[id]))
		for _, key := range g.Timecodes[id] {
			have[key] = struct{}{}
		}
		for _, key := range keys {
			if _, ok := have[key]; ok {
				continue
			}
			have[key] = struct{}{}
			g.Timecodes[id] = append(g.Timecodes[id], key)
		}
	}
}
