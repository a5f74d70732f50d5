// Package identity resolves page-rendered comments to server comment IDs using
// (author, content) fingerprints.
package identity

import "github.com/cercia-labs/cercia-core/internal/domain"

// LookupMap maps a serialized fingerprint to a comment ID. A key maps to at most
// one ID; later writes win.
type LookupMap map[string]domain.CommentID

// BuildLookupMap walks comments and every nested reply depth-first. Missing
// authors or content count as "". Nodes without an id are skipped.
func BuildLookupMap(nodes []domain.CommentNode, kb domain.KeyBuilder) LookupMap {
	if kb == nil {
		kb = domain.LossyKeyBuilder{}
	}
	m := make(LookupMap)
	var walk func([]domain.CommentNode)
	walk = func(ns []domain.CommentNode) {
		for i := range ns {
			n := &ns[i]
			if n.ID != "" {
				m[kb.Key(n.AuthorName(), n.Content)] = n.ID
			}
			if len(n.Replies) > 0 {
				walk(n.Replies)
			}
		}
	}
	walk(nodes)
	return m
}
