package components

import "sort"

// SortNodes puts the local node first, then the most recently heard.
func SortNodes(nodes []NodeData) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].IsMe != nodes[j].IsMe {
			return nodes[i].IsMe
		}
		if !nodes[i].LastHeard.Equal(nodes[j].LastHeard) {
			return nodes[i].LastHeard.After(nodes[j].LastHeard)
		}
		return nodes[i].Num < nodes[j].Num
	})
}

// SortChatLinks orders direct message threads by title.
func SortChatLinks(links []ChatLink) {
	sort.SliceStable(links, func(i, j int) bool {
		return links[i].Title < links[j].Title
	})
}
