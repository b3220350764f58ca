package backlog

import "fmt"

// TreeNode is one node of the hierarchy view.
type TreeNode struct {
	ID       string      `json:"id"`
	Title    string      `json:"title"`
	Type     string      `json:"type"`
	State    string      `json:"state"`
	Parent   string      `json:"parent"`
	Children []*TreeNode `json:"children"`
}

// TreeResult is the hierarchy view over a product's primary items.
type TreeResult struct {
	Roots    []*TreeNode `json:"roots"`
	Warnings []string    `json:"warnings"`
}

// buildTree assembles the parent/child forest from the hierarchy-eligible
// primary items. Ordering follows the input: roots and children appear in
// the order their items were discovered during the scan.
//
// Edge policies:
//   - a parent reference to an unknown id promotes the child to a root and
//     emits an orphan warning
//   - a cycle edge is not followed; a warning is emitted and every node in
//     the cycle still appears exactly once
func buildTree(items []ItemView) TreeResult {
	result := TreeResult{
		Roots:    []*TreeNode{},
		Warnings: []string{},
	}

	var eligible []ItemView

	byID := make(map[string]*TreeNode)

	for _, item := range items {
		if !hierarchyEligible(item.Type) || item.ID == "" {
			continue
		}

		eligible = append(eligible, item)
		byID[item.ID] = &TreeNode{
			ID:       item.ID,
			Title:    item.Title,
			Type:     item.Type,
			State:    item.State,
			Parent:   item.Parent,
			Children: []*TreeNode{},
		}
	}

	childIDs := make(map[string][]string)

	for _, item := range eligible {
		if item.Parent == "" {
			continue
		}

		childIDs[item.Parent] = append(childIDs[item.Parent], item.ID)

		if _, known := byID[item.Parent]; !known {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Orphan parent missing for item %s: %s", item.ID, item.Parent))
		}
	}

	visiting := make(map[string]bool)
	visited := make(map[string]bool)

	var attach func(node *TreeNode)

	attach = func(node *TreeNode) {
		visiting[node.ID] = true
		visited[node.ID] = true

		for _, childID := range childIDs[node.ID] {
			child, known := byID[childID]
			if !known {
				continue
			}

			if visiting[childID] {
				result.Warnings = append(result.Warnings, "Cycle detected at "+childID)

				continue
			}

			if visited[childID] {
				// Already attached elsewhere; a node lives in one place only.
				continue
			}

			attach(child)
			node.Children = append(node.Children, child)
		}

		visiting[node.ID] = false
	}

	for _, item := range eligible {
		isRoot := item.Parent == ""
		if !isRoot {
			_, known := byID[item.Parent]
			isRoot = !known
		}

		if !isRoot || visited[item.ID] {
			continue
		}

		root := byID[item.ID]
		attach(root)
		result.Roots = append(result.Roots, root)
	}

	// Nodes reachable only through a cycle have no root above them. Promote
	// the first unvisited node of each such component so every eligible item
	// appears in the forest exactly once.
	for _, item := range eligible {
		if visited[item.ID] {
			continue
		}

		root := byID[item.ID]
		attach(root)
		result.Roots = append(result.Roots, root)
	}

	return result
}
