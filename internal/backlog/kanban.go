package backlog

import "strings"

// Lane names, fixed.
const (
	LaneBacklog = "Backlog"
	LaneDoing   = "Doing"
	LaneBlocked = "Blocked"
	LaneReview  = "Review"
	LaneDone    = "Done"
)

// Lanes groups items into the five fixed kanban buckets.
type Lanes struct {
	Backlog []ItemView `json:"Backlog"`
	Doing   []ItemView `json:"Doing"`
	Blocked []ItemView `json:"Blocked"`
	Review  []ItemView `json:"Review"`
	Done    []ItemView `json:"Done"`
}

// KanbanResult is the kanban view over a product's primary items.
type KanbanResult struct {
	Lanes    Lanes    `json:"lanes"`
	Warnings []string `json:"warnings"`
}

// laneForState maps a free-form state string to a lane, case-insensitively.
// Unrecognized states land in Backlog.
func laneForState(state string) string {
	switch strings.ToLower(state) {
	case "inprogress", "active":
		return LaneDoing
	case "blocked":
		return LaneBlocked
	case "review":
		return LaneReview
	case "done", "closed":
		return LaneDone
	}

	return LaneBacklog
}

// buildKanban classifies every primary item into exactly one lane. All
// types participate, not just the hierarchy-eligible ones.
func buildKanban(items []ItemView) KanbanResult {
	result := KanbanResult{
		Lanes: Lanes{
			Backlog: []ItemView{},
			Doing:   []ItemView{},
			Blocked: []ItemView{},
			Review:  []ItemView{},
			Done:    []ItemView{},
		},
		Warnings: []string{},
	}

	for _, item := range items {
		switch laneForState(item.State) {
		case LaneDoing:
			result.Lanes.Doing = append(result.Lanes.Doing, item)
		case LaneBlocked:
			result.Lanes.Blocked = append(result.Lanes.Blocked, item)
		case LaneReview:
			result.Lanes.Review = append(result.Lanes.Review, item)
		case LaneDone:
			result.Lanes.Done = append(result.Lanes.Done, item)
		default:
			result.Lanes.Backlog = append(result.Lanes.Backlog, item)
		}
	}

	return result
}
