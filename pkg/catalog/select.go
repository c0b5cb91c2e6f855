package catalog

// Selection narrows the catalog down to the checks of one run
type Selection struct {
	// HostCount is the number of hosts in the targeted group; multi
	// checks need at least two.
	HostCount int
	Groups    []string
	CheckIDs  []string
}

type CheckGroup struct {
	Name   string            `json:"name"`
	Checks []CheckDefinition `json:"checks"`
}

type SelectionResult struct {
	Available []string     `json:"available"`
	Selected  []string     `json:"selected"`
	Skipped   []string     `json:"skipped"`
	Groups    []CheckGroup `json:"groups"`
}

// Select picks the supported checks matching the selection. Groups are
// returned in the order they first appear in defs.
func Select(defs []CheckDefinition, selection Selection) SelectionResult {
	groups := newSet(selection.Groups...)
	ids := newSet(selection.CheckIDs...)

	result := SelectionResult{
		Available: []string{},
		Selected:  []string{},
		Skipped:   []string{},
	}
	groupIndex := make(map[string]int)

	for _, def := range defs {
		if def.SupportStatus != SupportSupported {
			continue
		}
		result.Available = append(result.Available, def.ID)

		if !selected(def, selection, groups, ids) {
			result.Skipped = append(result.Skipped, def.ID)
			continue
		}
		result.Selected = append(result.Selected, def.ID)

		index, ok := groupIndex[def.Group]
		if !ok {
			index = len(result.Groups)
			groupIndex[def.Group] = index
			result.Groups = append(result.Groups, CheckGroup{Name: def.Group})
		}
		result.Groups[index].Checks = append(result.Groups[index].Checks, def)
	}
	return result
}

func selected(def CheckDefinition, selection Selection, groups, ids set) bool {
	if selection.HostCount == 1 && def.ExpectationType == ExpectationMulti {
		return false
	}
	if len(groups) > 0 {
		if _, ok := groups[def.Group]; !ok {
			return false
		}
	}
	if len(ids) > 0 {
		if _, ok := ids[def.ID]; !ok {
			return false
		}
	}
	return true
}
