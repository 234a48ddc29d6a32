package reconcile

// Update is one in-place refresh of an existing output. RefreshTitle is false
// when the user has manually retitled the output: its data is still updated,
// its title and description never are.
type Update struct {
	Key          string
	Context      string
	RefreshTitle bool
}

// Plan is the reconciliation decision for one run: updates are applied first,
// then creates, then deletes, so a failure mid-commit can never leave a group
// without its output while an orphan still holds its name.
type Plan struct {
	Updates []Update
	Creates []string
	Deletes []string
}

// BuildPlan compares the previous output set against the freshly computed
// group keys. Every fresh key found in the previous set becomes an update of
// that context; every fresh key not found becomes a create; every previous
// context whose key is no longer present becomes a delete. The fresh key
// order is preserved for updates and creates, the previous insertion order
// for deletes.
func BuildPlan(prev *OutputSet, freshKeys []string) Plan {
	var plan Plan
	live := make(map[string]bool, len(freshKeys))

	for _, key := range freshKeys {
		if contextID, ok := prev.ByKey(key); ok {
			live[contextID] = true
			plan.Updates = append(plan.Updates, Update{
				Key:          key,
				Context:      contextID,
				RefreshTitle: !prev.Edited(contextID),
			})
			continue
		}
		plan.Creates = append(plan.Creates, key)
	}

	for _, contextID := range prev.Contexts() {
		if !live[contextID] {
			plan.Deletes = append(plan.Deletes, contextID)
		}
	}
	return plan
}
