package flow

// Visit increments the in-memory visit count of key and exposes it to the
// evaluator as VisitedVar and visits[key].
//
// When alwaysStored is set the count is also written to the persisted tier.
// Otherwise it is persisted only if the evaluator reports reading VisitedVar
// before the next settleVisit for the same key.
func (i *Interpreter) Visit(key string, alwaysStored bool) int {
	if i.evaluator != nil {
		// Discard reads that happened before this visit.
		i.evaluator.VisitConsumed()
	}

	i.visits[key]++
	n := i.visits[key]

	if i.evaluator != nil {
		i.evaluator.Assign("", VisitedVar, n)
		i.evaluator.Assign(VisitsNamespace, key, n)
	}
	if alwaysStored {
		i.stored[key] = n
	}
	return n
}

// settleVisit copies the count of key to the persisted tier if the evaluator
// read it since Visit.
func (i *Interpreter) settleVisit(key string) {
	if i.evaluator == nil {
		return
	}
	if i.evaluator.VisitConsumed() {
		i.stored[key] = i.visits[key]
	}
}

// Visits returns the in-memory visit count of key.
func (i *Interpreter) Visits(key string) int {
	return i.visits[key]
}

// StoredVisits returns a copy of the persisted visit tier.
func (i *Interpreter) StoredVisits() map[string]int {
	out := make(map[string]int, len(i.stored))
	for k, v := range i.stored {
		out[k] = v
	}
	return out
}

// exposeVisits pushes every in-memory count to the evaluator, used after a
// resume rebuilt the counters.
func (i *Interpreter) exposeVisits() {
	if i.evaluator == nil {
		return
	}
	for k, v := range i.visits {
		i.evaluator.Assign(VisitsNamespace, k, v)
	}
}
