package lifecycle

import "github.com/me/branchq/pkg/model"

// Tracker groups a visit's accepted events into successive transactions,
// one continuous service episode each.
type Tracker struct{}

// Record folds an accepted event into the visit's transaction history.
//
// If the event starts a new episode, the open transaction is sealed with
// the completion status the event maps to, stamped with the event time,
// and archived; a fresh transaction then opens carrying forward the
// sealed episode's event list as context. In every case the event is
// appended to the open transaction and to the visit's audit log.
//
// Record must only be called with events the Machine has accepted.
func (t *Tracker) Record(v *model.Visit, ev model.LifecycleEvent) {
	if v.CurrentTransaction == nil {
		v.CurrentTransaction = model.NewTransaction(v, ev.At)
	} else if ev.Type.StartsNewTransaction() {
		sealed := v.CurrentTransaction
		if status, ok := ev.Type.Completion(); ok {
			sealed.Seal(status, ev.At)
		} else {
			sealed.Seal(model.CompletionOK, ev.At)
		}
		v.Transactions = append(v.Transactions, sealed)

		next := model.NewTransaction(v, ev.At)
		next.Events = append(next.Events, sealed.Events...)
		v.CurrentTransaction = next
	}

	v.CurrentTransaction.Events = append(v.CurrentTransaction.Events, ev)
	v.Events = append(v.Events, ev)
}
