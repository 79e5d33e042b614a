package domain

// PollState names the states of the results watch. pending is the only
// non-terminal state; once a watch settles it never transitions again within
// a session, though store_error is never persisted and a later view entry
// may recover from it.
type PollState string

const (
	PollPending    PollState = "pending"
	PollReady      PollState = "ready"
	PollTimedOut   PollState = "timed_out"
	PollStoreError PollState = "store_error"
)

// Terminal reports whether no further automatic transition occurs from s.
func (s PollState) Terminal() bool {
	return s == PollReady || s == PollTimedOut || s == PollStoreError
}
