package rbtree

// Op names the public mutation an Observer is notified about.
type Op string

const (
	// OpSet is reported after Set.
	OpSet Op = "set"
	// OpDelete is reported after Delete.
	OpDelete Op = "delete"
)

// Stats holds structural counters of a Map.
type Stats struct {
	// Inserts counts new keys.
	Inserts int64
	// Updates counts Set calls that replaced the value of an existing key.
	Updates int64
	// Deletes counts keys actually removed.
	Deletes int64
	// Rotations counts single rotations, so a double rotation counts twice.
	Rotations int64
	// InsertFixups counts red-red repairs applied while inserting.
	InsertFixups int64
	// DeleteFixups counts black-height repair steps applied while deleting.
	DeleteFixups int64
	// Deficits counts black leaves removed, each of which shortened one path.
	Deficits int64
}

func (s Stats) sub(other Stats) Stats {
	return Stats{
		Inserts:      s.Inserts - other.Inserts,
		Updates:      s.Updates - other.Updates,
		Deletes:      s.Deletes - other.Deletes,
		Rotations:    s.Rotations - other.Rotations,
		InsertFixups: s.InsertFixups - other.InsertFixups,
		DeleteFixups: s.DeleteFixups - other.DeleteFixups,
		Deficits:     s.Deficits - other.Deficits,
	}
}

// Observer receives the counters changed by each Set or Delete.
// Observe runs synchronously inside the mutating call.
type Observer interface {
	Observe(op Op, delta Stats)
}

type nopObserver struct{}

func (nopObserver) Observe(Op, Stats) {}
