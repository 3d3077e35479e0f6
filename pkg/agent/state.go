package agent

import (
	"fmt"
	"sort"
)

// Task statuses. Exactly one task is active at a time unless every task
// is done.
const (
	TaskStatusActive  = "active"
	TaskStatusDone    = "done"
	TaskStatusBlocked = "blocked"
)

// Archetypes classify the active task. They are advisory metadata: the
// engine validates membership and otherwise passes them through to the
// prompt untouched.
const (
	ArchetypeInvestigate = "Investigate"
	ArchetypeCreate      = "Create"
	ArchetypeModify      = "Modify"
	ArchetypeProvision   = "Provision"
	ArchetypeUnorthodox  = "Unorthodox"
)

// canonicalPhases lists the allowed phase names per archetype. Unorthodox
// tasks are free-form and accept any phase.
var canonicalPhases = map[string][]string{
	ArchetypeInvestigate: {"Gather", "Hypothesize", "Test", "Isolate", "Conclude"},
	ArchetypeCreate:      {"Requirements", "Draft", "Validate", "Refine", "Done"},
	ArchetypeModify:      {"Understand", "Backup", "Implement", "Verify", "Done"},
	ArchetypeProvision:   {"Check", "Install", "Verify"},
	ArchetypeUnorthodox:  nil,
}

// Task is one sub-task in the investigation plan.
type Task struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// ActiveTask carries the advisory metadata for the task currently being
// worked. TurnsOnTask is engine-controlled and ignored when proposed by
// the oracle.
type ActiveTask struct {
	ID          string `json:"id"`
	Archetype   string `json:"archetype,omitempty"`
	Phase       string `json:"phase,omitempty"`
	TurnsOnTask int    `json:"turns_on_task"`
}

// Fact is one observed truth, tagged with the turn that produced it.
type Fact struct {
	Text string `json:"text"`
	Turn int    `json:"turn,omitempty"`
}

// TranscriptEntry is the immutable record of one completed turn.
type TranscriptEntry struct {
	Turn        int            `json:"turn"`
	Thought     string         `json:"thought"`
	Tool        string         `json:"tool"`
	Params      map[string]any `json:"params,omitempty"`
	Observation string         `json:"observation"`
}

// State is the investigation state document. The oracle proposes a new
// state every turn; Merge folds the proposal in under the invariants
// documented on that method. Facts and RuledOut only ever grow.
type State struct {
	Goal     string      `json:"goal"`
	Tasks    []Task      `json:"tasks"`
	Active   *ActiveTask `json:"active,omitempty"`
	Facts    []Fact      `json:"facts"`
	RuledOut []Fact      `json:"ruled_out"`
	Unknowns []string    `json:"unknowns"`
}

// NewState returns the empty state document for a goal.
func NewState(goal string) *State {
	return &State{
		Goal:     goal,
		Facts:    []Fact{},
		RuledOut: []Fact{},
		Unknowns: []string{},
	}
}

// ProposedState is the state section of an oracle reply. It mirrors State
// but everything is optional; absent sections leave the current state
// untouched.
type ProposedState struct {
	Tasks    []Task      `json:"tasks"`
	Active   *ActiveTask `json:"active"`
	Facts    []Fact      `json:"facts"`
	RuledOut []Fact      `json:"ruled_out"`
	Unknowns []string    `json:"unknowns"`
}

// Merge folds an oracle-proposed state into s and returns human-readable
// warnings for every correction it had to apply. Rules:
//
//   - facts and ruled_out are unioned with the existing sets, deduplicated
//     by text; existing entries are never dropped.
//   - unknowns are replaced wholesale (open questions may be resolved).
//   - tasks are replaced, then the at-most-one-active invariant is
//     enforced: extra active tasks are downgraded to blocked.
//   - active is replaced; turns_on_task stays engine-controlled (carried
//     over when the task id is unchanged, reset when it changes, and
//     counted up by TickActive once the turn completes).
//   - archetype and phase outside the enumerated sets are discarded with a
//     warning; the previous values are kept.
//
// A nil proposal is a no-op.
func (s *State) Merge(proposed *ProposedState, turn int) []string {
	if proposed == nil {
		return nil
	}
	var warnings []string

	s.Facts = unionFacts(s.Facts, proposed.Facts, turn)
	s.RuledOut = unionFacts(s.RuledOut, proposed.RuledOut, turn)

	if proposed.Unknowns != nil {
		s.Unknowns = proposed.Unknowns
	}

	if proposed.Tasks != nil {
		s.Tasks = proposed.Tasks
		warnings = append(warnings, s.enforceSingleActive()...)
	}

	if proposed.Active != nil {
		warnings = append(warnings, s.adoptActive(proposed.Active)...)
	}
	return warnings
}

// unionFacts appends entries from proposed whose text is not already
// present in existing. New entries are stamped with the current turn when
// the oracle did not supply one.
func unionFacts(existing, proposed []Fact, turn int) []Fact {
	if len(proposed) == 0 {
		return existing
	}
	seen := make(map[string]struct{}, len(existing))
	for _, f := range existing {
		seen[f.Text] = struct{}{}
	}
	for _, f := range proposed {
		if f.Text == "" {
			continue
		}
		if _, ok := seen[f.Text]; ok {
			continue
		}
		seen[f.Text] = struct{}{}
		if f.Turn == 0 {
			f.Turn = turn
		}
		existing = append(existing, f)
	}
	return existing
}

// enforceSingleActive downgrades all but the first active task to blocked
// and returns a warning per downgrade. Zero active tasks is tolerated; the
// oracle may be between tasks.
func (s *State) enforceSingleActive() []string {
	var warnings []string
	seenActive := false
	for i := range s.Tasks {
		if s.Tasks[i].Status != TaskStatusActive {
			continue
		}
		if !seenActive {
			seenActive = true
			continue
		}
		s.Tasks[i].Status = TaskStatusBlocked
		warnings = append(warnings,
			fmt.Sprintf("multiple active tasks proposed; downgraded %q to blocked", s.Tasks[i].ID))
	}
	return warnings
}

// adoptActive replaces the active-task metadata, preserving the
// engine-controlled turns_on_task counter and rejecting archetype or phase
// values outside the enumerated sets.
func (s *State) adoptActive(proposed *ActiveTask) []string {
	var warnings []string

	next := &ActiveTask{
		ID:        proposed.ID,
		Archetype: proposed.Archetype,
		Phase:     proposed.Phase,
	}
	if s.Active != nil && s.Active.ID == next.ID {
		next.TurnsOnTask = s.Active.TurnsOnTask
	}

	if next.Archetype != "" {
		phases, ok := canonicalPhases[next.Archetype]
		if !ok {
			warnings = append(warnings,
				fmt.Sprintf("unknown archetype %q; keeping previous", next.Archetype))
			next.Archetype = ""
			next.Phase = ""
			if s.Active != nil {
				next.Archetype = s.Active.Archetype
				next.Phase = s.Active.Phase
			}
		} else if next.Phase != "" && next.Archetype != ArchetypeUnorthodox && !containsString(phases, next.Phase) {
			warnings = append(warnings,
				fmt.Sprintf("phase %q is not valid for archetype %q; keeping previous", next.Phase, next.Archetype))
			next.Phase = ""
			if s.Active != nil && s.Active.Archetype == next.Archetype {
				next.Phase = s.Active.Phase
			}
		}
	}

	s.Active = next
	return warnings
}

// TickActive increments turns_on_task for the current active task. The
// engine calls this once per completed turn, after the merge.
func (s *State) TickActive() {
	if s.Active != nil {
		s.Active.TurnsOnTask++
	}
}

// AllTasksDone reports whether the plan is non-empty and every task is
// done.
func (s *State) AllTasksDone() bool {
	if len(s.Tasks) == 0 {
		return false
	}
	for _, t := range s.Tasks {
		if t.Status != TaskStatusDone {
			return false
		}
	}
	return true
}

// Archetypes returns the known archetype names, sorted. Used by the prompt
// builder to document the allowed values.
func Archetypes() []string {
	names := make([]string, 0, len(canonicalPhases))
	for name := range canonicalPhases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PhasesFor returns the canonical phase sequence for an archetype, or nil
// for Unorthodox and unknown archetypes.
func PhasesFor(archetype string) []string {
	return canonicalPhases[archetype]
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
