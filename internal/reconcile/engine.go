package reconcile

import (
	"fmt"
	"strings"

	"github.com/kalambet/mochi/internal/card"
)

// Plan is the outcome of comparing a local deck file against remote state.
// The operation sequences are disjoint: a card appears in at most one.
// Nothing is applied here; callers print the plan, ask for confirmation,
// and only then mutate anything.
type Plan struct {
	ToCreate       []card.Card
	ToUpdate       []card.Card
	ToDeleteRemote []string
	ToDeleteLocal  []card.Card
	Duplicates     []Duplicate
}

// Duplicate pairs an id-less local card with the remote card whose content
// hash it matches. Creating it would duplicate remote content, so it is
// held back unless the caller forces creation.
type Duplicate struct {
	Card     card.Card
	RemoteID string
}

// Empty reports whether the plan carries no operations at all.
func (p Plan) Empty() bool {
	return len(p.ToCreate) == 0 &&
		len(p.ToUpdate) == 0 &&
		len(p.ToDeleteRemote) == 0 &&
		len(p.ToDeleteLocal) == 0
}

// Inconsistency is the push-only fatal condition: the local file carries
// ids the remote listing does not know. Push is one-way and must not guess
// whether those cards were deleted remotely or the file is stale; sync is
// the operation that resolves remote deletions.
type Inconsistency struct {
	Orphans []card.Card
}

func (e *Inconsistency) Error() string {
	ids := make([]string, len(e.Orphans))
	for i, c := range e.Orphans {
		ids[i] = c.ID
	}
	return fmt.Sprintf("%d local card(s) not found remotely (%s); use sync to reconcile remote deletions",
		len(e.Orphans), strings.Join(ids, ", "))
}

type remoteIndex struct {
	byID   map[string]card.Card
	byHash map[string]string
	order  []card.Card
}

func indexRemote(remote []card.Card) remoteIndex {
	idx := remoteIndex{
		byID:   make(map[string]card.Card, len(remote)),
		byHash: make(map[string]string, len(remote)),
		order:  remote,
	}
	for _, rc := range remote {
		idx.byID[rc.ID] = rc
		idx.byHash[rc.Hash()] = rc.ID
	}
	return idx
}

// BuildPush computes the one-way plan that makes remote state match the
// local file. A local card with an id that does not exist remotely is a
// fatal Inconsistency. Id-less local cards whose content hash matches an
// existing remote card become duplicate candidates and are excluded from
// creation unless force is set. Pushing an already-synced state yields an
// empty plan.
func BuildPush(local, remote []card.Card, force bool) (Plan, error) {
	idx := indexRemote(remote)

	var plan Plan
	var orphans []card.Card

	for _, lc := range local {
		if lc.ID == "" {
			if remoteID, ok := idx.byHash[lc.Hash()]; ok && !force {
				plan.Duplicates = append(plan.Duplicates, Duplicate{Card: lc, RemoteID: remoteID})
			} else {
				plan.ToCreate = append(plan.ToCreate, lc)
			}
			continue
		}

		rc, ok := idx.byID[lc.ID]
		if !ok {
			orphans = append(orphans, lc)
			continue
		}
		if lc.Hash() != rc.Hash() {
			plan.ToUpdate = append(plan.ToUpdate, lc)
		}
	}

	if len(orphans) > 0 {
		return Plan{}, &Inconsistency{Orphans: orphans}
	}

	plan.ToDeleteRemote = remoteDeletions(local, idx)
	return plan, nil
}

// BuildSync computes the bidirectional plan. Create/update/delete-remote
// logic is identical to BuildPush, but a local card whose id is missing
// remotely is read as a remote-side deletion and scheduled for local
// removal instead of failing.
func BuildSync(local, remote []card.Card, force bool) Plan {
	idx := indexRemote(remote)

	var plan Plan

	for _, lc := range local {
		if lc.ID == "" {
			if remoteID, ok := idx.byHash[lc.Hash()]; ok && !force {
				plan.Duplicates = append(plan.Duplicates, Duplicate{Card: lc, RemoteID: remoteID})
			} else {
				plan.ToCreate = append(plan.ToCreate, lc)
			}
			continue
		}

		rc, ok := idx.byID[lc.ID]
		if !ok {
			plan.ToDeleteLocal = append(plan.ToDeleteLocal, lc)
			continue
		}
		if lc.Hash() != rc.Hash() {
			plan.ToUpdate = append(plan.ToUpdate, lc)
		}
	}

	plan.ToDeleteRemote = remoteDeletions(local, idx)
	return plan
}

// remoteDeletions lists remote ids absent from the local file, in remote
// listing order so plans are deterministic.
func remoteDeletions(local []card.Card, idx remoteIndex) []string {
	localIDs := make(map[string]struct{}, len(local))
	for _, lc := range local {
		if lc.ID != "" {
			localIDs[lc.ID] = struct{}{}
		}
	}

	var deletions []string
	for _, rc := range idx.order {
		if _, ok := localIDs[rc.ID]; !ok {
			deletions = append(deletions, rc.ID)
		}
	}
	return deletions
}
