package reconcile

import "github.com/kalambet/mochi/internal/card"

// Conflict records a card where both sides diverged from the base. The
// local edit always wins; the conflict is informational, never blocking.
// RemoteDeleted marks the delete/modify case: the card vanished remotely
// while the local copy was edited, so the local copy is kept.
type Conflict struct {
	ID            string
	Local         card.Card
	Remote        card.Card
	RemoteDeleted bool
}

// MergeResult is the outcome of a three-way merge pull. Cards is the new
// local file content; the counters summarize what happened for reporting.
type MergeResult struct {
	Cards     []card.Card
	Conflicts []Conflict
	Added     int // new remote cards appended to the file
	Updated   int // clean remote edits accepted
	Removed   int // cards dropped locally (deleted remotely, unchanged here)
	Deletions int // remote cards not re-added (deleted locally since base)
}

// Merge reconciles the edited local file with fresh remote state using the
// base snapshot from the previous sync as the common ancestor. Per id:
//
//   - changed on both sides → conflict, local wins, reported
//   - changed locally only → local kept
//   - changed remotely only (or unchanged) → remote accepted
//   - in base and remote but not local → deleted locally, stays deleted
//   - in base and local but not remote → deleted remotely; the deletion is
//     honored unless the local copy was edited since base (kept, reported)
//   - id-less local cards are always carried through untouched
//
// Cards with an id the base never saw fall back to content comparison:
// equal hashes merge cleanly, diverging ones are conflicts with local kept.
// Surviving local cards keep their file order; new remote cards append in
// listing order. The caller persists the fresh remote snapshot as the new
// base after writing the merged file.
func Merge(local, remote, base []card.Card) MergeResult {
	remoteByID := indexByID(remote)
	baseByID := indexByID(base)

	localIDs := make(map[string]struct{}, len(local))
	for _, lc := range local {
		if lc.ID != "" {
			localIDs[lc.ID] = struct{}{}
		}
	}

	var res MergeResult

	for _, lc := range local {
		if lc.ID == "" {
			res.Cards = append(res.Cards, lc)
			continue
		}

		rc, inRemote := remoteByID[lc.ID]
		bc, inBase := baseByID[lc.ID]

		switch {
		case inRemote && inBase:
			localChanged := lc.Hash() != bc.Hash()
			remoteChanged := rc.Hash() != bc.Hash()
			switch {
			case localChanged && remoteChanged:
				if lc.Hash() == rc.Hash() {
					// Convergent edits merge cleanly.
					res.Cards = append(res.Cards, lc)
					continue
				}
				res.Conflicts = append(res.Conflicts, Conflict{ID: lc.ID, Local: lc, Remote: rc})
				res.Cards = append(res.Cards, lc)
			case localChanged:
				res.Cards = append(res.Cards, lc)
			case remoteChanged:
				res.Cards = append(res.Cards, rc)
				res.Updated++
			default:
				res.Cards = append(res.Cards, rc)
			}

		case inRemote:
			// The base never saw this id; only content can arbitrate.
			if lc.Hash() == rc.Hash() {
				res.Cards = append(res.Cards, lc)
				continue
			}
			res.Conflicts = append(res.Conflicts, Conflict{ID: lc.ID, Local: lc, Remote: rc})
			res.Cards = append(res.Cards, lc)

		case inBase:
			// Deleted remotely since the base snapshot.
			if lc.Hash() != bc.Hash() {
				res.Conflicts = append(res.Conflicts, Conflict{ID: lc.ID, Local: lc, RemoteDeleted: true})
				res.Cards = append(res.Cards, lc)
				continue
			}
			res.Removed++

		default:
			// Unknown everywhere else; a pull must not lose data. Push or
			// sync will surface the stale id.
			res.Cards = append(res.Cards, lc)
		}
	}

	for _, rc := range remote {
		if _, ok := localIDs[rc.ID]; ok {
			continue
		}
		if _, ok := baseByID[rc.ID]; ok {
			res.Deletions++
			continue
		}
		res.Cards = append(res.Cards, rc)
		res.Added++
	}

	return res
}

func indexByID(cards []card.Card) map[string]card.Card {
	m := make(map[string]card.Card, len(cards))
	for _, c := range cards {
		if c.ID != "" {
			m[c.ID] = c
		}
	}
	return m
}
