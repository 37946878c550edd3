package session

import "github.com/Seednode/partyclient/protocol"

// mergeRoster reconciles an authoritative roster snapshot with the
// records held locally. Records are matched by id only. Authoritative
// fields are layered over the existing record, so everything the server
// does not send (video frame, submission flag, camera flag, position,
// score) survives. Players missing from the snapshot have left and are
// dropped, except the local player, who is never removed by a snapshot.
func mergeRoster(existing []Player, entries []protocol.RosterEntry, localID string) []Player {
	byID := make(map[string]Player, len(existing))
	for _, p := range existing {
		byID[p.ID] = p
	}

	out := make([]Player, 0, len(entries)+1)
	seen := make(map[string]bool, len(entries))

	for _, e := range entries {
		if e.ID == "" || seen[e.ID] {
			continue
		}
		seen[e.ID] = true

		p, ok := byID[e.ID]
		if !ok {
			p = Player{ID: e.ID}
		}

		if e.Username != "" {
			p.Name = e.Username
		}
		p.IsRoomLeader = e.IsLeader
		if e.CameraEnabled != nil {
			p.CameraEnabled = *e.CameraEnabled
		}
		if e.HasSubmitted != nil {
			p.HasSubmittedThisRound = *e.HasSubmitted
		}

		out = append(out, p)
	}

	if localID != "" && !seen[localID] {
		if p, ok := byID[localID]; ok {
			out = append(out, p)
		}
	}

	return out
}

// resolveLocal marks exactly the record whose id is the local id. Until
// identity is known no record is local.
func resolveLocal(roster []Player, localID string) []Player {
	for i := range roster {
		roster[i].IsLocal = localID != "" && roster[i].ID == localID
	}
	return roster
}
