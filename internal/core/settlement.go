package core

import "math"

// SettledTolerance is the absolute band around zero inside which a
// participant's due is reported as settled. It absorbs floating-point and
// display rounding noise and is independent of the currency unit.
const SettledTolerance = 0.1

type (
	// ParticipantStatus is one row of the settlement report.
	ParticipantStatus struct {
		Participant Participant
		// Due is signed: positive means the participant owes money,
		// negative means a refund is owed to them.
		Due     float64
		Settled bool
	}

	// Summary holds every aggregate derived from a room snapshot.
	Summary struct {
		TotalExpenses  float64
		TotalCollected float64
		TotalCash      float64
		TotalOnline    float64
		TotalHeadCount int
		CostPerHead    float64
		NetBalance     float64
		Statuses       []ParticipantStatus
	}
)

// Compute derives the full settlement summary from a snapshot. It is pure:
// identical snapshots always yield identical summaries, and it never writes.
func Compute(snap Snapshot) Summary {
	var sum Summary

	for _, e := range snap.Expenses {
		sum.TotalExpenses += SanitizeAmount(e.Amount)
	}

	for _, p := range snap.Participants {
		paid := SanitizeAmount(p.AmountPaid)
		sum.TotalCollected += paid
		switch p.Mode {
		case ModeCash:
			sum.TotalCash += paid
		default:
			sum.TotalOnline += paid
		}
		sum.TotalHeadCount += p.Heads()
	}

	sum.CostPerHead = costPerHead(snap.Settings, sum.TotalExpenses, sum.TotalHeadCount)
	sum.NetBalance = sum.TotalCollected - sum.TotalExpenses

	sum.Statuses = make([]ParticipantStatus, 0, len(snap.Participants))
	for _, p := range snap.Participants {
		due := sum.CostPerHead*float64(p.Heads()) - SanitizeAmount(p.AmountPaid)
		sum.Statuses = append(sum.Statuses, ParticipantStatus{
			Participant: p,
			Due:         due,
			Settled:     math.Abs(due) < SettledTolerance,
		})
	}

	return sum
}

func costPerHead(s Settings, totalExpenses float64, totalHeads int) float64 {
	if s.Mode == SettlementFixed {
		return SanitizeAmount(s.FixedRate)
	}
	if totalHeads == 0 {
		return 0
	}
	// Real division; rounding is a display concern.
	return totalExpenses / float64(totalHeads)
}
