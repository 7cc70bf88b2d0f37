// Package share renders a room's settlement state as a plain-text report
// suitable for messaging apps and share sheets.
package share

import (
	"fmt"
	"strings"

	"splitroom/internal/core"
)

// ErrNothingToShare means the room has no expenses and no participants yet.
var ErrNothingToShare = fmt.Errorf("nothing to share yet")

// SummaryText renders the report for one room. The room id doubles as the
// report title. Amounts are printed with two decimals; due and refund lines
// round to whole units the way people quote them in chat.
func SummaryText(snap core.Snapshot, sum core.Summary) (string, error) {
	if len(snap.Expenses) == 0 && len(snap.Participants) == 0 {
		return "", ErrNothingToShare
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*%s summary*\n\n", snap.RoomID)
	fmt.Fprintf(&b, "*Total expense: %.2f*\n\n", sum.TotalExpenses)

	b.WriteString("*Expense details:*\n")
	if len(snap.Expenses) == 0 {
		b.WriteString("No expenses added.\n")
	} else {
		for _, e := range snap.Expenses {
			fmt.Fprintf(&b, "- %s: %.2f\n", e.Description, e.Amount)
		}
	}

	b.WriteString("\n------------------\n\n")
	fmt.Fprintf(&b, "Cost per head: %.2f\n", sum.CostPerHead)
	fmt.Fprintf(&b, "Total heads: %d\n\n", sum.TotalHeadCount)

	b.WriteString("*Participant status:*\n")
	for i, st := range sum.Statuses {
		heads := ""
		if st.Participant.Heads() > 1 {
			heads = fmt.Sprintf(" (%d ppl)", st.Participant.Heads())
		}
		fmt.Fprintf(&b, "%d. %s%s: paid %.2f (%s)\n",
			i+1, st.Participant.Name, heads, st.Participant.AmountPaid, statusLabel(st))
	}

	sign := ""
	if sum.NetBalance >= 0 {
		sign = "+"
	}
	fmt.Fprintf(&b, "\n*Net balance:* %s%.2f\n", sign, sum.NetBalance)
	return b.String(), nil
}

func statusLabel(st core.ParticipantStatus) string {
	switch {
	case st.Settled:
		return "settled"
	case st.Due > 0:
		return fmt.Sprintf("due %.0f", st.Due)
	default:
		return fmt.Sprintf("refund %.0f", -st.Due)
	}
}
