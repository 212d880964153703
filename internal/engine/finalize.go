package engine

import (
	"sort"

	"github.com/deltran/settlement-core/internal/core"
	"github.com/deltran/settlement-core/internal/decimal"
	"github.com/deltran/settlement-core/internal/merkle"
	"github.com/deltran/settlement-core/internal/netting"
	"github.com/deltran/settlement-core/internal/twopc"
)

// runNetting executes internal/netting for one currency's obligations,
// applying the §4.4 admission thresholds to decide whether cycle
// elimination runs, and translates the package-local
// netting.NetTransferOutput into core.NetTransfer.
func (s *Service) runNetting(currency string, obligations []core.Obligation) ([]core.NetTransfer, netting.Stats) {
	inputs := make([]netting.ObligationInput, len(obligations))
	var gross decimal.Decimal = decimal.Zero()
	for i, o := range obligations {
		inputs[i] = netting.ObligationInput{PaymentID: o.PaymentID, PayerBIC: o.PayerBIC, PayeeBIC: o.PayeeBIC, Amount: o.Amount}
		gross = gross.Add(o.Amount)
	}

	participants := distinctBanks(obligations)
	skip := !s.thresholds.MeetsThresholds(gross.Float64(), participants)

	result := netting.Run(currency, inputs, skip)

	out := make([]core.NetTransfer, len(result.NetTransfers))
	for i, nt := range result.NetTransfers {
		out[i] = core.NetTransfer{
			NetTransferID:    result.Currency + ":" + nt.PayerBIC + ":" + nt.PayeeBIC,
			Currency:         currency,
			PayerBIC:         nt.PayerBIC,
			PayeeBIC:         nt.PayeeBIC,
			Amount:           nt.Amount,
			ComponentID:      nt.ComponentID,
			SourcePaymentIDs: nt.SourcePaymentIDs,
		}
	}
	return out, result.Stats
}

func distinctBanks(obligations []core.Obligation) int {
	seen := make(map[string]bool)
	for _, o := range obligations {
		seen[o.PayerBIC] = true
		seen[o.PayeeBIC] = true
	}
	return len(seen)
}

func zeroBatchTotals() (gross, net, cycleEliminated decimal.Decimal) {
	return decimal.Zero(), decimal.Zero(), decimal.Zero()
}

func efficiencyOf(gross, net decimal.Decimal) float64 {
	if gross.IsZero() {
		return 0
	}
	return 1 - net.Float64()/gross.Float64()
}

// groupByComponent partitions net transfers by their netting-assigned
// component_id, the unit 2PC finalizes independently and concurrently.
func groupByComponent(transfers []core.NetTransfer) map[string][]core.NetTransfer {
	out := make(map[string][]core.NetTransfer)
	for _, t := range transfers {
		out[t.ComponentID] = append(out[t.ComponentID], t)
	}
	return out
}

func collectCommitted(outcomes []twopc.Outcome) []core.NetTransfer {
	var out []core.NetTransfer
	for _, o := range outcomes {
		out = append(out, o.Committed...)
	}
	return out
}

// leavesFromPayments builds the checkpoint's Merkle leaves, one per
// committed payment: each leaf is keyed by a source payment_id and
// carries the canonical hash of the net transfer that payment belongs to,
// so all payments of one net transfer share the same leaf hash.
func leavesFromPayments(transfers []core.NetTransfer) []merkle.Leaf {
	var leaves []merkle.Leaf
	for _, t := range transfers {
		h := t.CanonicalHash()
		ids := append([]string(nil), t.SourcePaymentIDs...)
		sort.Strings(ids)
		for _, pid := range ids {
			leaves = append(leaves, merkle.Leaf{PaymentID: pid, Hash: h})
		}
	}
	return leaves
}
