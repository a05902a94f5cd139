package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/meridianvc/dealflow-backend/internal/types"
)

// renderThesisContext flattens an Investment Thesis into weighted free text
// for prompt injection. Stored JSON that fails to decode is skipped; the
// render is best-effort and never errors.
func renderThesisContext(thesis *types.InvestmentThesis) string {
	if thesis == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Investment thesis %q (v%d):\n", thesis.Name, thesis.Version)

	if s := strings.TrimSpace(thesis.Philosophy); s != "" {
		fmt.Fprintf(&b, "Philosophy: %s\n", s)
	}
	if s := strings.TrimSpace(thesis.ValueProposition); s != "" {
		fmt.Fprintf(&b, "Value proposition: %s\n", s)
	}
	if s := strings.TrimSpace(thesis.RiskAppetite); s != "" {
		fmt.Fprintf(&b, "Risk appetite: %s\n", s)
	}

	if prefs := decodeWeighted(thesis.Verticals); len(prefs) > 0 {
		b.WriteString("Preferred verticals: " + joinWeighted(prefs) + "\n")
	}
	if stages := decodeStages(thesis.Stages); len(stages) > 0 {
		var parts []string
		for _, st := range stages {
			p := fmt.Sprintf("%s (weight %.2f", st.Stage, st.Weight)
			if st.TicketMax > 0 {
				p += fmt.Sprintf(", ticket %s-%s", compactAmount(st.TicketMin), compactAmount(st.TicketMax))
			}
			parts = append(parts, p+")")
		}
		b.WriteString("Preferred stages: " + strings.Join(parts, ", ") + "\n")
	}
	if prefs := decodeWeighted(thesis.Regions); len(prefs) > 0 {
		b.WriteString("Preferred regions: " + joinWeighted(prefs) + "\n")
	}

	if nodes := decodeCriteria(thesis.Criteria); len(nodes) > 0 {
		b.WriteString("Evaluation criteria:\n")
		writeCriteria(&b, nodes, 1)
	}

	if items := decodeStrings(thesis.RedFlags); len(items) > 0 {
		b.WriteString("Red flags: " + strings.Join(items, "; ") + "\n")
	}
	if items := decodeStrings(thesis.MustHaves); len(items) > 0 {
		b.WriteString("Must-haves: " + strings.Join(items, "; ") + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeCriteria(b *strings.Builder, nodes []types.CriteriaNode, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, n := range nodes {
		label := n.Label
		if label == "" {
			label = n.Key
		}
		fmt.Fprintf(b, "%s- %s (weight %.2f)\n", indent, label, n.Weight)
		if len(n.SubCriteria) > 0 && depth < 3 {
			writeCriteria(b, n.SubCriteria, depth+1)
		}
	}
}

func joinWeighted(prefs []types.WeightedPreference) string {
	var parts []string
	for _, p := range prefs {
		parts = append(parts, fmt.Sprintf("%s (weight %.2f)", p.Name, p.Weight))
	}
	return strings.Join(parts, ", ")
}

func decodeWeighted(raw []byte) []types.WeightedPreference {
	var out []types.WeightedPreference
	if len(raw) == 0 || json.Unmarshal(raw, &out) != nil {
		return nil
	}
	return out
}

func decodeStages(raw []byte) []types.StagePreference {
	var out []types.StagePreference
	if len(raw) == 0 || json.Unmarshal(raw, &out) != nil {
		return nil
	}
	return out
}

func decodeCriteria(raw []byte) []types.CriteriaNode {
	var out []types.CriteriaNode
	if len(raw) == 0 || json.Unmarshal(raw, &out) != nil {
		return nil
	}
	return out
}

func decodeStrings(raw []byte) []string {
	var out []string
	if len(raw) == 0 || json.Unmarshal(raw, &out) != nil {
		return nil
	}
	return out
}

func compactAmount(v float64) string {
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("$%.3gM", v/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("$%.3gK", v/1_000)
	default:
		return fmt.Sprintf("$%.0f", v)
	}
}
