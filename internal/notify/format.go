package notify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alanyoungcy/vaultbot/internal/domain"
)

// Format renders an engine event as a notification title and body.
func Format(ev domain.Event) (title, message string) {
	ts := ev.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC")

	switch p := ev.Payload.(type) {
	case domain.VaultSweep:
		return "Vault secured", fmt.Sprintf("$%.2f locked (%s)\n%s", p.Amount, p.Note, ts)
	case domain.TradeRecord:
		outcome := "LOST"
		if p.Result == domain.TradeResultWin {
			outcome = "WON"
		}
		return "Contract " + outcome, fmt.Sprintf("#%d %s %s | P/L: %+.2f\n%s",
			p.ContractID, p.Instrument, p.Direction, p.Profit, ts)
	case domain.LogEntry:
		return "Activity: " + string(p.Severity), p.Message + "\n" + ts
	case error:
		return titleFor(ev.Kind), p.Error() + "\n" + ts
	case map[string]any:
		return titleFor(ev.Kind), formatFields(p) + "\n" + ts
	default:
		return titleFor(ev.Kind), ts
	}
}

func titleFor(kind domain.EventKind) string {
	switch kind {
	case domain.EventPanic:
		return "PANIC close executed"
	case domain.EventAuthFailed:
		return "Authorization failed"
	case domain.EventDisconnected:
		return "Broker connection lost"
	case domain.EventPhase:
		return "Engine status"
	default:
		return string(kind)
	}
}

// formatFields renders a payload map as sorted "key: value" lines.
func formatFields(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %v", k, m[k]))
	}
	return strings.Join(lines, "\n")
}
