package status

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bnema/starknet-wallet-bridge/internal/application"
	"github.com/bnema/starknet-wallet-bridge/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

type RenderOptions struct {
	Now        time.Time
	StaleAfter time.Duration
	// FullAddress disables 0x1234…abcd shortening.
	FullAddress bool
}

func renderSessions(sessions []application.SessionView, opts RenderOptions, s styles) string {
	connected := 0
	for _, session := range sessions {
		if session.State == domain.StateConnected {
			connected++
		}
	}

	lines := []string{
		s.title.Render("Starknet Wallets"),
		s.header.Render(fmt.Sprintf("wallets: %d, connected: %d", len(sessions), connected)),
	}

	if len(sessions) == 0 {
		lines = append(lines, s.empty.Render("No wallet sessions. Run `swb connect <wallet>` to start one."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, session := range sessions {
		lines = append(lines, s.section.Render(renderSession(session, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderSession(session application.SessionView, opts RenderOptions, s styles) string {
	title := s.wallet.Render(fmt.Sprintf("%s (%s)", session.Name, session.Kind))
	if session.Active {
		title = lipgloss.JoinHorizontal(lipgloss.Top, title, " ", s.active.Render("[active]"))
	}

	parts := []string{
		title,
		field("state:", stateStyle(session.State, s).Render(string(session.State)), s),
	}
	if session.Method != "" {
		parts = append(parts, field("method:", s.detail.Render(string(session.Method)), s))
	}
	if session.Address != "" {
		parts = append(parts, field("address:", s.detail.Render(formatAddress(session.Address, opts)), s))
		parts = append(parts, field("signing:", s.detail.Render(signingLabel(session.CanSign)), s))
	}
	if session.State == domain.StateConnected && !session.ConnectedAt.IsZero() {
		parts = append(parts, field("since:", s.meta.Render(formatRelative(session.ConnectedAt, opts.Now)), s))
	}
	if session.FailureReason != "" {
		parts = append(parts, field("reason:", s.warning.Render(session.FailureReason), s))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func renderBalances(balances application.BalancesView, opts RenderOptions, s styles) string {
	wallet := s.amount.Render(domain.FormatAmount(balances.WalletBalance) + " STRK")
	vault := s.amount.Render(domain.FormatAmount(balances.VaultBalance) + " STRK")

	lines := []string{
		s.title.Render("Balances"),
		s.header.Render(formatAddress(balances.Address, opts)),
		field("wallet:", wallet, s),
		field("vault: ", vault, s),
	}

	if !balances.FetchedAt.IsZero() {
		fetched := s.meta.Render("fetched " + formatRelative(balances.FetchedAt, opts.Now))
		if isStale(balances.FetchedAt, opts) {
			fetched += " " + s.warning.Render("[stale]")
		}
		lines = append(lines, fetched)
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderResult(result domain.VaultResult, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render(fmt.Sprintf("%s %s STRK", titleCase(string(result.Operation)), domain.FormatAmount(result.Amount))),
	}
	if result.Approved {
		lines = append(lines, s.meta.Render("vault allowance was raised first"))
	}
	for _, call := range result.Calls {
		status := stateStyleForTx(call.Status, s).Render(string(call.Status))
		lines = append(lines, field(string(call.Kind)+":", fmt.Sprintf("%s %s", s.detail.Render(call.SubmittedTxHash), status), s))
	}
	if result.Balances.Address != "" {
		lines = append(lines, s.section.Render(renderBalances(application.BalancesView{
			Address:       result.Balances.Address,
			WalletBalance: result.Balances.WalletBalance,
			VaultBalance:  result.Balances.VaultBalance,
			FetchedAt:     result.Balances.FetchedAt,
		}, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func field(label, value string, s styles) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, s.key.Render(label), " ", value)
}

func stateStyle(state domain.SessionState, s styles) lipgloss.Style {
	switch state {
	case domain.StateConnected:
		return s.connected
	case domain.StateAwaitingWalletOpen, domain.StateAwaitingCallback:
		return s.pending
	case domain.StateFailed:
		return s.failed
	default:
		return s.meta
	}
}

func stateStyleForTx(status domain.TxStatus, s styles) lipgloss.Style {
	switch status {
	case domain.TxStatusSucceeded:
		return s.connected
	case domain.TxStatusReverted, domain.TxStatusRejected:
		return s.failed
	default:
		return s.pending
	}
}

func signingLabel(canSign bool) string {
	if canSign {
		return "yes"
	}
	return "read-only"
}

func formatAddress(address string, opts RenderOptions) string {
	if opts.FullAddress || len(address) <= 14 {
		return address
	}
	return address[:6] + "…" + address[len(address)-4:]
}

func isStale(at time.Time, opts RenderOptions) bool {
	if opts.Now.IsZero() || opts.StaleAfter <= 0 {
		return false
	}
	return opts.Now.Sub(at) > opts.StaleAfter
}

func formatRelative(at, now time.Time) string {
	if now.IsZero() {
		return at.Format(time.RFC3339)
	}

	elapsed := now.Sub(at)
	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return plural(int(math.Floor(elapsed.Minutes())), "minute") + " ago"
	case elapsed < 24*time.Hour:
		return plural(int(math.Floor(elapsed.Hours())), "hour") + " ago"
	default:
		return plural(int(math.Floor(elapsed.Hours()/24)), "day") + " ago"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func titleCase(word string) string {
	if word == "" {
		return word
	}
	return strings.ToUpper(word[:1]) + word[1:]
}
