package notify

import (
	"fmt"

	"github.com/alanyoungcy/curvemarket/internal/domain"
)

// Describe renders a ledger event as a notification title and body.
// Amounts are shown in CSPR.
func Describe(ev domain.Event) (title, message string) {
	switch e := ev.(type) {
	case domain.MarketResolved:
		return fmt.Sprintf("Market %d resolved", e.MarketID),
			fmt.Sprintf("Winning outcome %d (resolver %s)\nProof: %s", e.WinningOutcome, e.Resolver.Hex(), e.Proof)
	case domain.MarketCancelled:
		return fmt.Sprintf("Market %d cancelled", e.MarketID), "Reason: " + e.Reason
	case domain.MarketClosed:
		return fmt.Sprintf("Market %d closed", e.MarketID), "Trading has stopped; awaiting resolution."
	case domain.SharesPurchased:
		return fmt.Sprintf("Market %d buy", e.MarketID),
			fmt.Sprintf("%s bought %s shares of outcome %d for %s CSPR", e.User.Hex(), e.Shares.Dec(), e.OutcomeID, domain.FormatCSPR(e.Cost))
	case domain.SharesSold:
		return fmt.Sprintf("Market %d sell", e.MarketID),
			fmt.Sprintf("%s sold %s shares of outcome %d for %s CSPR", e.User.Hex(), e.Shares.Dec(), e.OutcomeID, domain.FormatCSPR(e.Revenue))
	case domain.WinningsClaimed:
		return fmt.Sprintf("Market %d payout", e.MarketID),
			fmt.Sprintf("%s claimed %s CSPR", e.User.Hex(), domain.FormatCSPR(e.Payout))
	case domain.RefundClaimed:
		return fmt.Sprintf("Market %d refund", e.MarketID),
			fmt.Sprintf("%s refunded %s CSPR", e.User.Hex(), domain.FormatCSPR(e.Amount))
	case domain.VaultPauseStatusChanged:
		if e.Paused {
			return "Vault paused", "Deposits, withdrawals and fee claims are halted."
		}
		return "Vault unpaused", "Normal operation resumed."
	case domain.AdminTransferred:
		return "Vault admin changed", fmt.Sprintf("%s -> %s", e.PreviousAdmin.Hex(), e.NewAdmin.Hex())
	case domain.FeesClaimed:
		return "Platform fees claimed", fmt.Sprintf("%s CSPR to %s", domain.FormatCSPR(e.Amount), e.Recipient.Hex())
	}
	return ev.EventName(), fmt.Sprintf("%+v", ev)
}
