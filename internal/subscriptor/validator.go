package subscriptor

import (
	"fmt"

	"github.com/subvia/subscriptor/internal/models"
)

// ValidateTick verifies the structural correctness of a submitted tick
// against the known subscription context before it is accepted as a
// future commitment. Checks run in order and fail fast on the first
// violation. Pure validation: cryptographic signatures and double
// submission are the ledger's job.
func ValidateTick(tick *models.SubscriptionTick, wallet, burnAddress models.Address, price int64) error {
	if tick.TransferToSub.To != wallet {
		return &models.ValidationError{
			Kind:     models.RecipientMismatch,
			Field:    "transferToSub.to",
			Expected: wallet.Hex(),
			Got:      tick.TransferToSub.To.Hex(),
		}
	}

	if tick.BurnTx.From != wallet {
		return &models.ValidationError{
			Kind:     models.BurnSenderMismatch,
			Field:    "burnTx.from",
			Expected: wallet.Hex(),
			Got:      tick.BurnTx.From.Hex(),
		}
	}

	if tick.BurnTx.To != burnAddress {
		return &models.ValidationError{
			Kind:     models.BurnRecipientMismatch,
			Field:    "burnTx.to",
			Expected: burnAddress.Hex(),
			Got:      tick.BurnTx.To.Hex(),
		}
	}

	if tick.TransferToSub.Amount != price {
		return &models.ValidationError{
			Kind:     models.AmountMismatch,
			Field:    "transferToSub.amount",
			Expected: fmt.Sprint(price),
			Got:      fmt.Sprint(tick.TransferToSub.Amount),
		}
	}

	if tick.BurnTx.Amount != price {
		return &models.ValidationError{
			Kind:     models.AmountMismatch,
			Field:    "burnTx.amount",
			Expected: fmt.Sprint(price),
			Got:      fmt.Sprint(tick.BurnTx.Amount),
		}
	}

	// Nonce adjacency is the sole proof that the two halves belong
	// together: the burn must be the wallet's immediate next action
	// after receiving the transfer.
	if tick.BurnTx.Nonce != tick.TransferToSub.ToNonce+1 {
		return &models.ValidationError{
			Kind:     models.NonceMismatch,
			Field:    "burnTx.nonce",
			Expected: fmt.Sprint(tick.TransferToSub.ToNonce + 1),
			Got:      fmt.Sprint(tick.BurnTx.Nonce),
		}
	}

	return nil
}
