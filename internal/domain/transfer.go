package domain

// TransferIntent drives one gift between two users. The fee is added to
// the sender's debit and retained; it is never credited anywhere here.
type TransferIntent struct {
	FromUser    string `json:"from_user" binding:"required"`
	ToUser      string `json:"to_user" binding:"required"`
	GrossAmount int64  `json:"gross_amount" binding:"required"`
	FeeAmount   int64  `json:"fee_amount"`
}

// TotalDebit is the full amount taken from the sender.
func (t TransferIntent) TotalDebit() int64 {
	return t.GrossAmount + t.FeeAmount
}

// TransferReceipt reports the balances after a completed gift.
type TransferReceipt struct {
	FromUser         string `json:"from_user"`
	ToUser           string `json:"to_user"`
	GrossAmount      int64  `json:"gross_amount"`
	FeeAmount        int64  `json:"fee_amount"`
	SenderBalance    int64  `json:"sender_balance"`
	RecipientBalance int64  `json:"recipient_balance"`
}
