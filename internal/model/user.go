package model

import "time"

// User is a wallet registered with the portal.
type User struct {
	WalletAddress string    `json:"wallet_address"`
	CreatedAt     time.Time `json:"created_at"`
}

// MintRecord is one faucet dispensation.
type MintRecord struct {
	WalletAddress string    `json:"wallet_address"`
	Symbol        string    `json:"symbol"`
	Token         string    `json:"token"`
	Amount        string    `json:"amount"`
	TxHash        string    `json:"tx_hash"`
	BlockNumber   uint64    `json:"block_number"`
	MintedAt      time.Time `json:"minted_at"`
}
