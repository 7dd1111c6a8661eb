package model

import "encoding/json"

// TxRecord is one settled step of a multi-transaction flow.
type TxRecord struct {
	Flow        string `json:"flow"`
	Step        string `json:"step"`
	From        string `json:"from"`
	To          string `json:"to"`
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number,omitempty"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	RecordedAt  string `json:"recorded_at"`
}

// MarshalJSON ensures TxRecord is encoded with stable field names.
func (r TxRecord) MarshalJSON() ([]byte, error) {
	type Alias TxRecord
	return json.Marshal(Alias(r))
}

// UnmarshalJSON decodes a TxRecord from JSON.
func (r *TxRecord) UnmarshalJSON(data []byte) error {
	type Alias TxRecord
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = TxRecord(a)
	return nil
}
