package storage

import "dexPortal/internal/model"

// TxSink receives settled transaction steps.
type TxSink interface {
	PutTxRecords(records []model.TxRecord) error
}
