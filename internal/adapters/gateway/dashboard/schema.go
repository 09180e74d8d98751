package dashboard

import (
	"fmt"

	"github.com/bnema/senderwatch/internal/domain"
)

// The dashboard returns each account as a positional array, not an object.
// These indexes mirror the column order of its sender table.
const (
	colID = iota
	colImage
	colSender
	colStart
	colLastUpdate
	colTaken
	colStatus
	colAvailable
	colPassword
	colBackupCodes
	colGroup
	colGroupNameID
	colTake
	colKeep
)

type batchResponse struct {
	Data [][]any `json:"data"`
}

// decodeRow turns one positional row into a record. Rows shorter than the
// sender column are junk and are dropped by the caller; missing trailing
// cells just leave fields empty.
func decodeRow(row []any) (domain.AccountRecord, bool) {
	if len(row) <= colSender {
		return domain.AccountRecord{}, false
	}

	cell := func(idx int) string {
		if idx >= len(row) || row[idx] == nil {
			return ""
		}
		switch v := row[idx].(type) {
		case string:
			return v
		case float64:
			if v == float64(int64(v)) {
				return fmt.Sprintf("%d", int64(v))
			}
			return fmt.Sprintf("%v", v)
		default:
			return fmt.Sprintf("%v", v)
		}
	}

	return domain.AccountRecord{
		ID:          domain.AccountID(cell(colID)),
		Image:       cell(colImage),
		Sender:      cell(colSender),
		Start:       cell(colStart),
		LastUpdate:  cell(colLastUpdate),
		Taken:       cell(colTaken),
		Status:      cell(colStatus),
		Available:   cell(colAvailable),
		Password:    cell(colPassword),
		BackupCodes: cell(colBackupCodes),
		Group:       cell(colGroup),
		GroupNameID: cell(colGroupNameID),
		Take:        cell(colTake),
		Keep:        cell(colKeep),
	}, true
}
