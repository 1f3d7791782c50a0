package engine

import (
	"encoding/json"
	"fmt"

	"github.com/Klingon-tech/klingnet-staking/internal/staking"
	"github.com/Klingon-tech/klingnet-staking/pkg/types"
)

// EventRecord is a program event as stored in a receipt.
type EventRecord struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

// Receipt records a committed instruction.
type Receipt struct {
	ID     types.Hash    `json:"id"`
	Kind   Kind          `json:"kind"`
	Signer types.Address `json:"signer"`
	Time   uint64        `json:"time"`
	Events []EventRecord `json:"events"`
}

func newEventRecords(events []staking.Event) ([]EventRecord, error) {
	records := make([]EventRecord, 0, len(events))
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("encode %s event: %w", ev.EventName(), err)
		}
		records = append(records, EventRecord{Name: ev.EventName(), Data: data})
	}
	return records, nil
}
