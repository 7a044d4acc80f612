package requests

import (
	"fmt"

	"github.com/tarancss/airnode/lib/logger"
)

// BuildRequests materializes one record per creation event. Every request starts Pending; for short and regular
// requests the fulfillment-side fields stay unset until template application.
func BuildRequests(batch EventBatch) ([]logger.Log, Grouped) {
	var pending []logger.Log

	grouped := Grouped{
		APICalls:    make([]APICall, 0, len(batch.Created)),
		Withdrawals: make([]Withdrawal, 0, len(batch.WithdrawalsRequested)),
	}

	for _, ev := range batch.Created {
		call := APICall{
			ID:                ev.RequestID,
			Type:              ev.Type,
			Status:            StatusPending,
			ProviderID:        ev.ProviderID,
			RequesterIndex:    ev.RequesterIndex,
			ClientAddress:     ev.ClientAddress,
			DesignatedWallet:  ev.DesignatedWallet,
			FulfillAddress:    ev.FulfillAddress,
			FulfillFunctionID: ev.FulfillFunctionID,
			EndpointID:        ev.EndpointID,
			TemplateID:        ev.TemplateID,
			EncodedParameters: ev.Parameters,
			RequestCount:      ev.RequestCount,
			Metadata:          ev.Metadata,
		}

		pending = append(pending, logger.Pend(logger.DEBUG,
			fmt.Sprintf("Building %s API call request ID:%s", call.Type, call.ID.Hex())))

		grouped.APICalls = append(grouped.APICalls, call)
	}

	for _, ev := range batch.WithdrawalsRequested {
		grouped.Withdrawals = append(grouped.Withdrawals, Withdrawal{
			ID:               ev.WithdrawalID,
			ProviderID:       ev.ProviderID,
			RequesterIndex:   ev.RequesterIndex,
			DesignatedWallet: ev.DesignatedWallet,
			Destination:      ev.Destination,
			Status:           StatusPending,
			Metadata:         ev.Metadata,
		})
	}

	return pending, grouped
}
