package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/josh-kwaku/clinic-settlement/internal/repository"
)

type gatewayEventView struct {
	ID           string          `json:"id"`
	Kind         string          `json:"kind"`
	PaymentID    *string         `json:"paymentId,omitempty"`
	ResponseCode string          `json:"responseCode,omitempty"`
	Params       json.RawMessage `json:"params,omitempty"`
	CreatedAt    string          `json:"createdAt"`
}

func gatewayEventsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "gateway-events <order-ref>",
		Short: "Print every recorded gateway exchange for an order reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireDatabase(); err != nil {
				return err
			}

			db, err := repository.NewPostgresDB(cmd.Context(), opts.databaseURL, repository.PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1})
			if err != nil {
				return err
			}
			defer db.Close()

			events, err := repository.NewGatewayEventRepository(db).ListByOrderRef(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(events) == 0 {
				return fmt.Errorf("no gateway events for order %s", args[0])
			}

			views := make([]gatewayEventView, len(events))
			for i, e := range events {
				views[i] = gatewayEventView{
					ID:           e.ID.String(),
					Kind:         string(e.Kind),
					ResponseCode: e.ResponseCode,
					Params:       e.Params,
					CreatedAt:    e.CreatedAt.Format(time.RFC3339),
				}
				if e.PaymentID != nil {
					id := e.PaymentID.String()
					views[i].PaymentID = &id
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(views)
		},
	}
}
