package main

import (
	"fmt"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcdev12/quizhub/go/internal/adminrpc"
)

const adminTimeout = 10 * time.Second

func newRoomsCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "Inspect and close the rooms of a running server.",
	}

	newClient := func() *adminrpc.Client {
		return adminrpc.NewClient(&http.Client{Timeout: adminTimeout}, cfg.adminURL)
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List active rooms.",
			Args:  cobra.ExactArgs(0),
			RunE: func(cmd *cobra.Command, _ []string) error {
				rooms, err := newClient().ListRooms(cmd.Context())
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ROOM\tSTATE\tPLAYERS\tLOCKED\tGAME")
				for _, r := range rooms {
					fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\n", r["room_id"], r["state"], r["players"], r["locked"], r["game_title"])
				}
				return w.Flush()
			},
		},
		&cobra.Command{
			Use:   "close ROOM_ID",
			Short: "Close a room and disconnect its players.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := newClient().CloseRoom(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "room %s closed\n", args[0])
				return nil
			},
		},
	)
	return cmd
}
