package commands

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/TheusHen/sae/sae"
	"github.com/TheusHen/sae/sae/invite"
	"github.com/TheusHen/sae/sae/session"
)

func connectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect <invite-uri>",
		Short: "Join a host using its invite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			inv, err := invite.Parse(args[0])
			if err != nil {
				return err
			}
			id, err := generateIdentity()
			if err != nil {
				return err
			}
			defer id.Destroy()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Connecting to %s (expected fingerprint %s)...\n", inv.Addr, inv.Fingerprint())

			conn, err := sae.NewPeer(id, cfg).Dial(ctx, inv)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), session.UserMessage(err))
				return err
			}
			fmt.Fprintf(out, "Connected. Peer fingerprint: %s\n", conn.Session().PeerFingerprint())
			return chat(ctx, conn, cmd.InOrStdin(), out)
		},
	}
	return cmd
}
