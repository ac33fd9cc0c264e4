package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/TheusHen/sae/sae"
	"github.com/TheusHen/sae/sae/session"
)

func hostCmd() *cobra.Command {
	var (
		listen    string
		advertise string
	)
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Wait for a peer and chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			if listen == "" {
				listen = cfg.Listen
			}
			id, err := generateIdentity()
			if err != nil {
				return err
			}
			defer id.Destroy()

			peer := sae.NewPeer(id, cfg)
			if err := peer.Listen(listen); err != nil {
				return err
			}
			defer peer.Close()
			go peer.CleanupTokens(ctx, time.Minute)

			inv, err := peer.Invite(advertise)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Invite:      %s\n", inv)
			fmt.Fprintf(out, "Fingerprint: %s\n", id.Fingerprint())
			fmt.Fprintf(out, "Waiting for a peer on %s (%s)...\n", peer.ListenAddr(), cfg.Transport)

			conn, err := accept(ctx, peer, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Connected. Peer fingerprint: %s\n", conn.Session().PeerFingerprint())
			return chat(ctx, conn, cmd.InOrStdin(), out)
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (default from config)")
	cmd.Flags().StringVar(&advertise, "advertise", "", "host:port to put in the invite (default listen address)")
	return cmd
}

// accept waits for a connector that completes the handshake. Connectors
// failing authentication are turned away and the invite stays open.
func accept(ctx context.Context, peer *sae.Peer, errOut io.Writer) (*session.Conn, error) {
	for {
		conn, err := peer.Accept(ctx)
		if err == nil {
			return conn, nil
		}
		fmt.Fprintln(errOut, session.UserMessage(err))
		if session.Classify(err) != session.KindAuth || ctx.Err() != nil {
			return nil, err
		}
	}
}
