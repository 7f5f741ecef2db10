package cmd

import (
	"bufio"
	"bytes"
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"

	"github.com/amberarrow/devolve/wire"
)

// benchWorkerCmd is a reference worker implementation: it performs the
// handshake, then loops receiving a payload, transforming it, and sending
// the result back, until it observes QUIT. It exists to exercise a real
// boss.Pool end to end and as a template for application-specific workers.
func benchWorkerCmd() *cobra.Command {
	var addr, name, transform string
	cmd := &cobra.Command{
		Use:          "bench-worker",
		Short:        "Connect to a boss and echo/transform jobs until told to quit",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			compute, err := computeFor(transform)
			if err != nil {
				return err
			}
			conn, err := net.Dial("tcp", addr)
			if err != nil {
				return fmt.Errorf("dialing %s: %w", addr, err)
			}
			defer conn.Close()

			r := bufio.NewReader(conn)
			w := bufio.NewWriter(conn)
			if _, err := fmt.Fprintf(w, "%s\n%d\n", name, os.Getpid()); err != nil {
				return fmt.Errorf("sending handshake: %w", err)
			}
			if err := w.Flush(); err != nil {
				return fmt.Errorf("flushing handshake: %w", err)
			}

			for {
				payload, err := wire.Recv(r, w)
				if err == wire.ErrQuit {
					return nil
				}
				if err != nil {
					return fmt.Errorf("receiving job: %w", err)
				}
				if err := wire.Send(r, w, compute(payload)); err != nil {
					return fmt.Errorf("sending result: %w", err)
				}
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:11111", "Address of the boss to connect to")
	cmd.Flags().StringVar(&name, "name", "bench-worker", "Name this worker reports in its handshake")
	cmd.Flags().StringVar(&transform, "transform", "echo", "One of: echo, reverse, upper")
	return cmd
}

func computeFor(transform string) (func([]byte) []byte, error) {
	switch transform {
	case "echo":
		return func(b []byte) []byte { return b }, nil
	case "reverse":
		return func(b []byte) []byte {
			out := make([]byte, len(b))
			for i, c := range b {
				out[len(b)-1-i] = c
			}
			return out
		}, nil
	case "upper":
		return func(b []byte) []byte { return bytes.ToUpper(b) }, nil
	default:
		return nil, fmt.Errorf("unknown transform %q", transform)
	}
}
