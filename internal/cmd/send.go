package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/robolink/robosock/internal/robosock"
)

var sendCmd = &cobra.Command{
	Use:   "send [payload...]",
	Short: "Send one datagram to the managed socket",
	Long: `Send one datagram to the managed socket.

The payload is the arguments joined by spaces. Without arguments it is read
from stdin, which must not be a terminal.

By default the datagram is sent from an unbound socket. With --bind it is
sent from a temporary managed socket, so the receiver sees a sender address.`,
	RunE: runSend,
}

var sendBind bool

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().BoolVar(&sendBind, "bind", false, "send from a temporary managed socket")
}

func runSend(cmd *cobra.Command, args []string) error {
	payload, err := readPayload(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	target := viper.GetString("socket.path")
	n, err := send(cmd.Context(), target, payload, sendBind)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sent %d bytes to %s\n", n, target)
	return nil
}

func readPayload(args []string, stdin io.Reader) ([]byte, error) {
	if len(args) > 0 {
		return []byte(strings.Join(args, " ")), nil
	}
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return nil, errors.New("no payload: pass it as arguments or pipe it on stdin")
	}
	return io.ReadAll(stdin)
}

func send(ctx context.Context, target string, payload []byte, bind bool) (int, error) {
	if !bind {
		conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: target, Net: "unixgram"})
		if err != nil {
			return 0, fmt.Errorf("failed to reach %s: %w", target, err)
		}
		defer conn.Close()
		return conn.Write(payload)
	}

	from := filepath.Join(os.TempDir(), "robosock-send-"+uuid.NewString()[:8]+".sock")
	sock, err := robosock.New(ctx, robosock.Process(), from)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := sock.Unlink(context.WithoutCancel(ctx)); err != nil {
			_ = sock.Close()
		}
	}()
	n, err := sock.SendTo(payload, target)
	if err != nil {
		return n, fmt.Errorf("failed to send to %s: %w", target, err)
	}
	return n, nil
}
