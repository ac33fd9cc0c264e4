package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/TheusHen/sae/sae/session"
)

// chat sends every line of in and prints every received message to out. It
// returns when in is exhausted, ctx is cancelled or the session dies.
func chat(ctx context.Context, conn *session.Conn, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer conn.Close()

	var (
		mu      sync.Mutex
		recvErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		for {
			msg, err := conn.Receive(ctx)
			if err != nil {
				mu.Lock()
				recvErr = err
				mu.Unlock()
				return
			}
			mu.Lock()
			fmt.Fprintf(out, "peer> %s\n", msg)
			mu.Unlock()
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			<-done
			return chatResult(recvErr)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if line == "" {
				continue
			}
			if err := conn.Send(ctx, []byte(line)); err != nil {
				mu.Lock()
				fmt.Fprintln(out, session.UserMessage(err))
				mu.Unlock()
				if !session.Recoverable(err) {
					return err
				}
			}
		}
	}
}

func chatResult(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	if session.Classify(err) == session.KindTransport {
		// The peer hanging up ends the chat normally.
		return nil
	}
	return err
}
