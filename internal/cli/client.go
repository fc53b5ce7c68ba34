package cli

import (
	"context"
	"errors"
	"time"

	"github.com/taskdeck-io/taskdeck/internal/bridge"
)

const commandTimeout = 5 * time.Second

// connectDaemon starts the daemon if needed and opens a bridge client.
func connectDaemon() (*bridge.Client, error) {
	if err := EnsureDaemon(); err != nil {
		return nil, err
	}
	return bridge.Connect()
}

// sendCommand runs one command against the daemon and turns a refused reply
// into an error.
func sendCommand(req *bridge.CommandRequest) error {
	client, err := connectDaemon()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	reply, err := client.Command(ctx, req)
	if err != nil {
		return err
	}
	if !reply.OK {
		return errors.New(reply.Message)
	}
	return nil
}
