package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"llamad/pkg/types"
)

// clientTimeout bounds control-plane calls against a running daemon. Ensure
// gets a larger budget because a cold spawn can take the full startup window.
const (
	clientTimeout = 10 * time.Second
	ensureTimeout = 2 * time.Minute
)

func daemonURL(cmd *cobra.Command) string {
	addr := cmd.Flag("addr").Value.String()
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimSuffix(addr, "/")
	}
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr
}

func callDaemon(cmd *cobra.Command, method, path string, body any, timeout time.Duration) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, daemonURL(cmd)+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var apiErr types.ErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}
	if len(raw) == 0 {
		return nil
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		cmd.OutOrStdout().Write(raw)
		return nil
	}
	pretty.WriteByte('\n')
	_, err = pretty.WriteTo(cmd.OutOrStdout())
	return err
}

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "Print the daemon's accelerator inventory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return callDaemon(cmd, http.MethodGet, "/devices", nil, clientTimeout)
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print daemon and managed server status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return callDaemon(cmd, http.MethodGet, "/status", nil, clientTimeout)
		},
	}
}

func newEnsureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure [model-id]",
		Short: "Ensure the inference server runs the given model",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			if len(args) == 1 {
				id = args[0]
			}
			return callDaemon(cmd, http.MethodPost, "/ensure", types.EnsureRequest{Model: id}, ensureTimeout)
		},
	}
}

func newTerminateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "terminate",
		Short: "Stop the managed inference server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return callDaemon(cmd, http.MethodPost, "/terminate", nil, clientTimeout)
		},
	}
}
