package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var errUnknownNotificationsAction = errors.New("unknown action, expected start, stop, or status")

type notificationStartResponse struct {
	envelope
	Message    string `json:"message"`
	Port       int    `json:"port"`
	ReaderName string `json:"readerName"`
}

type notificationStopResponse struct {
	envelope
	Message string `json:"message"`
}

type notificationStatusResponse struct {
	envelope
	ActiveSessions int                      `json:"activeSessions"`
	Sessions       []notificationStatusView `json:"sessions"`
}

type notificationStatusView struct {
	ReaderName string `json:"readerName"`
	Port       int    `json:"port"`
	QueueDepth int    `json:"queueDepth"`
	Dropped    int    `json:"dropped"`
}

func notificationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifications <start|stop|status> [reader]",
		Short: "Control and inspect autonomous notification listeners",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			switch args[0] {
			case "start":
				return notificationsStart(args)
			case "stop":
				return notificationsStop(args)
			case "status":
				return notificationsStatus()
			default:
				return fmt.Errorf("%w: %q", errUnknownNotificationsAction, args[0])
			}
		},
	}

	return cmd
}

func notificationsStart(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("notifications start requires a reader name")
	}

	var resp notificationStartResponse
	if err := apiPost("/notification/start/"+args[1], nil, &resp); err != nil {
		return fmt.Errorf("start notifications on %s: %w", args[1], err)
	}

	fmt.Printf("%s (port %d)\n", resp.Message, resp.Port)

	return nil
}

func notificationsStop(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("notifications stop requires a reader name")
	}

	var resp notificationStopResponse
	if err := apiPost("/notification/stop/"+args[1], nil, &resp); err != nil {
		return fmt.Errorf("stop notifications on %s: %w", args[1], err)
	}

	fmt.Println(resp.Message)

	return nil
}

func notificationsStatus() error {
	var resp notificationStatusResponse
	if err := apiGet("/notification/status", nil, &resp); err != nil {
		return fmt.Errorf("notification status: %w", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Reader", "Port", "Queue Depth", "Dropped"})

	for _, s := range resp.Sessions {
		table.Append([]string{
			s.ReaderName,
			fmt.Sprintf("%d", s.Port),
			fmt.Sprintf("%d", s.QueueDepth),
			fmt.Sprintf("%d", s.Dropped),
		})
	}

	table.Render()

	return nil
}
