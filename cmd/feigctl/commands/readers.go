package commands

import (
	"fmt"
	"net/url"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

type readerView struct {
	Name               string `json:"name"`
	Address            string `json:"address"`
	Port               int    `json:"port"`
	Mode               string `json:"mode"`
	Antennas           []int  `json:"antennas"`
	AntennaMask        string `json:"antennaMask"`
	IsConnected        bool   `json:"isConnected"`
	ConnectionStatus   string `json:"connectionStatus"`
	NotificationActive bool   `json:"notificationActive"`
	NotificationPort   int    `json:"notificationPort,omitempty"`
}

type readersResponse struct {
	envelope
	ReaderCount int          `json:"readerCount"`
	Readers     []readerView `json:"readers"`
}

func readersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "readers",
		Short: "List configured readers",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var resp readersResponse
			if err := apiGet("/readers", nil, &resp); err != nil {
				return fmt.Errorf("list readers: %w", err)
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Name", "Address", "Port", "Mode", "Connected", "Status", "Notify"})

			for _, r := range resp.Readers {
				notify := "-"
				if r.NotificationActive {
					notify = fmt.Sprintf("port %d", r.NotificationPort)
				}

				table.Append([]string{
					r.Name,
					r.Address,
					fmt.Sprintf("%d", r.Port),
					r.Mode,
					fmt.Sprintf("%t", r.IsConnected),
					r.ConnectionStatus,
					notify,
				})
			}

			table.Render()

			return nil
		},
	}
}

func inventoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inventory <reader>",
		Short: "Read all tags currently in the antenna field",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var resp tagListResponse
			if err := apiGet("/inventory/"+args[0], nil, &resp); err != nil {
				return fmt.Errorf("inventory %s: %w", args[0], err)
			}

			renderTags(resp.Tags)

			return nil
		},
	}
}

type tagView struct {
	TagType    string       `json:"tagType"`
	EPC        string       `json:"epc"`
	PC         string       `json:"pc"`
	MediaID    string       `json:"mediaId"`
	Secured    bool         `json:"secured"`
	RSSIValues []rssiReadingView `json:"rssiValues"`
}

type rssiReadingView struct {
	Antenna int `json:"antenna"`
	RSSI    int `json:"rssi"`
}

type tagListResponse struct {
	envelope
	Message string    `json:"message"`
	Count   int       `json:"count"`
	Tags    []tagView `json:"tags"`
}

func renderTags(tags []tagView) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Type", "EPC", "PC", "Media ID", "Secured", "RSSI"})

	for _, tg := range tags {
		rssi := "-"
		if len(tg.RSSIValues) > 0 {
			rssi = fmt.Sprintf("ant%d=%d", tg.RSSIValues[0].Antenna, tg.RSSIValues[0].RSSI)
		}

		table.Append([]string{
			tg.TagType,
			tg.EPC,
			tg.PC,
			tg.MediaID,
			fmt.Sprintf("%t", tg.Secured),
			rssi,
		})
	}

	table.Render()
}

// mediaIDQuery builds the url.Values for a --media-id required flag,
// shared by initialize/edit.
func mediaIDQuery(mediaID string) url.Values {
	q := url.Values{}
	q.Set("mediaId", mediaID)

	return q
}
