package commands

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

type initializeResponse struct {
	envelope
	Message string `json:"message"`
	EPC     string `json:"epc"`
	PC      string `json:"pc"`
	MediaID string `json:"mediaId"`
	Secured bool   `json:"secured"`
	Format  string `json:"format"`
	TagType string `json:"tagType"`
}

func initializeCmd() *cobra.Command {
	var (
		mediaID string
		format  string
		secured bool
	)

	cmd := &cobra.Command{
		Use:   "initialize <reader>",
		Short: "Write a media ID to the single tag in the field",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if mediaID == "" {
				return errMediaIDRequired
			}

			q := mediaIDQuery(mediaID)
			if format != "" {
				q.Set("format", format)
			}
			q.Set("secured", fmt.Sprintf("%t", secured))

			var resp initializeResponse
			if err := apiPost("/initialize/"+args[0], q, &resp); err != nil {
				return fmt.Errorf("initialize %s: %w", args[0], err)
			}

			fmt.Printf("%s\n  epc:      %s\n  pc:       %s\n  mediaId:  %s\n  secured:  %t\n  tagType:  %s\n",
				resp.Message, resp.EPC, resp.PC, resp.MediaID, resp.Secured, resp.TagType)

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&mediaID, "media-id", "", "media identifier to encode (required)")
	flags.StringVar(&format, "format", "", "tag format to initialize as (defaults to the server's configured default)")
	flags.BoolVar(&secured, "secured", true, "set the tag's secured flag after initialization")

	return cmd
}

type editResponse struct {
	envelope
	Message string `json:"message"`
	OldEPC  string `json:"oldEpc"`
	NewEPC  string `json:"newEpc"`
	MediaID string `json:"mediaId"`
	TagType string `json:"tagType"`
}

func editCmd() *cobra.Command {
	var (
		epc     string
		mediaID string
	)

	cmd := &cobra.Command{
		Use:   "edit <reader>",
		Short: "Rewrite the media ID of an already-initialized tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if epc == "" {
				return errEPCRequired
			}
			if mediaID == "" {
				return errMediaIDRequired
			}

			q := url.Values{}
			q.Set("epc", epc)
			q.Set("mediaId", mediaID)

			var resp editResponse
			if err := apiPost("/edit/"+args[0], q, &resp); err != nil {
				return fmt.Errorf("edit %s: %w", args[0], err)
			}

			fmt.Printf("%s\n  oldEpc:  %s\n  newEpc:  %s\n  mediaId: %s\n  tagType: %s\n",
				resp.Message, resp.OldEPC, resp.NewEPC, resp.MediaID, resp.TagType)

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&epc, "epc", "", "EPC (hex) of the tag to edit (required)")
	flags.StringVar(&mediaID, "media-id", "", "new media identifier (required)")

	return cmd
}

type clearResponse struct {
	envelope
	Message string `json:"message"`
	OldEPC  string `json:"oldEpc"`
	NewEPC  string `json:"newEpc"`
	NewPC   string `json:"newPc"`
	TID     string `json:"tid"`
}

func clearCmd() *cobra.Command {
	var epc string

	cmd := &cobra.Command{
		Use:   "clear <reader>",
		Short: "Reset a tag to its unprogrammed factory EPC",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if epc == "" {
				return errEPCRequired
			}

			q := url.Values{}
			q.Set("epc", epc)

			var resp clearResponse
			if err := apiPost("/clear/"+args[0], q, &resp); err != nil {
				return fmt.Errorf("clear %s: %w", args[0], err)
			}

			fmt.Printf("%s\n  oldEpc: %s\n  newEpc: %s\n  newPc:  %s\n  tid:    %s\n",
				resp.Message, resp.OldEPC, resp.NewEPC, resp.NewPC, resp.TID)

			return nil
		},
	}

	cmd.Flags().StringVar(&epc, "epc", "", "EPC (hex) of the tag to clear (required)")

	return cmd
}

type secureResponse struct {
	envelope
	Message string `json:"message"`
	EPC     string `json:"epc"`
	TagType string `json:"tagType"`
	Secured bool   `json:"secured"`
}

func secureCmd() *cobra.Command {
	return secureToggleCmd("secure", "Mark a tag as secured")
}

func unsecureCmd() *cobra.Command {
	return secureToggleCmd("unsecure", "Mark a tag as unsecured")
}

func secureToggleCmd(use, short string) *cobra.Command {
	var epc string

	cmd := &cobra.Command{
		Use:   use + " <reader>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if epc == "" {
				return errEPCRequired
			}

			q := url.Values{}
			q.Set("epc", epc)

			var resp secureResponse
			if err := apiPost("/"+use+"/"+args[0], q, &resp); err != nil {
				return fmt.Errorf("%s %s: %w", use, args[0], err)
			}

			fmt.Printf("%s\n  epc:     %s\n  tagType: %s\n  secured: %t\n",
				resp.Message, resp.EPC, resp.TagType, resp.Secured)

			return nil
		},
	}

	cmd.Flags().StringVar(&epc, "epc", "", "EPC (hex) of the tag (required)")

	return cmd
}

type analyzeResponse struct {
	envelope
	EPC      string       `json:"epc"`
	Analysis analysisView `json:"analysis"`
}

type analysisView struct {
	TagType      string             `json:"tagType"`
	MediaID      string             `json:"mediaId"`
	EPCBank      string             `json:"epcBank"`
	TIDBank      string             `json:"tidBank"`
	ReservedBank string             `json:"reservedBank"`
	LockStatus   string             `json:"lockStatus"`
	Security     securityAssessment `json:"securityAssessment"`
}

type securityAssessment struct {
	ProperlySecured bool     `json:"properlySecured"`
	Issues          []string `json:"issues"`
}

func analyzeCmd() *cobra.Command {
	var epc string

	cmd := &cobra.Command{
		Use:   "analyze <reader>",
		Short: "Run a full diagnostic read of a tag's memory banks",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if epc == "" {
				return errEPCRequired
			}

			q := url.Values{}
			q.Set("epc", epc)

			var resp analyzeResponse
			if err := apiGet("/analyze/"+args[0], q, &resp); err != nil {
				return fmt.Errorf("analyze %s: %w", args[0], err)
			}

			a := resp.Analysis
			fmt.Printf("epc:             %s\n", resp.EPC)
			fmt.Printf("tagType:         %s\n", a.TagType)
			fmt.Printf("mediaId:         %s\n", a.MediaID)
			fmt.Printf("epcBank:         %s\n", a.EPCBank)
			fmt.Printf("tidBank:         %s\n", a.TIDBank)
			fmt.Printf("reservedBank:    %s\n", a.ReservedBank)
			fmt.Printf("lockStatus:      %s\n", a.LockStatus)
			fmt.Printf("properlySecured: %t\n", a.Security.ProperlySecured)
			for _, issue := range a.Security.Issues {
				fmt.Printf("  issue: %s\n", issue)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&epc, "epc", "", "EPC (hex) of the tag to analyze (required)")

	return cmd
}
