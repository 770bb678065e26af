package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/raine/katazuke-proxy/internal/client"
	"github.com/raine/katazuke-proxy/internal/quota"
	"github.com/spf13/cobra"
)

// editTypes maps the --mode flag to the editType the proxy understands.
var editTypes = map[string]string{
	"standard": "future_vision",
	"strong":   "future_vision_stronger",
	"light":    "light",
}

type rootOptions struct {
	server   string
	language string
	timeout  time.Duration
}

func (o *rootOptions) client() *client.Client {
	return client.NewClient(client.ClientOpts{
		BaseURL:  o.server,
		Language: o.language,
		Timeout:  o.timeout,
	})
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "katazuke",
		Short:         "Client for the katazuke cleanup proxy",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultServer := os.Getenv("KATAZUKE_SERVER")
	if defaultServer == "" {
		defaultServer = client.DefaultBaseURL
	}
	root.PersistentFlags().StringVar(&opts.server, "server", defaultServer, "Proxy base URL")
	root.PersistentFlags().StringVar(&opts.language, "lang", "", "Preferred response language (e.g. ja)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "Request timeout")

	root.AddCommand(
		newEditCommand(opts),
		newUsageCommand(opts),
		newHealthCommand(opts),
		newSpotsCommand(opts),
	)
	return root
}

func newEditCommand(opts *rootOptions) *cobra.Command {
	var (
		mode        string
		highQuality bool
		out         string
	)

	cmd := &cobra.Command{
		Use:   "edit <image>",
		Short: "Generate a cleaned-up version of a room photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			editType, ok := editTypes[mode]
			if !ok {
				return fmt.Errorf("unknown mode %q (use standard, strong or light)", mode)
			}
			image, mimeType, err := readImage(args[0])
			if err != nil {
				return err
			}

			res, err := opts.client().Edit(cmd.Context(), client.EditParams{
				Image:       image,
				MIMEType:    mimeType,
				EditType:    editType,
				HighQuality: highQuality,
			})
			if err != nil {
				return err
			}

			data, err := res.Image()
			if err != nil {
				return fmt.Errorf("failed to decode returned image: %w", err)
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			return renderEdit(cmd.OutOrStdout(), res, out)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "standard", "Cleanup strength: standard, strong or light")
	cmd.Flags().BoolVar(&highQuality, "hq", false, "Use the high quality model")
	cmd.Flags().StringVarP(&out, "out", "o", "cleaned.png", "Where to write the generated image")
	return cmd
}

func newUsageCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show today's quota usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			usage, err := opts.client().Usage(cmd.Context())
			if err != nil {
				return err
			}
			renderUsage(cmd.OutOrStdout(), usage)
			return nil
		},
	}
}

func newHealthCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the proxy is up",
		RunE: func(cmd *cobra.Command, args []string) error {
			health, err := opts.client().Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (version %s)\n", health.Status, health.Version)
			return nil
		},
	}
}

func newSpotsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "spots <image>",
		Short: "List quick tidying tasks for a room photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, mimeType, err := readImage(args[0])
			if err != nil {
				return err
			}
			res, err := opts.client().CleanupSpots(cmd.Context(), image, mimeType)
			if err != nil {
				return err
			}
			renderSpots(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func readImage(path string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}
	return data, http.DetectContentType(data), nil
}

func renderEdit(w io.Writer, res *client.EditResponse, out string) error {
	fmt.Fprintf(w, "Saved %s\n", out)
	fmt.Fprintf(w, "Model: %s\n", res.Model)
	if res.UsedFallback && res.FallbackReason != nil {
		fmt.Fprintf(w, "Fallback: %s\n", *res.FallbackReason)
	}
	fmt.Fprintf(w, "Room: %s, removed items: %d, protected appliances: %d\n",
		res.Debug.RoomType, res.Debug.RemoveItemCount, res.Debug.CriticalAppliancesCount)
	if res.Debug.DidRetry {
		fmt.Fprintln(w, "Retried after a failed inspection")
	}
	renderUsage(w, res.Usage)
	return nil
}

func renderUsage(w io.Writer, usage quota.Status) {
	keys := make([]string, 0, len(usage))
	for c := range usage {
		keys = append(keys, string(c))
	}
	sort.Strings(keys)
	for _, key := range keys {
		u := usage[quota.Capability(key)]
		fmt.Fprintf(w, "%-10s %d/%d\n", key, u.Used, u.Limit)
	}
}

func renderSpots(w io.Writer, res *client.SpotsResponse) {
	if len(res.Spots) == 0 && res.RawText != "" {
		fmt.Fprintln(w, res.RawText)
		return
	}
	for i, spot := range res.Spots {
		fmt.Fprintf(w, "%d. [%s] %s", i+1, spot.Location, spot.Action)
		if spot.EstimatedTime != "" {
			fmt.Fprintf(w, " (%s)", spot.EstimatedTime)
		}
		fmt.Fprintln(w)
	}
	if res.TotalEstimatedTime != "" {
		fmt.Fprintf(w, "Total: %s\n", res.TotalEstimatedTime)
	}
	if res.Encouragement != "" {
		fmt.Fprintln(w, res.Encouragement)
	}
}
