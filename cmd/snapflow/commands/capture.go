package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/bryanchriswhite/snapflow/internal/app"
	"github.com/spf13/cobra"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture the screen, a region or a window",
	Long: `Run one capture flow: import pixels from a source, run the processors and
export the result to the destinations.

Without --destination the destinations from the config file are used. Use
tracker/<id> to attach the capture to a single work item.`,
}

var captureScreenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Capture the desktop",
	Example: `  # Capture the screen under the pointer (screen_capture_mode auto)
  snapflow capture screen

  # Capture every screen without cropping
  snapflow capture screen --processor title_fix

  # Crop to the active window instead
  snapflow capture screen --processor active_window,title_fix`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCapture(cmd, app.Request{Source: "screen"})
	},
}

var captureRegionCmd = &cobra.Command{
	Use:   "region X Y WIDTH HEIGHT",
	Short: "Capture a desktop rectangle",
	Example: `  # Capture 800x600 pixels at the top-left of the primary screen
  snapflow capture region 0 0 800 600`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		var n [4]int
		for i, a := range args {
			v, err := strconv.Atoi(a)
			if err != nil {
				return fmt.Errorf("invalid number: %s", a)
			}
			n[i] = v
		}
		return runCapture(cmd, app.Request{
			Source: "region",
			Region: &app.Rect{X: n[0], Y: n[1], Width: n[2], Height: n[3]},
		})
	},
}

var captureWindowCmd = &cobra.Command{
	Use:   "window",
	Short: "Capture a single window",
	Example: `  # Capture the active window
  snapflow capture window

  # Capture a window by handle (see: snapflow windows)
  snapflow capture window --handle 0x3a00007

  # Attach the active window to work item 42
  snapflow capture window --destination tracker/42`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := app.Request{Source: "window"}
		if captureHandle != "" {
			h, err := strconv.ParseUint(captureHandle, 0, 64)
			if err != nil {
				return fmt.Errorf("invalid window handle: %s", captureHandle)
			}
			req.Window = h
		}
		return runCapture(cmd, req)
	},
}

var (
	captureDestinations []string
	captureProcessors   []string
	captureTemplate     string
	captureFilename     string
	captureMetadata     []string
	captureHandle       string
	captureFormat       string
)

func init() {
	rootCmd.AddCommand(captureCmd)
	captureCmd.AddCommand(captureScreenCmd)
	captureCmd.AddCommand(captureRegionCmd)
	captureCmd.AddCommand(captureWindowCmd)

	flags := captureCmd.PersistentFlags()
	flags.StringSliceVarP(&captureDestinations, "destination", "d", nil, "destinations (file, stream, tracker, tracker/<id>)")
	flags.StringSliceVarP(&captureProcessors, "processor", "p", nil, "processors (active_window, title_fix, screen_mode, overlay)")
	flags.StringVarP(&captureTemplate, "template", "t", "", "template (cropped or full)")
	flags.StringVar(&captureFilename, "filename", "", "file name pattern, e.g. '${title}-${hh}${mm}'")
	flags.StringSliceVar(&captureMetadata, "meta", nil, "extra metadata as key=value")
	flags.StringVarP(&captureFormat, "format", "f", "table", "output format (table or json)")
	captureWindowCmd.Flags().StringVar(&captureHandle, "handle", "", "window handle (default is the active window)")
}

func runCapture(cmd *cobra.Command, req app.Request) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if cmd.Flags().Changed("processor") {
		req.Processors = captureProcessors
		if req.Processors == nil {
			req.Processors = []string{}
		}
	}
	req.Destinations = captureDestinations
	req.Template = captureTemplate
	req.FilenamePattern = captureFilename
	for _, kv := range captureMetadata {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("invalid metadata %q (use key=value)", kv)
		}
		if req.Metadata == nil {
			req.Metadata = make(map[string]string)
		}
		req.Metadata[k] = v
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := a.Capture(ctx, req)
	if err != nil {
		return err
	}

	switch captureFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(res)
	case "table":
		return printResult(res)
	default:
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", captureFormat)
	}
}

func printResult(res *app.Result) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "Title:\t%s\n", res.Title)
	fmt.Fprintf(w, "Exported:\t%t\n", res.Exported)
	fmt.Fprintf(w, "Capture:\t%dx%d at (%d, %d)\n", res.Capture.Width, res.Capture.Height, res.Capture.X, res.Capture.Y)
	fmt.Fprintf(w, "Crop:\t%dx%d at (%d, %d)\n", res.Crop.Width, res.Crop.Height, res.Crop.X, res.Crop.Y)

	keys := make([]string, 0, len(res.Metadata))
	for k := range res.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s:\t%s\n", k, res.Metadata[k])
	}
	return nil
}
