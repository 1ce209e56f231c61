package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/bryanchriswhite/snapflow/internal/app"
	"github.com/bryanchriswhite/snapflow/internal/platform"
	"github.com/spf13/cobra"
)

var surfacesCmd = &cobra.Command{
	Use:   "surfaces",
	Short: "List display surfaces",
	Long:  `List the monitors that make up the virtual desktop, in desktop coordinates.`,
	RunE:  runSurfaces,
}

var windowsCmd = &cobra.Command{
	Use:   "windows",
	Short: "List top-level windows",
	Example: `  # List windows, topmost first
  snapflow windows

  # Show the active window as JSON
  snapflow windows --active --format json`,
	RunE: runWindows,
}

var destinationsCmd = &cobra.Command{
	Use:   "destinations",
	Short: "List capture destinations",
	Long: `List the registered destinations. Dynamic destinations such as the tracker
are expanded into their members.`,
	RunE: runDestinations,
}

var (
	listFormat  string
	listActive  bool
	listRefresh bool
)

func init() {
	rootCmd.AddCommand(surfacesCmd)
	rootCmd.AddCommand(windowsCmd)
	rootCmd.AddCommand(destinationsCmd)

	for _, c := range []*cobra.Command{surfacesCmd, windowsCmd, destinationsCmd} {
		c.Flags().StringVarP(&listFormat, "format", "f", "table", "output format (table or json)")
	}
	windowsCmd.Flags().BoolVarP(&listActive, "active", "a", false, "show only the active window")
	destinationsCmd.Flags().BoolVarP(&listRefresh, "refresh", "r", false, "refetch dynamic destinations")
}

func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func runSurfaces(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	surfaces, err := a.Platform.Screens.Surfaces()
	if err != nil {
		return fmt.Errorf("failed to enumerate surfaces: %w", err)
	}
	desktop, err := a.Capturer.Resolver.VirtualDesktop()
	if err != nil {
		return err
	}

	switch listFormat {
	case "json":
		return printJSON(surfaces)
	case "table":
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		defer w.Flush()

		fmt.Fprintln(w, "INDEX\tNAME\tBOUNDS\tWORK AREA\tPRIMARY")
		fmt.Fprintln(w, "-----\t----\t------\t---------\t-------")
		for _, s := range surfaces {
			primary := "No"
			if s.Primary {
				primary = "Yes"
			}
			fmt.Fprintf(w, "%d\t%s\t%v\t%v\t%s\n", s.Index, s.Name, s.Bounds, s.Work(), primary)
		}
		fmt.Fprintf(w, "\nVirtual desktop: %v\n", desktop)
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", listFormat)
	}
}

func runWindows(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var windows []*platform.Window
	if listActive {
		win, err := a.Platform.Windows.ActiveWindow()
		if err != nil {
			return fmt.Errorf("failed to query active window: %w", err)
		}
		if win == nil {
			fmt.Println("No window is currently focused")
			return nil
		}
		windows = append(windows, win)
	} else {
		windows, err = a.Platform.Windows.List()
		if err != nil {
			return fmt.Errorf("failed to list windows: %w", err)
		}
	}

	switch listFormat {
	case "json":
		return printJSON(windows)
	case "table":
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		defer w.Flush()

		fmt.Fprintln(w, "HANDLE\tTITLE\tCLASS\tPID\tGEOMETRY\tMAXIMIZED")
		fmt.Fprintln(w, "------\t-----\t-----\t---\t--------\t---------")
		for _, win := range windows {
			maximized := "No"
			if win.Maximized {
				maximized = "Yes"
			}
			fmt.Fprintf(w, "%#x\t%s\t%s\t%d\t%dx%d at (%d, %d)\t%s\n",
				uint64(win.Handle), win.Title, win.Class, win.PID,
				win.Bounds.Dx(), win.Bounds.Dy(), win.Bounds.Min.X, win.Bounds.Min.Y, maximized)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", listFormat)
	}
}

func runDestinations(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	infos := a.ListDestinations(context.Background(), listRefresh)
	switch listFormat {
	case "json":
		return printJSON(infos)
	case "table":
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		defer w.Flush()

		fmt.Fprintln(w, "DESIGNATION\tDESCRIPTION")
		fmt.Fprintln(w, "-----------\t-----------")
		for _, info := range infos {
			printDestination(w, info, "")
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", listFormat)
	}
}

func printDestination(w *tabwriter.Writer, info app.DestinationInfo, indent string) {
	desc := info.Description
	if info.Error != "" {
		desc = "unavailable: " + info.Error
	}
	fmt.Fprintf(w, "%s%s\t%s\n", indent, info.Designation, desc)
	for _, m := range info.Members {
		printDestination(w, m, indent+"  ")
	}
}
