package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/talgya/hexflower/internal/api"
	"github.com/talgya/hexflower/internal/engine"
	"github.com/talgya/hexflower/internal/lattice"
	"github.com/talgya/hexflower/internal/persistence"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newServeCmd(a *app) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("port") {
				port = a.cfg.Port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			events := engine.NewBroadcaster()
			defer events.Close()
			a.eng.Observe(events)

			srv := &api.Server{
				Engine:      a.eng,
				Events:      events,
				DB:          a.db,
				Port:        port,
				AdminKey:    a.cfg.AdminKey,
				CORSOrigins: a.cfg.CORSOrigins,
			}
			return srv.Run(ctx)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default $HEXFLOWER_PORT)")
	return cmd
}

func newCreateCmd(a *app) *cobra.Command {
	var (
		name      string
		radius    int
		paint     bool
		paintSeed int64
		meta      map[string]string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a flower",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("radius") {
				radius = a.eng.DefaultRadius()
			}
			opts := engine.CreateOptions{Name: name, Radius: radius}
			if len(meta) > 0 {
				opts.Metadata = make(map[string]any, len(meta))
				for k, v := range meta {
					opts.Metadata[k] = v
				}
			}
			if paint || cmd.Flags().Changed("paint-seed") {
				cfg := lattice.DefaultPaintConfig()
				cfg.Seed = paintSeed
				if !cmd.Flags().Changed("paint-seed") {
					cfg.Seed = lattice.NewPaintSeed()
				}
				opts.Paint = &cfg
			}
			lat, err := a.eng.Create(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %q (radius %d, %d cells)\n",
				lat.ID, lat.Name, lat.Radius, len(lat.Cells))
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "flower name")
	cmd.Flags().IntVarP(&radius, "radius", "r", 0, "lattice radius (default $HEXFLOWER_DEFAULT_RADIUS)")
	cmd.Flags().BoolVar(&paint, "paint", false, "paint cells with the weather palette")
	cmd.Flags().Int64Var(&paintSeed, "paint-seed", 0, "noise seed for painting (implies --paint)")
	cmd.Flags().StringToStringVar(&meta, "meta", nil, "metadata key=value pairs")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List flowers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tRADIUS\tCELLS\tCURSOR\tMOVES")
			for _, s := range a.eng.List() {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%d\n", s.ID, s.Name, s.Radius, s.Cells, s.Cursor, s.Moves)
			}
			return tw.Flush()
		},
	}
}

type flowerView struct {
	ID       string                `json:"id"`
	Name     string                `json:"name"`
	Radius   int                   `json:"radius"`
	Boundary engine.Policy         `json:"boundary"`
	Current  lattice.Cell          `json:"current"`
	Moves    int                   `json:"moves"`
	Last     *lattice.HistoryEntry `json:"last,omitempty"`
	Metadata map[string]any        `json:"metadata"`
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a flower's cursor and latest move",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.resolveID(args[0])
			if err != nil {
				return err
			}
			lat, _ := a.eng.Get(id)
			view := flowerView{
				ID:       lat.ID,
				Name:     lat.Name,
				Radius:   lat.Radius,
				Boundary: a.eng.Boundary(),
				Current:  *lat.Current(),
				Moves:    len(lat.History),
				Metadata: lat.Metadata,
			}
			if n := len(lat.History); n > 0 {
				view.Last = &lat.History[n-1]
			}
			return printJSON(cmd.OutOrStdout(), view)
		},
	}
}

func newNavigateCmd(a *app) *cobra.Command {
	var (
		roll  int
		times int
	)
	cmd := &cobra.Command{
		Use:   "navigate <id>",
		Short: "Roll 2d6 and move the cursor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.resolveID(args[0])
			if err != nil {
				return err
			}
			if times < 1 {
				return fmt.Errorf("--times must be at least 1")
			}
			results := make([]engine.NavigationResult, 0, times)
			for range times {
				var res engine.NavigationResult
				if cmd.Flags().Changed("roll") {
					res, err = a.eng.NavigateTotal(cmd.Context(), id, roll)
				} else {
					res, err = a.eng.Navigate(cmd.Context(), id)
				}
				if err != nil {
					return err
				}
				results = append(results, res)
			}
			if len(results) == 1 {
				return printJSON(cmd.OutOrStdout(), results[0])
			}
			return printJSON(cmd.OutOrStdout(), results)
		},
	}
	cmd.Flags().IntVar(&roll, "roll", 0, "use this 2d6 total instead of rolling")
	cmd.Flags().IntVarP(&times, "times", "t", 1, "number of steps")
	return cmd
}

func newPreviewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "preview <id> <roll>",
		Short: "Show where a roll total would move the cursor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.resolveID(args[0])
			if err != nil {
				return err
			}
			total, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("roll must be an integer: %w", err)
			}
			res, err := a.eng.Preview(id, total)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func newSetCmd(a *app) *cobra.Command {
	var (
		q, r    int
		payload lattice.Payload
	)
	cmd := &cobra.Command{
		Use:   "set <id> --q Q --r R [--label L] [--content C] [--color #RGB]",
		Short: "Set the payload of one cell",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.resolveID(args[0])
			if err != nil {
				return err
			}
			coord := lattice.Coord{Q: q, R: r}
			if !a.eng.SetCellContent(cmd.Context(), id, coord, payload) {
				fmt.Fprintf(cmd.OutOrStdout(), "nothing changed at %s\n", coord)
				return nil
			}
			lat, _ := a.eng.Get(id)
			return printJSON(cmd.OutOrStdout(), lat.Get(coord))
		},
	}
	cmd.Flags().IntVar(&q, "q", 0, "cell q coordinate")
	cmd.Flags().IntVar(&r, "r", 0, "cell r coordinate")
	cmd.Flags().StringVar(&payload.Label, "label", "", "cell label")
	cmd.Flags().StringVar(&payload.Content, "content", "", "cell content")
	cmd.Flags().StringVar(&payload.Color, "color", "", "cell color")
	cmd.MarkFlagRequired("q")
	cmd.MarkFlagRequired("r")
	return cmd
}

func newResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <id>",
		Short: "Return the cursor to the center and clear history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.resolveID(args[0])
			if err != nil {
				return err
			}
			a.eng.Reset(cmd.Context(), id)
			fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", id)
			return nil
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a flower",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.resolveID(args[0])
			if err != nil {
				return err
			}
			if err := a.eng.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			return nil
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write a flower snapshot as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.resolveID(args[0])
			if err != nil {
				return err
			}
			data, _, err := a.eng.ExportJSON(id)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}
			return os.WriteFile(output, data, 0o644)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (default stdout)")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Import a flower snapshot under a new id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read snapshot: %w", err)
			}
			lat, err := a.eng.ImportSnapshot(cmd.Context(), data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s %q (radius %d)\n", lat.ID, lat.Name, lat.Radius)
			return nil
		},
	}
}

func newBoundaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "boundary [bounded|wrapping]",
		Short:     "Show or set the boundary policy",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(engine.Bounded), string(engine.Wrapping)},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				policy := engine.Policy(args[0])
				if policy == "" {
					return fmt.Errorf("policy is required")
				}
				if err := a.eng.SetBoundary(policy); err != nil {
					return err
				}
				if err := a.db.SaveMeta(cmd.Context(), persistence.MetaBoundary, string(policy)); err != nil {
					return fmt.Errorf("save boundary: %w", err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.eng.Boundary())
			return nil
		},
	}
}

func newLogCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "log [id]",
		Short: "Show recent engine events",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			if len(args) == 1 {
				id = args[0]
			}
			records, err := a.db.RecentEvents(cmd.Context(), id, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tKIND\tFLOWER\tDETAIL")
			for _, rec := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					rec.Time().Format("2006-01-02 15:04:05"), rec.Kind, rec.FlowerID, rec.DetailJSON)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "number of events")
	return cmd
}

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Print the roll to direction key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DIR\tCOMPASS\tTOTALS\tDQ\tDR")
			for _, e := range lattice.Key() {
				fmt.Fprintf(tw, "%s\t%s\t%v\t%d\t%d\n", e.Direction, e.Compass, e.Totals, e.Delta.Q, e.Delta.R)
			}
			return tw.Flush()
		},
	}
	// The key needs no storage.
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error { return nil }
	return cmd
}
