package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"weekcal/internal/capture"
	"weekcal/internal/ics"
	appLog "weekcal/internal/log"
	"weekcal/internal/metrics"
	"weekcal/internal/model"
	"weekcal/internal/render"
	"weekcal/internal/session"
	"weekcal/internal/web"
)

// loadSession reads all calendars once. A non-zero anchor also moves the
// start of recurrence expansion.
func (a *app) loadSession(ctx context.Context, anchor time.Time, m *metrics.Metrics) (*session.Session, session.Snapshot, error) {
	sess, err := session.New(a.cfg, m)
	if err != nil {
		return nil, session.Snapshot{}, err
	}
	if !anchor.IsZero() {
		sess.SetAnchor(anchor)
	}
	snap, err := sess.Reload(ctx)
	if err != nil {
		return nil, session.Snapshot{}, err
	}
	return sess, snap, nil
}

func (a *app) weekAnchor(f *filterFlags) (time.Time, error) {
	loc, err := a.cfg.Location()
	if err != nil {
		return time.Time{}, err
	}
	return parseWeek(f.week, time.Now(), loc)
}

func newRenderCmd(a *app) *cobra.Command {
	var (
		f      filterFlags
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the weekly schedule once as SVG, HTML or JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			anchor, err := a.weekAnchor(&f)
			if err != nil {
				return err
			}
			sess, snap, err := a.loadSession(cmd.Context(), anchor, nil)
			if err != nil {
				return err
			}

			state := f.state(snap.Catalog, sess.DefaultFilter(snap))
			p := sess.Pipeline(snap)
			p.Anchor = anchor
			res := p.Run(snap.Events, state)
			if res.Empty() {
				appLog.Warn("nothing to draw", "reason", res.Reason.Error())
			}

			opts := render.OptionsFromConfig(a.cfg)
			var buf bytes.Buffer
			switch format {
			case "svg":
				buf.WriteString(render.SVG(res, snap.Catalog, opts))
			case "html":
				err = render.HTML(&buf, render.Page{
					Result:   res,
					Catalog:  snap.Catalog,
					State:    state,
					Counts:   snap.Counts(),
					Week:     f.week,
					LoadedAt: snap.LoadedAt,
				}, opts)
			case "json":
				doc := render.NewDocument(res, render.Catalog(snap.Catalog, state, snap.Counts(), opts.Palette))
				enc := json.NewEncoder(&buf)
				enc.SetIndent("", "  ")
				err = enc.Encode(doc)
			default:
				return fmt.Errorf("unknown format %q (want svg, html or json)", format)
			}
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), output, buf.Bytes())
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "svg", "output format: svg, html or json")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file, - for stdout")
	return cmd
}

func writeOutput(stdout io.Writer, path string, body []byte) error {
	if path == "" || path == "-" {
		_, err := stdout.Write(body)
		return err
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return err
	}
	appLog.Info("schedule written", "path", path, "bytes", len(body))
	return nil
}

func newServeCmd(a *app) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the schedule page and API, reloading calendars on a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen != "" {
				a.cfg.Listen = listen
			}
			appLog.Info("weekcal starting", "version", version)

			ctx, cancel := signalContext()
			defer cancel()

			m := metrics.New()
			sess, _, err := a.loadSession(ctx, time.Time{}, m)
			if err != nil {
				return err
			}

			stop, err := sess.StartRefresh(ctx, a.cfg.RefreshCron)
			if err != nil {
				return fmt.Errorf("refresh %q: %w", a.cfg.RefreshCron, err)
			}
			defer stop()

			if err := web.StartServer(ctx, a.cfg, sess, m); err != nil {
				return err
			}
			appLog.Info("weekcal exiting")
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config)")
	return cmd
}

func newSnapshotCmd(a *app) *cobra.Command {
	var (
		f      filterFlags
		output string
		width  int
		height int
	)
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture the schedule page as a PNG with headless Chromium",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			anchor, err := a.weekAnchor(&f)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			sess, _, err := a.loadSession(ctx, anchor, nil)
			if err != nil {
				return err
			}

			ln, err := net.Listen("tcp", "127.0.0.1:0")
			if err != nil {
				return err
			}
			srvCtx, stopServer := context.WithCancel(ctx)
			served := make(chan error, 1)
			go func() {
				served <- web.NewServer(a.cfg, sess, nil).Serve(srvCtx, ln)
			}()

			target := "http://" + ln.Addr().String() + "/"
			if q := f.query(anchor).Encode(); q != "" {
				target += "?" + q
			}

			captureErr := capture.CaptureSchedulePNG(ctx, capture.Options{
				URL:        target,
				OutputPath: output,
				Width:      width,
				Height:     height,
				Timeout:    a.cfg.CaptureTimeoutDuration(),
			})

			stopServer()
			if err := <-served; err != nil {
				appLog.Error("snapshot server stopped with error", err)
			}
			if captureErr != nil {
				return captureErr
			}
			appLog.Info("snapshot written", "path", output)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "schedule.png", "PNG output path")
	cmd.Flags().IntVar(&width, "width", capture.DefaultWidth, "viewport width in pixels")
	cmd.Flags().IntVar(&height, "height", capture.DefaultHeight, "viewport height in pixels")
	return cmd
}

func newSourcesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List calendar sources with their colors and event counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, snap, err := a.loadSession(cmd.Context(), time.Time{}, nil)
			if err != nil {
				return err
			}
			printSources(cmd.OutOrStdout(), snap)
			return nil
		},
	}
}

func printSources(w io.Writer, snap session.Snapshot) {
	failed := make(map[string]bool, len(snap.Failed))
	for _, id := range snap.Failed {
		failed[id] = true
	}
	origin := make(map[string]string, len(snap.Sources))
	for _, src := range snap.Sources {
		if src.Path != "" {
			origin[src.ID] = src.Path
		} else {
			origin[src.ID] = ics.RedactURL(src.URL)
		}
	}

	counts := snap.Counts()
	headers := []string{"ID", "Label", "Color", "Events", "Status", "Origin"}
	var rows [][]string
	total := 0
	for _, e := range render.Catalog(snap.Catalog, model.NewFilterState(snap.Catalog.IDs()), counts, nil) {
		status := "ok"
		if failed[e.ID] {
			status = "failed"
		}
		rows = append(rows, []string{e.ID, e.Label, e.Hex, strconv.Itoa(e.Events), status, origin[e.ID]})
		total += e.Events
	}
	footers := []string{"", "", "Total:", strconv.Itoa(total), "", ""}
	printTable(w, headers, rows, footers)
}
