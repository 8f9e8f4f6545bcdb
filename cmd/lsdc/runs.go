package main

import (
	"fmt"
	"image"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/lsdc/internal/dynamo"
	"github.com/san-kum/lsdc/internal/export"
	"github.com/san-kum/lsdc/internal/rollout"
	"github.com/san-kum/lsdc/internal/storage"
	"github.com/san-kum/lsdc/internal/tui"
	"github.com/san-kum/lsdc/internal/viz"
)

var (
	outPath     string
	svgSize     int
	svgStroke   string
	viewExtent  float64
	previewW    int
	previewH    int
	plotWidth   int
	plotHeight  int
	plotActions bool
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [run_id]",
		Short: "show run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}
}

func newPlotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot agent position, velocity and actions",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	cmd.Flags().IntVar(&plotWidth, "width", 80, "plot width")
	cmd.Flags().IntVar(&plotHeight, "height", 10, "plot height")
	return cmd
}

func newPreviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview [run_id]",
		Short: "draw the agent path in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  previewRun,
	}
	cmd.Flags().IntVar(&previewW, "width", 40, "width in cells")
	cmd.Flags().IntVar(&previewH, "height", 20, "height in cells")
	cmd.Flags().Float64Var(&viewExtent, "extent", 0.5, "half width of the view")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [run_id]",
		Short: "delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := storage.New(dataDir).Delete(args[0]); err != nil {
				return err
			}
			fmt.Printf("deleted %s\n", args[0])
			return nil
		},
	}
}

func newExportJSONCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "output file (stdout when empty)")
	return cmd
}

func newExportSVGCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "export the agent path as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "output file (default <run_id>.svg)")
	cmd.Flags().IntVar(&svgSize, "size", 400, "image size in pixels")
	cmd.Flags().StringVar(&svgStroke, "stroke", "#00ccff", "path color")
	cmd.Flags().Float64Var(&viewExtent, "extent", 0.5, "half width of the view")
	return cmd
}

func newExportPlotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-plot [run_id]",
		Short: "export a PNG plot of the agent path or actions",
		Args:  cobra.ExactArgs(1),
		RunE:  exportPlot,
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "output file (default <run_id>.png)")
	cmd.Flags().BoolVar(&plotActions, "actions", false, "plot actions instead of the path")
	return cmd
}

func newExportGIFCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-gif [run_id]",
		Short: "animate the stored observation frames",
		Args:  cobra.ExactArgs(1),
		RunE:  exportGIF,
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "output file (default <run_id>.gif)")
	return cmd
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := storage.New(dataDir).List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tPOLICY\tT\tOBJECTS\tSCORE")
	for _, run := range runs {
		score := "-"
		if run.Score != nil {
			score = fmt.Sprintf("%.4f", *run.Score)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Policy,
			run.T,
			run.NumObjects,
			score,
		)
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	meta, err := storage.New(dataDir).Load(args[0])
	if err != nil {
		return err
	}

	row := func(label string, value any) {
		fmt.Printf("%s %v\n", tui.MetricLabel.Render(fmt.Sprintf("%-12s", label)), value)
	}
	fmt.Println(tui.Title.Render(meta.ID))
	row("time", meta.Timestamp.Format("2006-01-02 15:04:05"))
	row("model", meta.Model)
	row("policy", meta.Policy)
	row("collector", meta.Collector)
	row("T", meta.T)
	row("substeps", meta.Substeps)
	row("objects", meta.NumObjects)
	row("seed", meta.Seed)
	row("frames", meta.Frames)
	if len(meta.GoalPoint) == 2 {
		row("goal", fmt.Sprintf("(%.3f, %.3f)", meta.GoalPoint[0], meta.GoalPoint[1]))
	}
	if meta.Score != nil {
		row("score", tui.MetricValue.Render(fmt.Sprintf("%.6f", *meta.Score)))
	}
	for _, name := range sortedKeys(meta.Metrics) {
		row(name, fmt.Sprintf("%.6f", meta.Metrics[name]))
	}
	return nil
}

func loadRun(runID string, withImages bool) (*storage.RunMetadata, *rollout.Trajectory, error) {
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	traj, err := st.LoadTrajectory(runID, withImages)
	if err != nil {
		return nil, nil, err
	}
	if traj.Len() == 0 {
		return nil, nil, fmt.Errorf("run %s has no timesteps", runID)
	}
	return meta, traj, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, traj, err := loadRun(args[0], false)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("policy: %s\n", meta.Policy)
	fmt.Printf("samples: %d\n\n", traj.Len())

	series := []struct {
		caption string
		value   func(t int) float64
	}{
		{"agent x", func(t int) float64 { return traj.X[t][0] }},
		{"agent y", func(t int) float64 { return traj.X[t][1] }},
		{"agent speed", func(t int) float64 { return traj.Xdot[t].Norm() }},
		{"action u0", func(t int) float64 { return traj.U[t][0] }},
		{"action u1", func(t int) float64 { return traj.U[t][1] }},
	}
	for _, s := range series {
		data := make([]float64, traj.Len())
		for t := range data {
			data[t] = s.value(t)
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(plotHeight),
			asciigraph.Width(plotWidth),
			asciigraph.Caption(s.caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func previewRun(cmd *cobra.Command, args []string) error {
	meta, traj, err := loadRun(args[0], false)
	if err != nil {
		return err
	}
	var g *dynamo.Vec2
	if len(meta.GoalPoint) == 2 {
		g = &dynamo.Vec2{meta.GoalPoint[0], meta.GoalPoint[1]}
	}
	fmt.Println(tui.Title.Render(meta.ID))
	fmt.Println(tui.Panel.Render(viz.PathPreview(traj.X, g, previewW, previewH, viewExtent)))
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	meta, traj, err := loadRun(args[0], false)
	if err != nil {
		return err
	}
	if outPath == "" {
		return storage.ExportJSON(os.Stdout, meta, traj)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := storage.ExportJSON(f, meta, traj); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", outPath)
	return nil
}

func exportSVG(cmd *cobra.Command, args []string) error {
	meta, traj, err := loadRun(args[0], false)
	if err != nil {
		return err
	}
	path := defaultOutput(meta.ID, ".svg")
	svg := export.PathToSVG(traj.X, meta.GoalPoint, viewExtent, svgSize, svgStroke)
	if err := os.WriteFile(path, []byte(svg), 0644); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", path)
	return nil
}

func exportPlot(cmd *cobra.Command, args []string) error {
	meta, traj, err := loadRun(args[0], false)
	if err != nil {
		return err
	}
	path := defaultOutput(meta.ID, ".png")
	if plotActions {
		err = export.ActionPlot(path, meta.ID+" actions", traj.U)
	} else {
		err = export.PathPlot(path, meta.ID+" path", traj.X, meta.GoalPoint)
	}
	if err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", path)
	return nil
}

func exportGIF(cmd *cobra.Command, args []string) error {
	meta, traj, err := loadRun(args[0], true)
	if err != nil {
		return err
	}
	frames := make([]image.Image, 0, len(traj.Images))
	for _, img := range traj.Images {
		if img != nil {
			frames = append(frames, img)
		}
	}
	path := defaultOutput(meta.ID, ".gif")
	if err := export.WriteGIF(frames, path); err != nil {
		return err
	}
	fmt.Printf("exported %d frames to %s\n", len(frames), path)
	return nil
}

func defaultOutput(runID, ext string) string {
	if outPath != "" {
		return outPath
	}
	return runID + ext
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
