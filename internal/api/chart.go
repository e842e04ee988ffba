package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// handleAngleChart renders a quick HTML line chart of recent commanded
// angles. This is a debugging view, not part of the JSON API proper.
func (s *Server) handleAngleChart(w http.ResponseWriter, r *http.Request) {
	limit := 200
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 2000 {
			limit = n
		}
	}

	commands, err := s.db.RecentCommands(limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// RecentCommands is newest-first; the chart wants oldest-first and only
	// accepted commands carry an angle.
	var labels []string
	var points []opts.LineData
	for i := len(commands) - 1; i >= 0; i-- {
		cmd := commands[i]
		if cmd.Angle == nil {
			continue
		}
		labels = append(labels, time.Unix(cmd.CreatedAt, 0).Format("15:04:05"))
		points = append(points, opts.LineData{Value: *cmd.Angle})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Servo Angle History", Width: "1200px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Commanded Angle", Subtitle: "degrees over time"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 180, Name: "degrees"}),
	)
	line.SetXAxis(labels).AddSeries("angle", points)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := line.Render(w); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}
