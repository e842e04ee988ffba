package api

import (
	"net/http"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type angleStats struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// handleStats summarises the most recently accepted angles.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	limit := 200
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 10000 {
			writeJSONError(w, http.StatusBadRequest, "limit must be an integer between 1 and 10000")
			return
		}
		limit = n
	}

	angles, err := s.db.RecentAngles(limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if len(angles) == 0 {
		writeJSON(w, http.StatusOK, angleStats{})
		return
	}

	out := angleStats{
		Count: len(angles),
		Min:   floats.Min(angles),
		Max:   floats.Max(angles),
		Mean:  stat.Mean(angles, nil),
	}
	if len(angles) > 1 {
		out.StdDev = stat.StdDev(angles, nil)
	}
	writeJSON(w, http.StatusOK, out)
}
