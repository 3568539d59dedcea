package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"habit-points/internal/model"
	"habit-points/internal/service"
)

type jsonExport struct {
	ExportedAt  string     `json:"exported_at"`
	Day         string     `json:"day"`
	Target      int        `json:"target"`
	TotalPoints int        `json:"total_points"`
	Progress    float64    `json:"progress"`
	Count       int        `json:"count"`
	Tasks       []jsonTask `json:"tasks"`
}

type jsonTask struct {
	ID        uint    `json:"id"`
	Title     string  `json:"title"`
	Points    float64 `json:"points"`
	Completed int     `json:"completed"`
	Target    int     `json:"target"`
	Max       int     `json:"max"`
	State     string  `json:"state"`
	Position  int     `json:"position"`
	Routine   bool    `json:"routine,omitempty"`
	Critical  bool    `json:"critical,omitempty"`
	Optional  bool    `json:"optional,omitempty"`
}

// ToJSON writes the same day snapshot as ToCSV, machine-readable.
func ToJSON(w io.Writer, date *model.Date, tasks []model.Task) error {
	out := jsonExport{
		ExportedAt:  time.Now().UTC().Format(time.RFC3339),
		Day:         date.Day.Format("2006-01-02"),
		Target:      date.Target,
		TotalPoints: service.TotalPoints(tasks),
		Progress:    service.Progress(date, tasks),
		Count:       len(tasks),
	}

	for i := range tasks {
		t := &tasks[i]
		out.Tasks = append(out.Tasks, jsonTask{
			ID:        t.ID,
			Title:     t.Title,
			Points:    t.Points,
			Completed: t.Completed,
			Target:    t.Target,
			Max:       t.Max,
			State:     service.State(t).String(),
			Position:  t.Position,
			Routine:   t.Routine,
			Critical:  t.Critical,
			Optional:  t.Optional,
		})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}
