package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/fitpro/fitsync/internal/domain"
)

// ErrEmptyCatalog is returned when a source yields no courses.
var ErrEmptyCatalog = errors.New("catalog has no courses")

// courseDTO is a course as served by the realtime database export.
type courseDTO struct {
	ID          string   `json:"_id"`
	NameRU      string   `json:"nameRU"`
	NameEN      string   `json:"nameEN"`
	Description string   `json:"description"`
	Workouts    []string `json:"workouts"`
}

type exerciseDTO struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type workoutDTO struct {
	ID        string        `json:"_id"`
	Name      string        `json:"name"`
	Video     string        `json:"video"`
	Exercises []exerciseDTO `json:"exercises"`
}

func (d courseDTO) toDomain() domain.Course {
	name := d.NameRU
	if name == "" {
		name = d.NameEN
	}
	return domain.Course{
		ID:          d.ID,
		Name:        name,
		NameEN:      d.NameEN,
		Description: d.Description,
		WorkoutIDs:  d.Workouts,
	}
}

func (d workoutDTO) toDomain() domain.Workout {
	w := domain.Workout{ID: d.ID, Name: d.Name, VideoURL: d.Video}
	for _, ex := range d.Exercises {
		w.Exercises = append(w.Exercises, domain.Exercise{
			ID:         ex.ID,
			Name:       ex.Name,
			TargetReps: ex.Quantity,
		})
	}
	return w
}

// HTTPSource loads the catalog from a realtime-database style REST export:
// {BaseURL}/courses.json and {BaseURL}/workouts.json.
type HTTPSource struct {
	client *resty.Client
	logger *slog.Logger
}

// NewHTTPSource creates a source for baseURL.
func NewHTTPSource(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPSource {
	if logger == nil {
		logger = slog.Default()
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond)
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &HTTPSource{client: client, logger: logger}
}

// Load fetches courses and workouts.
func (s *HTTPSource) Load(ctx context.Context) (*Catalog, error) {
	var courses []courseDTO
	if err := s.fetch(ctx, "/courses.json", &courses); err != nil {
		return nil, err
	}
	var workouts []workoutDTO
	if err := s.fetch(ctx, "/workouts.json", &workouts); err != nil {
		return nil, err
	}
	if len(courses) == 0 {
		return nil, ErrEmptyCatalog
	}

	dc := make([]domain.Course, 0, len(courses))
	for _, c := range courses {
		dc = append(dc, c.toDomain())
	}
	dw := make([]domain.Workout, 0, len(workouts))
	for _, w := range workouts {
		dw = append(dw, w.toDomain())
	}

	s.logger.Info("loaded catalog", "courses", len(dc), "workouts", len(dw))
	return New(dc, dw), nil
}

// fetch decodes a collection that may be served either as an array or as an
// object keyed by push id.
func (s *HTTPSource) fetch(ctx context.Context, path string, out any) error {
	resp, err := s.client.R().SetContext(ctx).Get(path)
	if err != nil {
		return fmt.Errorf("%w: fetch %s: %v", domain.ErrUnavailable, path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("fetch %s: unexpected status %d", path, resp.StatusCode())
	}
	if err := decodeCollection(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func decodeCollection(body []byte, out any) error {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		return json.Unmarshal(body, out)
	}

	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(body, &keyed); err != nil {
		return err
	}
	keys := make([]string, 0, len(keyed))
	for k := range keyed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	items := make([]json.RawMessage, 0, len(keys))
	for _, k := range keys {
		items = append(items, keyed[k])
	}
	arr, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return json.Unmarshal(arr, out)
}
