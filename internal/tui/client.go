package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fentz26/classmate/internal/engine"
	"github.com/fentz26/classmate/internal/ingest"
	"github.com/fentz26/classmate/internal/models"
	"github.com/fentz26/classmate/internal/timetable"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// APIError is a non-2xx answer from the daemon.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Message)
}

// Client wraps HTTP calls to the classmate API for one user.
type Client struct {
	baseURL    string
	userID     string
	httpClient *http.Client
}

// NewClient creates a new API client with timeout
func NewClient(baseURL, userID string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		userID:  userID,
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

// UserID returns the user the client acts for.
func (c *Client) UserID() string { return c.userID }

func (c *Client) userPath(parts ...string) string {
	escaped := make([]string, 0, len(parts)+2)
	escaped = append(escaped, "users", url.PathEscape(c.userID))
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return "/" + strings.Join(escaped, "/")
}

func targetQuery(target float64) string {
	if target <= 0 {
		return ""
	}
	return "?target=" + strconv.FormatFloat(target, 'f', -1, 64)
}

func id(v int64) string { return strconv.FormatInt(v, 10) }

// --- Week & Tasks ---

// Week fetches the user's week, backlog and subjects.
func (c *Client) Week() (*engine.View, error) {
	var view engine.View
	if err := c.do(http.MethodGet, c.userPath("week"), nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// AddTask appends a task to the backlog.
func (c *Client) AddTask(label string) (*models.Task, error) {
	var task models.Task
	if err := c.do(http.MethodPost, c.userPath("tasks"), map[string]string{"label": label}, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// MoveTask places a backlog task on a day.
func (c *Client) MoveTask(taskID int64, day models.Weekday) (*models.ScheduleEntry, error) {
	var entry models.ScheduleEntry
	body := map[string]string{"day": string(day)}
	if err := c.do(http.MethodPost, c.userPath("tasks", id(taskID), "move"), body, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// CompleteTask toggles a task's completed flag.
func (c *Client) CompleteTask(taskID int64) (*models.Task, error) {
	var task models.Task
	if err := c.do(http.MethodPost, c.userPath("tasks", id(taskID), "complete"), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// DeleteTask removes a task from the backlog.
func (c *Client) DeleteTask(taskID int64) error {
	return c.do(http.MethodDelete, c.userPath("tasks", id(taskID)), nil, nil)
}

// ReplaceWithNext overwrites an entry with the first backlog task.
func (c *Client) ReplaceWithNext(day models.Weekday, entryID int64) (*models.ScheduleEntry, error) {
	var entry models.ScheduleEntry
	if err := c.do(http.MethodPost, c.userPath("days", string(day), "entries", id(entryID), "replace"), nil, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// UpdateStatus applies attend, miss or cancel to an entry.
func (c *Client) UpdateStatus(day models.Weekday, ref engine.EntryRef, action models.Action) (*engine.Transition, error) {
	body := struct {
		Action string `json:"action"`
		engine.EntryRef
	}{Action: string(action), EntryRef: ref}
	var tr engine.Transition
	if err := c.do(http.MethodPost, c.userPath("days", string(day), "status"), body, &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

// Restore puts a cancelled or freed entry back.
func (c *Client) Restore(day models.Weekday, entryID int64) (*models.ScheduleEntry, error) {
	var entry models.ScheduleEntry
	if err := c.do(http.MethodPost, c.userPath("days", string(day), "entries", id(entryID), "restore"), nil, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// --- Subjects ---

// Standings fetches every subject with its standing. A zero target uses the
// daemon default.
func (c *Client) Standings(target float64) ([]engine.SubjectStanding, error) {
	var out []engine.SubjectStanding
	if err := c.do(http.MethodGet, c.userPath("subjects")+targetQuery(target), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddSubject adds a manual subject row.
func (c *Client) AddSubject(name string) (*models.SubjectAttendance, error) {
	var row models.SubjectAttendance
	if err := c.do(http.MethodPost, c.userPath("subjects"), map[string]string{"name": name}, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// SetSubject overrides a subject's counts.
func (c *Client) SetSubject(name string, attended, total int) (*models.SubjectAttendance, error) {
	var row models.SubjectAttendance
	body := map[string]int{"attended": attended, "total": total}
	if err := c.do(http.MethodPut, c.userPath("subjects", name), body, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// ResetSubject zeroes a subject's counts.
func (c *Client) ResetSubject(name string) (*models.SubjectAttendance, error) {
	var row models.SubjectAttendance
	if err := c.do(http.MethodPost, c.userPath("subjects", name, "reset"), nil, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// DeleteSubject removes a subject row.
func (c *Client) DeleteSubject(name string) error {
	return c.do(http.MethodDelete, c.userPath("subjects", name), nil, nil)
}

// Advice fetches the advice snapshot.
func (c *Client) Advice(target float64) (*engine.Advice, error) {
	var adv engine.Advice
	if err := c.do(http.MethodGet, c.userPath("advice")+targetQuery(target), nil, &adv); err != nil {
		return nil, err
	}
	return &adv, nil
}

// Audit fetches the newest attendance audit records.
func (c *Client) Audit(limit int) ([]models.AuditRecord, error) {
	var recs []models.AuditRecord
	path := c.userPath("audit")
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	if err := c.do(http.MethodGet, path, nil, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// --- Ingestion ---

// IngestResult reports which days a commit replaced.
type IngestResult struct {
	Days  []models.Weekday `json:"days"`
	Slots int              `json:"slots"`
}

// Preview structures timetable text without saving it.
func (c *Client) Preview(text string) (*ingest.Preview, error) {
	var pv ingest.Preview
	if err := c.do(http.MethodPost, "/ingest/preview", map[string]string{"text": text}, &pv); err != nil {
		return nil, err
	}
	return &pv, nil
}

// PreviewGrid structures a grid without saving it.
func (c *Client) PreviewGrid(grid timetable.Grid) (*ingest.Preview, error) {
	var pv ingest.Preview
	if err := c.do(http.MethodPost, "/ingest/preview", map[string]interface{}{"grid": grid}, &pv); err != nil {
		return nil, err
	}
	return &pv, nil
}

// Ingest commits timetable text for the user.
func (c *Client) Ingest(text string) (*IngestResult, error) {
	var res IngestResult
	if err := c.do(http.MethodPost, c.userPath("ingest"), map[string]string{"text": text}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// IngestGrid commits a grid for the user.
func (c *Client) IngestGrid(grid timetable.Grid) (*IngestResult, error) {
	var res IngestResult
	if err := c.do(http.MethodPost, c.userPath("ingest"), map[string]interface{}{"grid": grid}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CheckHealth checks if the daemon is healthy
func (c *Client) CheckHealth() (bool, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/health")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}

	var health struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false, err
	}

	return health.OK, nil
}

func (c *Client) do(method, path string, data, out interface{}) error {
	var body io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return err
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}
