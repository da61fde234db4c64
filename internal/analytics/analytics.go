package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Reporting window limits for per-day breakdowns.
const (
	defaultWindowDays = 7
	maxWindowDays     = 90
)

// DailyStat is one day's execution counts.
type DailyStat struct {
	Date    string `json:"date"` // YYYY-MM-DD, UTC
	Total   int    `json:"total"`
	Success int    `json:"success"`
	Failed  int    `json:"failed"`
}

// SuccessRate summarises completed executions.
type SuccessRate struct {
	Total   int     `json:"total"` // terminal executions only
	Success int     `json:"success"`
	Failed  int     `json:"failed"`
	Rate    float64 `json:"rate"` // 0..1, zero when nothing completed
}

// Overview is a cross-task summary for one user.
type Overview struct {
	TaskCount      int            `json:"task_count"`
	ExecutionCount int            `json:"execution_count"`
	ByStatus       map[string]int `json:"by_status"`
	AvgDurationMS  float64        `json:"avg_duration_ms"`
	LastExecution  *time.Time     `json:"last_execution,omitempty"`
}

// Service answers aggregate execution questions. All queries are scoped
// to one owner's tasks; no user can see another's numbers.
type Service struct {
	db *sql.DB
}

// NewService creates an analytics service over the given database.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// ExecutionsPerDay returns daily execution counts for the trailing
// window, oldest day first. Days without executions are omitted. The
// window is defaulted and clamped per the package constants.
func (s *Service) ExecutionsPerDay(ctx context.Context, ownerID string, days int) ([]DailyStat, error) {
	if days <= 0 {
		days = defaultWindowDays
	}
	if days > maxWindowDays {
		days = maxWindowDays
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339)

	// Timestamps are RFC3339 in UTC, so the first 10 bytes are the date.
	rows, err := s.db.QueryContext(ctx,
		`SELECT substr(e.started_at, 1, 10) AS day,
			COUNT(*),
			SUM(CASE WHEN e.status = 'success' THEN 1 ELSE 0 END),
			SUM(CASE WHEN e.status = 'failed' THEN 1 ELSE 0 END)
		 FROM task_executions e
		 JOIN tasks t ON t.id = e.task_id
		 WHERE t.user_id = ? AND e.started_at >= ?
		 GROUP BY day
		 ORDER BY day ASC`,
		ownerID, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("querying daily executions: %w", err)
	}
	defer rows.Close()

	var stats []DailyStat
	for rows.Next() {
		var d DailyStat
		if err := rows.Scan(&d.Date, &d.Total, &d.Success, &d.Failed); err != nil {
			return nil, fmt.Errorf("scanning daily stat: %w", err)
		}
		stats = append(stats, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating daily stats: %w", err)
	}

	if stats == nil {
		stats = []DailyStat{}
	}
	return stats, nil
}

// SuccessRate returns the completed-execution success ratio across all
// of a user's tasks. Pending and running executions are excluded.
func (s *Service) SuccessRate(ctx context.Context, ownerID string) (*SuccessRate, error) {
	var sr SuccessRate
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			SUM(CASE WHEN e.status = 'success' THEN 1 ELSE 0 END),
			SUM(CASE WHEN e.status = 'failed' THEN 1 ELSE 0 END)
		 FROM task_executions e
		 JOIN tasks t ON t.id = e.task_id
		 WHERE t.user_id = ? AND e.status IN ('success', 'failed')`,
		ownerID,
	).Scan(&sr.Total, &nullInt{&sr.Success}, &nullInt{&sr.Failed})
	if err != nil {
		return nil, fmt.Errorf("querying success rate: %w", err)
	}

	if sr.Total > 0 {
		sr.Rate = float64(sr.Success) / float64(sr.Total)
	}
	return &sr, nil
}

// Overview returns a cross-task summary for one user.
func (s *Service) Overview(ctx context.Context, ownerID string) (*Overview, error) {
	ov := &Overview{ByStatus: make(map[string]int)}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE user_id = ?`, ownerID,
	).Scan(&ov.TaskCount); err != nil {
		return nil, fmt.Errorf("counting tasks: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT e.status, COUNT(*)
		 FROM task_executions e
		 JOIN tasks t ON t.id = e.task_id
		 WHERE t.user_id = ?
		 GROUP BY e.status`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("counting executions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		ov.ByStatus[status] = count
		ov.ExecutionCount += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating status counts: %w", err)
	}

	var avgDuration sql.NullFloat64
	var lastStarted sql.NullString
	if err := s.db.QueryRowContext(ctx,
		`SELECT AVG(e.duration_ms), MAX(e.started_at)
		 FROM task_executions e
		 JOIN tasks t ON t.id = e.task_id
		 WHERE t.user_id = ?`,
		ownerID,
	).Scan(&avgDuration, &lastStarted); err != nil {
		return nil, fmt.Errorf("querying execution summary: %w", err)
	}

	if avgDuration.Valid {
		ov.AvgDurationMS = avgDuration.Float64
	}
	if lastStarted.Valid {
		ts, _ := time.Parse(time.RFC3339, lastStarted.String) //nolint:errcheck // format is controlled
		ov.LastExecution = &ts
	}

	return ov, nil
}

// nullInt scans a nullable aggregate into an int, treating NULL as zero.
// SUM() over zero rows yields NULL rather than 0.
type nullInt struct {
	dest *int
}

func (n *nullInt) Scan(value any) error {
	if value == nil {
		*n.dest = 0
		return nil
	}
	switch v := value.(type) {
	case int64:
		*n.dest = int(v)
	case float64:
		*n.dest = int(v)
	default:
		return fmt.Errorf("analytics: cannot scan %T into int", value)
	}
	return nil
}
