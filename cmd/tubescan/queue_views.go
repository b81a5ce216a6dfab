package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"tubescan/internal/queue"
)

// shortIDLength is how much of a job id tables show; commands accept any
// unique prefix.
const shortIDLength = 8

func buildQueueStatusRows(summary queue.Summary) [][]string {
	if summary.Total == 0 {
		return nil
	}
	return [][]string{
		{formatStatusLabel(queue.StatusPending), strconv.Itoa(summary.Pending)},
		{formatStatusLabel(queue.StatusRunning), strconv.Itoa(summary.Running)},
		{formatStatusLabel(queue.StatusDone), strconv.Itoa(summary.Done)},
		{formatStatusLabel(queue.StatusFailed), strconv.Itoa(summary.Failed)},
		{"Total", strconv.Itoa(summary.Total)},
	}
}

func buildQueueListRows(jobs []queue.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			shortID(job.ID),
			formatStatusLabel(job.Status),
			job.Model,
			strings.Join(job.Keywords, ", "),
			formatDisplayTime(job.CreatedAt),
			job.VideoRef,
			job.Error,
		})
	}
	return rows
}

func filterJobs(jobs []queue.Job, statuses []string) ([]queue.Job, error) {
	if len(statuses) == 0 {
		return jobs, nil
	}
	wanted := make(map[queue.Status]bool, len(statuses))
	for _, raw := range statuses {
		status := queue.Status(strings.ToLower(strings.TrimSpace(raw)))
		if !status.Valid() {
			return nil, fmt.Errorf("unknown status %q (pending, running, done, failed)", raw)
		}
		wanted[status] = true
	}
	var out []queue.Job
	for _, job := range jobs {
		if wanted[job.Status] {
			out = append(out, job)
		}
	}
	return out, nil
}

// resolveJobIDs maps full ids or unique prefixes to job ids.
func resolveJobIDs(jobs []queue.Job, args []string) ([]string, error) {
	ids := make([]string, 0, len(args))
	for _, arg := range args {
		prefix := strings.TrimSpace(arg)
		if prefix == "" {
			continue
		}
		var matches []string
		for _, job := range jobs {
			if job.ID == prefix {
				matches = []string{job.ID}
				break
			}
			if strings.HasPrefix(job.ID, prefix) {
				matches = append(matches, job.ID)
			}
		}
		switch len(matches) {
		case 0:
			return nil, fmt.Errorf("no job matches %q", prefix)
		case 1:
			ids = append(ids, matches[0])
		default:
			return nil, fmt.Errorf("job id %q is ambiguous (%d matches)", prefix, len(matches))
		}
	}
	return ids, nil
}

func shortID(id string) string {
	if len(id) > shortIDLength {
		return id[:shortIDLength]
	}
	if id == "" {
		return "-"
	}
	return id
}

func formatStatusLabel(status queue.Status) string {
	value := strings.TrimSpace(string(status))
	if value == "" {
		return ""
	}
	return strings.ToUpper(value[:1]) + value[1:]
}

func formatDisplayTime(ts queue.Timestamp) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Time().Local().Format("2006-01-02 15:04")
}

func formatSeconds(d time.Duration) string {
	return d.Round(time.Second).String()
}
