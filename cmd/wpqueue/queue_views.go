package main

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"wpqueue/internal/api"
	"wpqueue/internal/queue"
)

const detailWidth = 48

func buildQueueStatusRows(items []api.QueueItem) [][]string {
	if len(items) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, item := range items {
		counts[item.Status]++
	}
	rows := make([][]string, 0, len(counts))
	for _, status := range queue.AllStatuses() {
		count := counts[string(status)]
		if count == 0 {
			continue
		}
		rows = append(rows, []string{api.StatusLabel(string(status)), strconv.Itoa(count)})
	}
	return rows
}

func buildQueueListRows(items []api.QueueItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		remote := ""
		if item.RemotePostID > 0 {
			remote = strconv.FormatInt(item.RemotePostID, 10)
		}
		rows = append(rows, []string{
			item.ID,
			item.Summary,
			api.StatusLabel(item.Status),
			item.Format,
			formatProgress(item.Progress),
			remote,
			truncate(itemDetail(item), detailWidth),
		})
	}
	return rows
}

func formatProgress(p api.QueueProgress) string {
	if p.Total == 0 {
		return fmt.Sprintf("%d%%", p.Percent)
	}
	return fmt.Sprintf("%d/%d %d%%", p.Uploaded, p.Total, p.Percent)
}

func itemDetail(item api.QueueItem) string {
	switch {
	case item.ErrorMessage != "":
		return item.ErrorMessage
	case item.Link != "":
		return item.Link
	case item.Attempts > 1:
		return fmt.Sprintf("attempt %d", item.Attempts)
	default:
		return ""
	}
}

func truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}
