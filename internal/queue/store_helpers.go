package queue

import (
	"database/sql"
	"errors"
	"time"
)

const taskColumns = "id, owner_id, kind, source_locator, display_name, status, summary, sentiment, transcript, address, dialog_type, markers_summary, is_relevant, refusal_deadline, no_brigade, long_duration, redirect_other_org, street, house, resident_phrase, problem_duration, error_message, created_at, updated_at"

func scanTask(scanner interface{ Scan(dest ...any) error }) (*Task, error) {
	var (
		id               int64
		ownerID          int64
		kindStr          string
		sourceLocator    string
		displayName      sql.NullString
		statusStr        string
		summary          sql.NullString
		sentiment        sql.NullString
		transcript       sql.NullString
		address          sql.NullString
		dialogType       sql.NullString
		markersSummary   sql.NullString
		isRelevant       sql.NullInt64
		refusalDeadline  sql.NullInt64
		noBrigade        sql.NullInt64
		longDuration     sql.NullInt64
		redirectOtherOrg sql.NullInt64
		street           sql.NullString
		house            sql.NullString
		residentPhrase   sql.NullString
		problemDuration  sql.NullString
		errorMessage     sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&ownerID,
		&kindStr,
		&sourceLocator,
		&displayName,
		&statusStr,
		&summary,
		&sentiment,
		&transcript,
		&address,
		&dialogType,
		&markersSummary,
		&isRelevant,
		&refusalDeadline,
		&noBrigade,
		&longDuration,
		&redirectOtherOrg,
		&street,
		&house,
		&residentPhrase,
		&problemDuration,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	task := &Task{
		ID:               id,
		OwnerID:          ownerID,
		Kind:             Kind(kindStr),
		SourceLocator:    sourceLocator,
		DisplayName:      displayName.String,
		Status:           Status(statusStr),
		Summary:          summary.String,
		Sentiment:        sentiment.String,
		Transcript:       transcript.String,
		Address:          address.String,
		DialogType:       dialogType.String,
		MarkersSummary:   markersSummary.String,
		IsRelevant:       isRelevant.Int64 != 0,
		RefusalDeadline:  refusalDeadline.Int64 != 0,
		NoBrigade:        noBrigade.Int64 != 0,
		LongDuration:     longDuration.Int64 != 0,
		RedirectOtherOrg: redirectOtherOrg.Int64 != 0,
		Street:           street.String,
		House:            house.String,
		ResidentPhrase:   residentPhrase.String,
		ProblemDuration:  problemDuration.String,
		ErrorMessage:     errorMessage.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		task.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		task.UpdatedAt = updated
	}
	return task, nil
}

func collectTasks(rows *sql.Rows) ([]*Task, error) {
	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
