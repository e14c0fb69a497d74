package ledger

import (
	"database/sql"
	"errors"
	"time"
)

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		id           string
		subject      sql.NullString
		session      sql.NullString
		acquisition  sql.NullString
		inputFile    sql.NullString
		status       string
		ageMonths    sql.NullInt64
		ageSource    sql.NullString
		sex          sql.NullString
		errorKind    sql.NullString
		errorMessage sql.NullString
		startedRaw   string
		finishedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&subject,
		&session,
		&acquisition,
		&inputFile,
		&status,
		&ageMonths,
		&ageSource,
		&sex,
		&errorKind,
		&errorMessage,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	run := &Run{
		ID:           id,
		Subject:      subject.String,
		Session:      session.String,
		Acquisition:  acquisition.String,
		InputFile:    inputFile.String,
		Status:       Status(status),
		AgeSource:    ageSource.String,
		Sex:          sex.String,
		ErrorKind:    errorKind.String,
		ErrorMessage: errorMessage.String,
	}
	if ageMonths.Valid {
		months := int(ageMonths.Int64)
		run.AgeMonths = &months
	}
	if started, err := parseTimeString(startedRaw); err == nil {
		run.StartedAt = started
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			run.FinishedAt = &finished
		}
	}
	return run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}
