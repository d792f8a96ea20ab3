package storage

import (
	"fmt"
	"path"
	"regexp"
	"time"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildTranscriptKey lays archives out by owner and UTC day:
// <owner>/date=YYYY-MM-DD/<session>-<unix_ms>.parquet
func BuildTranscriptKey(owner, sessionID string, archivedAt time.Time) (string, error) {
	if err := validatePathComponent(owner, "owner"); err != nil {
		return "", err
	}
	if err := validatePathComponent(sessionID, "session id"); err != nil {
		return "", err
	}
	ts := archivedAt.UTC()
	return path.Join(
		owner,
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("%s-%d.parquet", sessionID, ts.UnixMilli()),
	), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
