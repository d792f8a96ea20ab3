package archive

import (
	"bytes"
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/sqlchat/sqlchat/internal/conversation"
)

type transcriptRow struct {
	SessionID       string `parquet:"session_id"`
	Owner           string `parquet:"owner"`
	Variant         string `parquet:"variant"`
	Seq             int32  `parquet:"seq"`
	Role            string `parquet:"role"`
	Content         string `parquet:"content"`
	CreatedAtUnixMs int64  `parquet:"created_at_unix_ms"`
}

type Transcript struct {
	SessionID string
	Owner     string
	Variant   conversation.Variant
	Turns     []conversation.Turn
}

type EncodeResult struct {
	Data      []byte
	TurnCount int
}

// EncodeTranscript writes one parquet row per turn, in transcript order.
func EncodeTranscript(transcript Transcript) (EncodeResult, error) {
	if len(transcript.Turns) == 0 {
		return EncodeResult{}, fmt.Errorf("turns are required")
	}

	rows := make([]transcriptRow, 0, len(transcript.Turns))
	for i, turn := range transcript.Turns {
		rows = append(rows, transcriptRow{
			SessionID:       transcript.SessionID,
			Owner:           transcript.Owner,
			Variant:         string(transcript.Variant),
			Seq:             int32(i),
			Role:            string(turn.Role()),
			Content:         turn.Content(),
			CreatedAtUnixMs: turn.CreatedAt().UnixMilli(),
		})
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[transcriptRow](buf)
	if _, err := writer.Write(rows); err != nil {
		return EncodeResult{}, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return EncodeResult{}, fmt.Errorf("close parquet writer: %w", err)
	}
	return EncodeResult{Data: buf.Bytes(), TurnCount: len(rows)}, nil
}
