package ingest

import (
	"FragFM/logger"

	"go.uber.org/zap"
)

// State is a step of one ingestion attempt.
type State int

const (
	Staged State = iota
	MetadataPreviewed
	Segmenting
	Uploading
	Cataloging
	Committed
	Failed
)

func (s State) String() string {
	switch s {
	case Staged:
		return "staged"
	case MetadataPreviewed:
		return "metadata_previewed"
	case Segmenting:
		return "segmenting"
	case Uploading:
		return "uploading"
	case Cataloging:
		return "cataloging"
	case Committed:
		return "committed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == Committed || s == Failed }

func logState(s State, stagedName, songUUID string, fields ...zap.Field) {
	fields = append([]zap.Field{
		logger.String("state", s.String()),
		logger.String("staged", stagedName),
	}, fields...)
	if songUUID != "" {
		fields = append(fields, logger.String("uuid", songUUID))
	}
	if s == Failed {
		logger.Warn("ingestion state", fields...)
		return
	}
	logger.Info("ingestion state", fields...)
}
