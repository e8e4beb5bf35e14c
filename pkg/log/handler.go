package log

import (
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

func init() {
	// cockroachdb/errors のスタックトレースを "stacktrace" フィールドとして出力する
	zerolog.ErrorStackFieldName = StacktraceAttrKey
	zerolog.ErrorStackMarshaler = func(err error) interface{} {
		if st := extractStacktrace(err); st != "" {
			return st
		}
		return nil
	}
}

func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}
