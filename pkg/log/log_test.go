package log

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestConfigure(t *testing.T) {
	for _, tc := range []struct {
		desc      string
		format    string
		level     string
		wantLevel logrus.Level
		wantJSON  bool
		wantErr   bool
	}{
		{desc: "json format with info level", format: "json", level: "info", wantLevel: logrus.InfoLevel, wantJSON: true},
		{desc: "text format with debug level", format: "text", level: "debug", wantLevel: logrus.DebugLevel},
		{desc: "empty format keeps formatter", level: "warn", wantLevel: logrus.WarnLevel},
		{desc: "invalid level falls back to info", format: "text", level: "loud", wantLevel: logrus.InfoLevel},
		{desc: "invalid format", format: "xml", wantErr: true},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			logger := logrus.New()
			err := Configure(logger, tc.format, tc.level)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantLevel, logger.GetLevel())
			_, isJSON := logger.Formatter.(*logrus.JSONFormatter)
			require.Equal(t, tc.wantJSON, isJSON)
		})
	}
}

func TestOrDiscard(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.Out = &buf
	require.Same(t, l, OrDiscard(l))

	OrDiscard(nil).Error("dropped")
	require.Zero(t, buf.Len())
}
