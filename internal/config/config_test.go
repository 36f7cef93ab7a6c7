package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price-signal-lab/internal/domain"
)

const validYAML = `
dates:
  start: "2020-01-01"
  end: "2020-12-31"
data:
  source: stooq
universe:
  us: [AAPL, NVDA]
  pl: []
pipeline:
  windows: [5, 15]
  horizon: 3
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "base.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ValidFileWithDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "NVDA"}, cfg.Universe.US)
	assert.Empty(t, cfg.Universe.PL)
	assert.Equal(t, 3, cfg.Pipeline.Horizon)
	assert.Equal(t, []int{5, 15}, cfg.Pipeline.Windows)

	// defaults
	assert.Equal(t, "https://stooq.com/q/d/l/", cfg.Data.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Data.Timeout)
	assert.Equal(t, 1.0, cfg.Pipeline.InitialEquity)
	assert.Equal(t, domain.DefaultSignalRule, cfg.SignalRule())
	assert.Equal(t, "json", cfg.Logging.Format)

	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), cfg.StartDate())
	assert.Equal(t, time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC), cfg.EndDate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LAB_PIPELINE_HORIZON", "5")
	t.Setenv("LAB_STORAGE_POSTGRES_DSN", "postgres://lab@localhost/lab")
	t.Setenv("LAB_PIPELINE_SIGNAL_LONG_MOMENTUM_MIN", "0.02")

	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Pipeline.Horizon)
	assert.Equal(t, "postgres://lab@localhost/lab", cfg.Storage.PostgresDSN)
	assert.Equal(t, 0.02, cfg.SignalRule().LongMomentumMin)
}

func TestLoad_MissingAndEmptyFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "  \n"))
	assert.ErrorContains(t, err, "empty")
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
		msg     string
	}{
		{
			name:    "missing section",
			yaml:    "dates: {start: '2020-01-01', end: '2020-02-01'}\ndata: {source: stooq}\n",
			wantErr: domain.ErrValue,
			msg:     "universe",
		},
		{
			name:    "empty universe",
			yaml:    "dates: {start: '2020-01-01', end: '2020-02-01'}\ndata: {source: stooq}\nuniverse: {us: [], pl: []}\n",
			wantErr: domain.ErrValue,
			msg:     "at least one of universe.us or universe.pl",
		},
		{
			name:    "start after end",
			yaml:    "dates: {start: '2021-01-01', end: '2020-02-01'}\ndata: {source: stooq}\nuniverse: {us: [AAPL]}\n",
			wantErr: domain.ErrValue,
			msg:     "after",
		},
		{
			name:    "bad date",
			yaml:    "dates: {start: '01/01/2020', end: '2020-02-01'}\ndata: {source: stooq}\nuniverse: {us: [AAPL]}\n",
			wantErr: domain.ErrValue,
			msg:     "dates.start",
		},
		{
			name:    "unknown source",
			yaml:    "dates: {start: '2020-01-01', end: '2020-02-01'}\ndata: {source: yahoo}\nuniverse: {us: [AAPL]}\n",
			wantErr: domain.ErrValue,
			msg:     "data.source",
		},
		{
			name:    "non-integer horizon",
			yaml:    "dates: {start: '2020-01-01', end: '2020-02-01'}\ndata: {source: stooq}\nuniverse: {us: [AAPL]}\npipeline: {horizon: 1.5}\n",
			wantErr: domain.ErrType,
		},
		{
			name:    "zero horizon",
			yaml:    "dates: {start: '2020-01-01', end: '2020-02-01'}\ndata: {source: stooq}\nuniverse: {us: [AAPL]}\npipeline: {horizon: 0}\n",
			wantErr: domain.ErrValue,
			msg:     "pipeline.horizon",
		},
		{
			name:    "signal window without features",
			yaml:    "dates: {start: '2020-01-01', end: '2020-02-01'}\ndata: {source: stooq}\nuniverse: {us: [AAPL]}\npipeline: {windows: [2, 5]}\n",
			wantErr: domain.ErrValue,
			msg:     "signal window 15",
		},
		{
			name:    "bad ticker",
			yaml:    "dates: {start: '2020-01-01', end: '2020-02-01'}\ndata: {source: stooq}\nuniverse: {us: ['AA PL']}\n",
			wantErr: domain.ErrValue,
			msg:     "ticker",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.msg != "" {
				assert.ErrorContains(t, err, tt.msg)
			}
		})
	}
}

func TestBaseConfigIsValid(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "base.yaml"))
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Universe.US)
}
