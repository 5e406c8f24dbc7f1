package multitx

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogObserverUsesInjectedLogger(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	m, fa := newAggregate(t, map[string]string{"TRANSMITTERS": "A,B"}, WithObserver(NewLogObserver(logger)))
	require.NoError(t, m.Initialize())

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "Multi transmitter initialized", entry.Message)
	assert.Equal(t, "TxAll", entry.Data["aggregate"])
	assert.Equal(t, []string{"A", "B"}, entry.Data["transmitters"])
	hook.Reset()

	m, fa = newAggregate(t, map[string]string{"TRANSMITTERS": "A,B"}, WithObserver(NewLogObserver(logger)))
	fa.CloseFail["A"] = errors.New("PTT stuck")
	fa.InitFail["B"] = errors.New("no PTT")
	require.Error(t, m.Initialize())

	require.Len(t, hook.Entries, 1)
	entry = hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "A", entry.Data["transmitter"])
	assert.EqualError(t, entry.Data["error"].(error), "PTT stuck")
}
