package logger

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	l := New("test-logger")
	assert.NotNil(t, l)

	assert.Implements(t, (*interface {
		Infof(string, ...any)
		Warnf(string, ...any)
		Errorf(string, ...any)
	})(nil), l)
}

func TestNew_TagsComponent(t *testing.T) {
	var buf bytes.Buffer
	old := logrus.StandardLogger().Out
	logrus.SetOutput(&buf)
	defer logrus.SetOutput(old)

	New("lock").Infof("acquired")

	assert.Contains(t, buf.String(), "component=lock")
	assert.Contains(t, buf.String(), "acquired")
}

func TestNew_Levels(t *testing.T) {
	var buf bytes.Buffer
	old := logrus.StandardLogger().Out
	oldLevel := logrus.GetLevel()
	logrus.SetOutput(&buf)
	logrus.SetLevel(logrus.DebugLevel)
	defer func() {
		logrus.SetOutput(old)
		logrus.SetLevel(oldLevel)
	}()

	l := New("store")
	l.Infof("info %d", 1)
	l.Warnf("warn %d", 2)
	l.Errorf("error %d", 3)

	out := buf.String()
	assert.Contains(t, out, "level=info")
	assert.Contains(t, out, "info 1")
	assert.Contains(t, out, "level=warning")
	assert.Contains(t, out, "warn 2")
	assert.Contains(t, out, "level=error")
	assert.Contains(t, out, "error 3")
}

func TestNew_DistinctComponents(t *testing.T) {
	a := New("a")
	b := New("b")
	assert.NotNil(t, a)
	assert.NotNil(t, b)
}
