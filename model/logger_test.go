package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidLoggerOrDefault(t *testing.T) {
	assert.Equal(t, DiscardLogger, ValidLoggerOrDefault(nil))

	var custom Logger = logDiscarder{}
	assert.Equal(t, custom, ValidLoggerOrDefault(custom))

	// Discarding must not panic.
	DiscardLogger.Infof("probe %s", "example.com")
	DiscardLogger.Warn("dropped")
}

func TestErrorToStringOrOK(t *testing.T) {
	assert.Equal(t, "ok", ErrorToStringOrOK(nil))
	assert.Equal(t, "boom", ErrorToStringOrOK(errors.New("boom")))
}

func TestValidClockOrDefault(t *testing.T) {
	c := ValidClockOrDefault(nil)
	before := time.Now()
	assert.False(t, c.Now().Before(before))
}
