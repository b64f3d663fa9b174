package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{"unset", "", 5},
		{"valid", "12", 12},
		{"padded", " 7 ", 7},
		{"invalid", "many", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_INT", tt.value)
			assert.Equal(t, tt.want, GetEnvInt("TEST_INT", 5))
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "false")
	assert.False(t, GetEnvBool("TEST_BOOL", true))

	t.Setenv("TEST_BOOL", "yes please")
	assert.True(t, GetEnvBool("TEST_BOOL", true))
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "90s")
	assert.Equal(t, 90*time.Second, GetEnvDuration("TEST_DURATION", time.Second))

	t.Setenv("TEST_DURATION", "ninety")
	assert.Equal(t, time.Second, GetEnvDuration("TEST_DURATION", time.Second))
}

func TestGetEnvFloatAndInt64(t *testing.T) {
	t.Setenv("TEST_FLOAT", "2.5")
	t.Setenv("TEST_INT64", "10485760")

	assert.Equal(t, 2.5, GetEnvFloat("TEST_FLOAT", 1))
	assert.Equal(t, int64(10485760), GetEnvInt64("TEST_INT64", 1))
}

func TestGetEnvStringList(t *testing.T) {
	t.Setenv("TEST_LIST", " a ,, b,c ")
	assert.Equal(t, []string{"a", "b", "c"}, GetEnvStringList("TEST_LIST", nil))

	t.Setenv("TEST_LIST", " , ")
	assert.Equal(t, []string{"x"}, GetEnvStringList("TEST_LIST", []string{"x"}))
}

func TestValidators(t *testing.T) {
	assert.Error(t, ValidatePositiveDuration(0))
	assert.NoError(t, ValidatePositiveDuration(time.Millisecond))
	assert.NoError(t, ValidateNonNegativeDuration(0))
	assert.Error(t, ValidateNonNegativeDuration(-time.Second))
	assert.Error(t, ValidateDurationRange(time.Hour, time.Second, time.Minute))
	assert.Error(t, ValidateDurationRange(time.Second, time.Minute, time.Second))
	assert.NoError(t, ValidateIntRange(5, 1, 50))
	assert.Error(t, ValidateIntRange(0, 1, 50))
}
