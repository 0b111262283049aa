package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringInSlice(t *testing.T) {
	contracts := []string{"interim", "cdd", "alternance"}

	assert.True(t, StringInSlice("cdd", contracts))
	assert.False(t, StringInSlice("cdi", contracts))
	assert.False(t, StringInSlice("cdd", nil))
}
