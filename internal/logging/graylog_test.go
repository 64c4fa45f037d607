package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGraylogWriter(t *testing.T) {
	// UDP dial does not need a listener.
	w, err := NewGraylogWriter("127.0.0.1:12201")
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, ServiceName, w.Facility)
}

func TestNewGraylogWriter_BadAddress(t *testing.T) {
	_, err := NewGraylogWriter("not an address")
	assert.Error(t, err)
}
