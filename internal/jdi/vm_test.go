package jdi

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/jdwp/internal/jdwp"
	"github.com/dshills/jdwp/internal/jdwp/jdwptest"
)

func TestAttachSessionID(t *testing.T) {
	_, conn := jdwptest.Connect(t, jdwp.DefaultIDSizes)
	vm, err := Attach(context.Background(), conn, Config{SessionID: "capture-1"})
	require.NoError(t, err)
	assert.Equal(t, "capture-1", vm.SessionID())

	_, conn = jdwptest.Connect(t, jdwp.DefaultIDSizes)
	vm, err = Attach(context.Background(), conn, Config{})
	require.NoError(t, err)
	_, err = uuid.Parse(vm.SessionID())
	assert.NoError(t, err, "generated ids are UUIDs")
}
