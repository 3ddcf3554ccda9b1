package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorsAggregation(t *testing.T) {
	var v Errors
	require.NoError(t, v.Err())
	assert.False(t, v.HasErrors())

	v.Add("title", "Task title is required")
	v.Add("status", "Status must be one of: todo, in-progress, completed")

	err := v.Err()
	require.Error(t, err)
	assert.Equal(t, "Validation Error: Task title is required, Status must be one of: todo, in-progress, completed", err.Error())
	assert.Len(t, v.Fields(), 2)
	assert.Equal(t, "title", v.Fields()[0].Field)
}
