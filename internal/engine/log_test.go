package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kaijie-yu/google-ui/pkg/models"
)

func TestExecutionLog_SinceAndFinish(t *testing.T) {
	l := NewExecutionLog()
	_, finished, changed := l.Since(0)
	assert.False(t, finished)

	l.Append("one", "two")
	select {
	case <-changed:
	default:
		t.Fatal("append must wake followers")
	}

	lines, _, _ := l.Since(1)
	assert.Equal(t, []string{"two"}, lines)

	l.Finish(models.RunStatusSuccess)
	l.Append("ignored")

	snap := l.Snapshot()
	assert.Equal(t, []string{"one", "two"}, snap.Lines)
	assert.True(t, snap.Finished)
	assert.Equal(t, models.RunStatusSuccess, snap.Status)
}

func TestExecutionLog_Retire(t *testing.T) {
	l := NewExecutionLog()
	_, _, changed := l.Since(0)
	l.retire()
	<-changed

	_, finished, _ := l.Since(0)
	assert.True(t, finished)
	assert.Empty(t, l.Snapshot().Status)
}
