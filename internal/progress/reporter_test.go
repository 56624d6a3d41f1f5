package progress

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReporter_MonotonicSequence(t *testing.T) {
	r := NewReporter()
	defer r.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				r.Publish(StageEncode, "1-1", "running", "")
			}
		}()
	}
	wg.Wait()

	events := r.Snapshot()
	require.Len(t, events, 200)
	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Seq)
	}
}

func TestReporter_SubscribeReceivesEvents(t *testing.T) {
	r := NewReporter()
	sub := r.Subscribe()

	r.Publish(StageIntake, "123-456.mp4", "validated", "")
	r.Publish(StageEncode, "123-456", "running", "")
	r.Close()

	var got []Event
	for ev := range sub {
		got = append(got, ev)
	}
	require.Len(t, got, 2)
	assert.Equal(t, StageIntake, got[0].Stage)
	assert.Equal(t, "validated", got[0].State)
	assert.Equal(t, StageEncode, got[1].Stage)
}

func TestReporter_PublishAfterClose(t *testing.T) {
	r := NewReporter()
	r.Close()

	r.Publish(StageIntake, "x", "validated", "")
	assert.Empty(t, r.Snapshot())
}

func TestReporter_SlowSubscriberDropsEvents(t *testing.T) {
	r := NewReporter()
	defer r.Close()

	sub := r.Subscribe()
	// Overfill the subscriber buffer; Publish must never block.
	for i := 0; i < 300; i++ {
		r.Publish(StageEncode, "1-1", "running", "")
	}

	assert.Len(t, r.Snapshot(), 300, "history keeps everything")
	assert.Len(t, sub, 256, "subscriber keeps only its buffer")
}

func TestReporter_SnapshotIsCopy(t *testing.T) {
	r := NewReporter()
	defer r.Close()

	r.Publish(StageIntake, "a", "validated", "")
	snap := r.Snapshot()
	snap[0].EntryID = "mutated"

	assert.Equal(t, "a", r.Snapshot()[0].EntryID)
}
