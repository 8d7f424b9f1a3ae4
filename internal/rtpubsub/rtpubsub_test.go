// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package rtpubsub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesPublishedEvent(t *testing.T) {
	b := NewBroker[string]()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event[string]{Type: Created, Payload: "hello"})

	select {
	case evt := <-ch:
		assert.Equal(t, Created, evt.Type)
		assert.Equal(t, "hello", evt.Payload)
	case <-time.After(time.Second):
		t.Fatal("did not receive published event")
	}
}

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	b := NewBroker[int]()
	ch1, unsub1 := b.Subscribe(1)
	defer unsub1()
	ch2, unsub2 := b.Subscribe(1)
	defer unsub2()

	b.Publish(Event[int]{Type: Updated, Payload: 42})

	for _, ch := range []<-chan Event[int]{ch1, ch2} {
		select {
		case evt := <-ch:
			assert.Equal(t, 42, evt.Payload)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestPublishDropsEventForFullBufferInsteadOfBlocking(t *testing.T) {
	b := NewBroker[int]()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		b.Publish(Event[int]{Payload: 1})
		b.Publish(Event[int]{Payload: 2}) // buffer full, must be dropped not block
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber buffer")
	}

	evt := <-ch
	assert.Equal(t, 1, evt.Payload)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker[int]()
	ch, unsub := b.Subscribe(1)
	unsub()

	_, open := <-ch
	assert.False(t, open)
}

func TestPublishAfterUnsubscribeDoesNotPanic(t *testing.T) {
	b := NewBroker[int]()
	_, unsub := b.Subscribe(1)
	unsub()

	require.NotPanics(t, func() {
		b.Publish(Event[int]{Payload: 1})
	})
}
