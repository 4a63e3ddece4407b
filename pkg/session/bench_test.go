package session

import (
	"errors"
	"runtime"
	"testing"

	"github.com/parley-dev/parley/pkg/protocol"
)

// BenchmarkStoreGet measures Store.Get on a populated store.
func BenchmarkStoreGet(b *testing.B) {
	st := NewStore()
	st.Set("user", "ada")
	st.Set("count", 12345)
	st.Set("tags", map[string]string{"foo": "bar"})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = st.Get("user")
	}
}

// BenchmarkStoreSet measures Store.Set overwriting one key.
func BenchmarkStoreSet(b *testing.B) {
	st := NewStore()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		st.Set("key", i)
	}
}

// BenchmarkStoreGetParallel measures concurrent Store.Get.
func BenchmarkStoreGetParallel(b *testing.B) {
	st := NewStore()
	st.Set("key", "value")

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = st.Get("key")
		}
	})
}

// BenchmarkCurrentBound measures ambient session resolution from a
// bound task goroutine.
func BenchmarkCurrentBound(b *testing.B) {
	s := NewGoroutineSession(testConfig())
	defer s.Close()

	done := make(chan struct{})
	s.Start(func() {
		defer close(done)
		for i := 0; i < b.N; i++ {
			if _, err := Current(); err != nil {
				b.Error(err)
				return
			}
		}
	})
	<-done
}

// BenchmarkSendThroughSink measures command emission with a live sink.
func BenchmarkSendThroughSink(b *testing.B) {
	s := NewGoroutineSession(testConfig())
	defer s.Close()
	s.AttachSink(func(cmd protocol.Command) error { return nil })

	cmd := protocol.Output(map[string]any{"type": "text", "content": "hello"})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.Send(cmd); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkEventRoundTrip measures handing an event from the transport
// side to a task blocked on NextClientEvent.
func BenchmarkEventRoundTrip(b *testing.B) {
	s := NewGoroutineSession(testConfig())
	defer s.Close()

	done := make(chan struct{})
	s.Start(func() {
		defer close(done)
		for i := 0; i < b.N; i++ {
			if _, err := s.NextClientEvent(); err != nil {
				b.Error(err)
				return
			}
		}
	})

	ev := protocol.Event{Kind: "input", Data: "x"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for {
			err := s.Deliver(ev)
			if err == nil {
				break
			}
			if !errors.Is(err, ErrEventQueueFull) {
				b.Fatal(err)
			}
			runtime.Gosched()
		}
	}
	<-done
}
