package bus

import (
	"testing"
)

func TestPublishOrder(t *testing.T) {
	b := New()
	var got []int

	b.Subscribe("evt", func(any) { got = append(got, 1) })
	b.Subscribe("evt", func(any) { got = append(got, 2) })
	b.Subscribe("evt", func(any) { got = append(got, 3) })

	b.Publish("evt", nil)

	want := []int{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("got %d invocations, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("invocation %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestUnsubscribeRemovesExactlyOne(t *testing.T) {
	b := New()
	var first, second int

	unsub := b.Subscribe("evt", func(any) { first++ })
	b.Subscribe("evt", func(any) { second++ })

	unsub()
	unsub() // second call is a no-op
	b.Publish("evt", nil)

	if first != 0 {
		t.Errorf("unsubscribed handler ran %d times", first)
	}
	if second != 1 {
		t.Errorf("remaining handler ran %d times, want 1", second)
	}
}

func TestSubscriberAddedDuringPublishMissesInFlight(t *testing.T) {
	b := New()
	var late int

	b.Subscribe("evt", func(any) {
		b.Subscribe("evt", func(any) { late++ })
	})

	b.Publish("evt", nil)
	if late != 0 {
		t.Fatalf("late subscriber received in-flight publish")
	}

	b.Publish("evt", nil)
	if late != 1 {
		t.Fatalf("late subscriber ran %d times after second publish, want 1", late)
	}
}

func TestPanickingSubscriberIsIsolated(t *testing.T) {
	b := New()
	var after int

	b.Subscribe("evt", func(any) { panic("boom") })
	b.Subscribe("evt", func(any) { after++ })

	b.Publish("evt", nil)

	if after != 1 {
		t.Fatalf("subscriber after panic ran %d times, want 1", after)
	}
}

func TestSubscribeOnce(t *testing.T) {
	b := New()
	var calls int

	b.SubscribeOnce("evt", func(any) { calls++ })

	b.Publish("evt", nil)
	b.Publish("evt", nil)

	if calls != 1 {
		t.Fatalf("once handler ran %d times, want 1", calls)
	}
}

func TestPayloadDelivered(t *testing.T) {
	b := New()
	var got any

	b.Subscribe("evt", func(p any) { got = p })
	b.Publish("evt", 42)

	if got != 42 {
		t.Fatalf("payload = %v, want 42", got)
	}
}

func TestDistinctEventNamesAreIndependent(t *testing.T) {
	b := New()
	var a, c int

	b.Subscribe("a", func(any) { a++ })
	b.Subscribe("c", func(any) { c++ })

	b.Publish("a", nil)

	if a != 1 || c != 0 {
		t.Fatalf("a=%d c=%d, want a=1 c=0", a, c)
	}
}
