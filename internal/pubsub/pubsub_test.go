package pubsub

import "testing"

func TestPublishDeliversToSubscriber(t *testing.T) {
	topic := NewTopic[int](4)
	sub := topic.Subscribe()
	topic.Publish(42)
	select {
	case v := <-sub.C():
		if v != 42 {
			t.Fatalf("expected 42, got %d", v)
		}
	default:
		t.Fatalf("expected a buffered message")
	}
}

func TestPublishFansOutToMultipleSubscribers(t *testing.T) {
	topic := NewTopic[string](4)
	a := topic.Subscribe()
	b := topic.Subscribe()
	topic.Publish("hello")
	if <-a.C() != "hello" || <-b.C() != "hello" {
		t.Fatalf("expected both subscribers to receive the message")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	topic := NewTopic[int](1)
	sub := topic.Subscribe()
	sub.Unsubscribe()
	if _, ok := <-sub.C(); ok {
		t.Fatalf("expected channel to be closed after Unsubscribe")
	}
}

func TestPublishDropsOldestOnFullBuffer(t *testing.T) {
	topic := NewTopic[int](1)
	sub := topic.Subscribe()
	topic.Publish(1)
	topic.Publish(2)
	if v := <-sub.C(); v != 2 {
		t.Fatalf("expected the newest message to survive, got %d", v)
	}
}
