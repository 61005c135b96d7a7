package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublish_DispatchesInSubscriptionOrder(t *testing.T) {
	b := New()
	var order []string

	b.Subscribe(TwistAdded, func(e Event) {
		order = append(order, "first")
		assert.Equal(t, int64(3), e.TwistID)
	})
	b.Subscribe(TwistAdded, func(e Event) {
		order = append(order, "second")
	})

	b.Publish(Event{Kind: TwistAdded, TwistID: 3})
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestPublish_OnlyMatchingKind(t *testing.T) {
	b := New()
	called := 0
	b.Subscribe(TwistDeleted, func(Event) { called++ })

	b.Publish(FlashEvent("hello"))
	b.Publish(Event{Kind: TwistDeleted, TwistID: 1})

	assert.Equal(t, 1, called)
}

func TestPublish_HandlerMayRepublish(t *testing.T) {
	b := New()
	var flashes []string

	b.Subscribe(Flash, func(e Event) { flashes = append(flashes, e.Message) })
	b.Subscribe(TwistDeleted, func(Event) {
		b.Publish(FlashEvent("Twist deleted"))
	})

	b.Publish(Event{Kind: TwistDeleted, TwistID: 9})
	assert.Equal(t, []string{"Twist deleted"}, flashes)
}

func TestTwistsLoadedEvent(t *testing.T) {
	e := TwistsLoadedEvent(2, 3)
	assert.Equal(t, TwistsLoaded, e.Kind)
	assert.Equal(t, 2, e.StartPage)
	assert.Equal(t, 3, e.NumPages)
}
