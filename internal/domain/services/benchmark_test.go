package services

import (
	"fmt"
	"testing"
	"time"

	"ura-call-bridge/internal/domain/models"
	"ura-call-bridge/internal/infrastructure/ami"
)

func BenchmarkTranslate(b *testing.B) {
	f := NewTenantFilter([]string{"T16_cos-CRC", "T16_cos-all"}, "T16_")
	ev := ami.ChannelStateChanged{
		Channel:          "PJSIP/1001-00000002",
		ChannelStateDesc: "Up",
		CallerIDNum:      "1001",
		ConnectedLineNum: "21999990000",
		Context:          "T16_cos-CRC",
		Uniqueid:         "1700000000.13",
		Linkedid:         "1700000000.12",
	}
	now := time.Now()

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Translate(ev, f, now)
	}
}

func BenchmarkBroadcast(b *testing.B) {
	for _, clients := range []int{10, 100, 1000} {
		b.Run(fmt.Sprintf("clients=%d", clients), func(b *testing.B) {
			hub := NewEventHub(64)
			for i := 0; i < clients; i++ {
				hub.Register(fmt.Sprintf("agent-%d", i), hub.NewSubscriber())
			}
			ev := models.CallEvent{Event: models.CallEventCallerJoined, Data: models.CallEventData{Extension: "1001"}}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				hub.Broadcast(ev)
			}
		})
	}
}
