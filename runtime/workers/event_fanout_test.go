package workers

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chat-relay/domain/event"
	"chat-relay/mocks"
)

func TestEventFanout_Delivers_To_Every_Sink(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sink1 := mocks.NewMockEventSink(ctrl)
	sink2 := mocks.NewMockEventSink(ctrl)

	evt := event.ChannelJoined{Nick: "alice", Channel: "#go", At: time.Now()}
	delivered := make(chan struct{}, 2)
	record := func(ctx context.Context, e event.DomainEvent) error {
		req.Equal("ChannelJoined", e.Name())
		delivered <- struct{}{}
		return nil
	}
	sink1.EXPECT().Consume(gomock.Any(), evt).DoAndReturn(record).Times(1)
	sink2.EXPECT().Consume(gomock.Any(), evt).DoAndReturn(record).Times(1)

	telemetry := make(chan event.DomainEvent, 1)
	fanout := NewEventFanout(logger, telemetry).Add(sink1, sink2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = fanout.Run(ctx)
		close(done)
	}()

	telemetry <- evt
	for i := 0; i < 2; i++ {
		select {
		case <-delivered:
		case <-time.After(time.Second):
			req.Fail("sink did not receive the event in time")
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("fanout did not stop on context cancel")
	}
}

func TestEventFanout_A_Failing_Sink_Does_Not_Block_The_Others(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	failing := mocks.NewMockEventSink(ctrl)
	healthy := mocks.NewMockEventSink(ctrl)

	evt := event.KeepaliveTimeout{Nick: "alice", At: time.Now()}
	failing.EXPECT().Consume(gomock.Any(), evt).Return(context.DeadlineExceeded).Times(1)
	healthy.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(1)

	// Both expectations must be satisfied despite the first failure
	fanout := NewEventFanout(logger, nil).Add(failing, healthy)
	fanout.Fanout(context.Background(), evt)
}
