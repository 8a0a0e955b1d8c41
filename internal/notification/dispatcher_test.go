package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/go-petr/pet-ledger/internal/domain"
)

func TestDispatcherDeliversAndDrains(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	sender := NewMockSender(ctrl)

	var got []int64
	sender.EXPECT().Send(gomock.Any(), gomock.Any()).
		Times(3).
		DoAndReturn(func(_ context.Context, m Message) error {
			got = append(got, m.TransactionID)
			if m.TransactionID == 2 {
				return errors.New("smtp down")
			}

			return nil
		})

	d := NewDispatcher(sender, Renderer{}, 8, zerolog.Nop())
	for i := int64(1); i <= 3; i++ {
		d.Notify(context.Background(), domain.Notification{Kind: domain.NotifyDepositSuccess, TransactionID: i})
	}

	go d.Run()
	d.Close()

	require.Equal(t, []int64{1, 2, 3}, got)
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	sender := NewMockSender(ctrl)
	sender.EXPECT().Send(gomock.Any(), gomock.Any()).Times(1).Return(nil)

	d := NewDispatcher(sender, Renderer{}, 1, zerolog.Nop())
	d.Notify(context.Background(), domain.Notification{Kind: domain.NotifyDepositSuccess, TransactionID: 1})
	d.Notify(context.Background(), domain.Notification{Kind: domain.NotifyDepositSuccess, TransactionID: 2})

	go d.Run()
	d.Close()

	// Notifying after close is a no-op.
	d.Notify(context.Background(), domain.Notification{Kind: domain.NotifyDepositSuccess, TransactionID: 3})
}

func TestDispatcherSkipsUnrenderable(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	sender := NewMockSender(ctrl)
	sender.EXPECT().Send(gomock.Any(), gomock.Any()).Times(0)

	d := NewDispatcher(sender, Renderer{}, 1, zerolog.Nop())
	d.Notify(context.Background(), domain.Notification{Kind: "unknown"})

	go d.Run()
	d.Close()
}

func TestLogSender(t *testing.T) {
	t.Parallel()

	require.NoError(t, LogSender{}.Send(context.Background(), Message{Kind: domain.NotifyDepositSuccess}))
}
